package settings

import "time"

// Defaults applied when neither the config file nor the environment sets a value.
const (
	// DefaultPort is the HTTP listen port.
	DefaultPort = 8318
	// DefaultBackendBaseURL is the external configuration service base URL.
	DefaultBackendBaseURL = "http://localhost:4000/api"
	// DefaultGraphQLEndpoint is the external GraphQL endpoint used for enrollment mutations.
	DefaultGraphQLEndpoint = "http://localhost:4000/graphql"
	// DefaultRootDomain is the apex domain tenant subdomains hang off.
	DefaultRootDomain = "localhost"
	// PlanSourceDatabase loads plan configurations from the relational store.
	PlanSourceDatabase = "database"
	// PlanSourceRemote loads plan configurations from the external configuration service.
	PlanSourceRemote = "remote"
	// EnrollmentSinkDatabase persists enrollments to the relational store.
	EnrollmentSinkDatabase = "database"
	// EnrollmentSinkGraphQL sends enrollments to the GraphQL mutation endpoint.
	EnrollmentSinkGraphQL = "graphql"
	// DefaultRedisPrefix is the fallback Redis key prefix.
	DefaultRedisPrefix = "benefits"
	// DefaultSessionTTL is how long an idle enrollment session is kept.
	DefaultSessionTTL = 2 * time.Hour
	// DefaultCacheTTL is how long a plan configuration bundle stays cached in Redis.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultFetchTimeout bounds a single plan configuration fetch.
	DefaultFetchTimeout = 10 * time.Second
	// DefaultJWTExpiry is used for locally minted tokens.
	DefaultJWTExpiry = 12 * time.Hour
)
