// Package tenancy resolves the tenant of a request from its host and keeps
// an in-memory snapshot of the tenant directory.
package tenancy

import (
	"strings"

	"github.com/corpbenefits/benefits-platform/internal/models"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// Tenant is the directory entry a request runs under.
type Tenant struct {
	ID              uint64   `json:"id"`
	Slug            string   `json:"slug"`
	Name            string   `json:"name"`
	CountryCode     string   `json:"country_code"`
	ComplianceFlags []string `json:"compliance_flags"`
	Status          string   `json:"status"`
	RateLimit       int      `json:"rate_limit"`
}

// Active reports whether the tenant may serve requests.
func (t Tenant) Active() bool {
	return t.Status == models.TenantStatusActive
}

// FromModel converts a tenant row.
func FromModel(row models.Tenant) Tenant {
	flags := []string{}
	if len(row.ComplianceFlags) > 0 {
		if errUnmarshal := json.Unmarshal(row.ComplianceFlags, &flags); errUnmarshal != nil {
			log.WithError(errUnmarshal).WithField("tenant", row.Slug).Warn("tenancy: invalid compliance flags")
			flags = []string{}
		}
	}
	return Tenant{
		ID:              row.ID,
		Slug:            strings.ToLower(strings.TrimSpace(row.Slug)),
		Name:            row.Name,
		CountryCode:     row.CountryCode,
		ComplianceFlags: flags,
		Status:          row.Status,
		RateLimit:       row.RateLimit,
	}
}
