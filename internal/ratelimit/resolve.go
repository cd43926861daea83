package ratelimit

// ResolveLimit picks the tenant's own per-employee limit when set, otherwise
// the configured default.
func ResolveLimit(tenantLimit int, cfg SettingsConfig) Decision {
	if tenantLimit > 0 {
		return Decision{Limit: tenantLimit, Scope: ScopeEmployee}
	}
	if cfg.Limit > 0 {
		return Decision{Limit: cfg.Limit, Scope: ScopeEmployee}
	}
	return Decision{}
}
