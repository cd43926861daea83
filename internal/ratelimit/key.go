package ratelimit

import "fmt"

// KeyForDecision builds a limiter key for the resolved scope. An unknown
// employee shares one tenant-wide key.
func KeyForDecision(corporateID, employeeID string, decision Decision) string {
	if corporateID == "" || decision.Limit <= 0 {
		return ""
	}
	switch decision.Scope {
	case ScopeEmployee:
		if employeeID == "" {
			return fmt.Sprintf("t:%s", corporateID)
		}
		return fmt.Sprintf("t:%s:e:%s", corporateID, employeeID)
	default:
		return ""
	}
}
