package admin

import (
	"github.com/commerce-it/mockserver/pkg/registry"
	"github.com/commerce-it/mockserver/pkg/rule"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Rules  int    `json:"rules"`
}

// RuleStatus is a registered rule together with its call count.
type RuleStatus struct {
	ID         string          `json:"id"`
	Name       string          `json:"name,omitempty"`
	Calls      int             `json:"calls"`
	Definition rule.Definition `json:"definition"`
}

// VerifyResponse is returned by GET /verify.
type VerifyResponse struct {
	OK         bool                 `json:"ok"`
	Violations []registry.Violation `json:"violations,omitempty"`
}

func newRuleStatus(r *rule.Rule) RuleStatus {
	return RuleStatus{
		ID:         r.ID,
		Name:       r.Name,
		Calls:      r.Calls(),
		Definition: r.Definition(),
	}
}
