// Package registry holds the ordered rule set of a mock server.
//
// Rules are matched first-come by insertion order. Matching takes a read
// lock and bumps the selected rule's atomic counter, so concurrent requests
// never lose a count; Add and Reset take the write lock and therefore never
// overlap a lookup.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/commerce-it/mockserver/pkg/rule"
)

// Violation reports a rule whose invocation count missed its expectation.
type Violation = rule.Violation

// VerificationError aggregates every violated rule expectation.
type VerificationError struct {
	Violations []Violation `json:"violations"`
}

func (e *VerificationError) Error() string {
	if len(e.Violations) == 1 {
		return "verification failed: " + e.Violations[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "verification failed: %d rules violated their expectations", len(e.Violations))
	for i := range e.Violations {
		sb.WriteString("\n  - ")
		sb.WriteString(e.Violations[i].Error())
	}
	return sb.String()
}

// NearMiss describes why a rule rejected a request.
type NearMiss struct {
	RuleID string `json:"ruleId"`
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// Registry is an ordered, concurrency-safe collection of rules.
type Registry struct {
	mu    sync.RWMutex
	rules []*rule.Rule
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Add appends rules. Insertion order is match priority. Each added rule
// starts counting from zero.
func (r *Registry) Add(rules ...*rule.Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rl := range rules {
		if rl == nil {
			continue
		}
		rl.ResetCalls()
		r.rules = append(r.rules, rl)
	}
}

// FindMatch returns the first rule accepting req without counting it.
func (r *Registry) FindMatch(req *rule.Request) (*rule.Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.find(req)
}

// Match returns the first rule accepting req and records the invocation.
func (r *Registry) Match(req *rule.Request) (*rule.Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rl, ok := r.find(req)
	if ok {
		rl.Record()
	}
	return rl, ok
}

func (r *Registry) find(req *rule.Request) (*rule.Rule, bool) {
	for _, rl := range r.rules {
		if rl.Matches(req) {
			return rl, true
		}
	}
	return nil, false
}

// Reset removes all rules and clears their counters.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rl := range r.rules {
		rl.ResetCalls()
	}
	r.rules = nil
}

// Rules returns a snapshot of the registered rules in match order.
func (r *Registry) Rules() []*rule.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*rule.Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Verify checks every rule with an expectation and returns a
// *VerificationError listing all violations, or nil.
func (r *Registry) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var violations []Violation
	for _, rl := range r.rules {
		var v *Violation
		if errors.As(rl.Verify(), &v) {
			violations = append(violations, *v)
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return &VerificationError{Violations: violations}
}

// Explain returns, for up to limit rules, the first criterion rejecting
// req. A limit <= 0 explains every rule.
func (r *Registry) Explain(req *rule.Request, limit int) []NearMiss {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var misses []NearMiss
	for _, rl := range r.rules {
		if limit > 0 && len(misses) >= limit {
			break
		}
		reason := rl.Mismatch(req)
		if reason == "" {
			continue
		}
		misses = append(misses, NearMiss{RuleID: rl.ID, Rule: rl.String(), Reason: reason})
	}
	return misses
}
