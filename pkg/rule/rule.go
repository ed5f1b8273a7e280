package rule

import (
	"fmt"
	"sync/atomic"
)

// Rule is a request matcher paired with a canned response and an
// invocation counter. Rules are immutable after Build except for the counter.
type Rule struct {
	ID   string
	Name string

	matcher  matcher
	response ResponseSpec
	expect   *Expectation
	def      Definition

	calls atomic.Int64
}

// Matches reports whether the rule accepts req. It does not count.
func (r *Rule) Matches(req *Request) bool {
	return r.matcher.failing(req) == ""
}

// Mismatch describes the first criterion rejecting req, or returns ""
// when the rule matches.
func (r *Rule) Mismatch(req *Request) string {
	crit := r.matcher.failing(req)
	if crit == "" {
		return ""
	}
	return r.matcher.describe(crit, req)
}

// Respond renders the rule's response for req. Templates and body files
// are evaluated here, so a failure surfaces per request.
func (r *Rule) Respond(req *Request) (*Response, error) {
	return r.render(req)
}

// Record counts one invocation and returns the new total. The registry
// calls it when it selects the rule for a request.
func (r *Rule) Record() int {
	return int(r.calls.Add(1))
}

// Calls returns the number of recorded invocations.
func (r *Rule) Calls() int {
	return int(r.calls.Load())
}

// ResetCalls sets the invocation counter back to zero.
func (r *Rule) ResetCalls() {
	r.calls.Store(0)
}

// Expectation returns the expected invocation count, or nil when the rule
// is unconstrained.
func (r *Rule) Expectation() *Expectation {
	if r.expect == nil {
		return nil
	}
	e := *r.expect
	return &e
}

// Definition returns the serializable form of the rule.
func (r *Rule) Definition() Definition {
	return r.def.clone()
}

// Verify checks the invocation count against the expectation.
// It returns a *Violation, or nil when satisfied or unconstrained.
func (r *Rule) Verify() error {
	if r.expect == nil {
		return nil
	}
	observed := r.Calls()
	if r.expect.Allows(observed) {
		return nil
	}
	return &Violation{
		RuleID:   r.ID,
		Rule:     r.String(),
		Observed: observed,
		Expected: *r.expect,
	}
}

// String returns the rule name, or its method and path when unnamed.
func (r *Rule) String() string {
	if r.Name != "" {
		return r.Name
	}
	method := r.matcher.method
	if method == "" {
		method = "*"
	}
	path := r.matcher.path
	if path == "" && r.matcher.pathRegex != nil {
		path = "~" + r.matcher.pathRegex.String()
	}
	if path == "" {
		path = "*"
	}
	return method + " " + path
}

// Violation reports a rule whose invocation count missed its expectation.
type Violation struct {
	RuleID   string      `json:"ruleId"`
	Rule     string      `json:"rule"`
	Observed int         `json:"observed"`
	Expected Expectation `json:"expected"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("rule %q: expected %s calls, observed %d", v.Rule, v.Expected, v.Observed)
}
