package rule

import "fmt"

// Expectation bounds the number of times a rule may be invoked.
// A nil bound is open.
type Expectation struct {
	Min *int `json:"min,omitempty" yaml:"min,omitempty"`
	Max *int `json:"max,omitempty" yaml:"max,omitempty"`
}

// Times expects exactly n invocations.
func Times(n int) Expectation {
	return Expectation{Min: &n, Max: &n}
}

// AtLeast expects n or more invocations.
func AtLeast(n int) Expectation {
	return Expectation{Min: &n}
}

// AtMost expects no more than n invocations.
func AtMost(n int) Expectation {
	return Expectation{Max: &n}
}

// Between expects from min to max invocations, inclusive.
func Between(minCalls, maxCalls int) Expectation {
	return Expectation{Min: &minCalls, Max: &maxCalls}
}

// Never expects the rule to be invoked zero times.
func Never() Expectation {
	return Times(0)
}

// Allows reports whether n invocations satisfy the expectation.
func (e Expectation) Allows(n int) bool {
	if e.Min != nil && n < *e.Min {
		return false
	}
	if e.Max != nil && n > *e.Max {
		return false
	}
	return true
}

func (e Expectation) validate() error {
	if e.Min != nil && *e.Min < 0 {
		return fmt.Errorf("expectation: negative minimum %d", *e.Min)
	}
	if e.Max != nil && *e.Max < 0 {
		return fmt.Errorf("expectation: negative maximum %d", *e.Max)
	}
	if e.Min != nil && e.Max != nil && *e.Min > *e.Max {
		return fmt.Errorf("expectation: minimum %d exceeds maximum %d", *e.Min, *e.Max)
	}
	return nil
}

// String describes the expectation, e.g. "exactly 2" or "at least 1".
func (e Expectation) String() string {
	switch {
	case e.Min != nil && e.Max != nil && *e.Min == *e.Max:
		return fmt.Sprintf("exactly %d", *e.Min)
	case e.Min != nil && e.Max != nil:
		return fmt.Sprintf("between %d and %d", *e.Min, *e.Max)
	case e.Min != nil:
		return fmt.Sprintf("at least %d", *e.Min)
	case e.Max != nil:
		return fmt.Sprintf("at most %d", *e.Max)
	default:
		return "any number of"
	}
}
