package registry

import (
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commerce-it/mockserver/pkg/rule"
)

func req(method, target string) *rule.Request {
	return rule.NewRequest(httptest.NewRequest(method, target, nil))
}

func build(t *testing.T, b *rule.Builder) *rule.Rule {
	t.Helper()
	r, err := b.Build()
	require.NoError(t, err)
	return r
}

func TestFirstMatchByInsertionOrder(t *testing.T) {
	reg := New()
	specific := build(t, rule.On("GET", "/products/MJ01").Named("specific"))
	generic := build(t, rule.On("GET", "/products/{sku}").Named("generic"))
	catchAll := build(t, rule.NewBuilder().Named("catch-all"))
	reg.Add(specific, generic, catchAll)

	tests := []struct {
		target string
		want   *rule.Rule
	}{
		{"/products/MJ01", specific},
		{"/products/WJ02", generic},
		{"/orders", catchAll},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, ok := reg.FindMatch(req("GET", tt.target))
			require.True(t, ok)
			assert.Same(t, tt.want, got)
		})
	}

	// FindMatch never counts.
	assert.Equal(t, 0, specific.Calls()+generic.Calls()+catchAll.Calls())
}

func TestNoMatch(t *testing.T) {
	reg := New()
	r := build(t, rule.On("GET", "/products"))
	reg.Add(r)

	got, ok := reg.Match(req("POST", "/products"))
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, 0, r.Calls())
}

func TestMatchCountsSelectedRuleOnly(t *testing.T) {
	reg := New()
	first := build(t, rule.On("GET", "/products"))
	shadowed := build(t, rule.On("GET", "/products"))
	reg.Add(first, shadowed)

	for range 3 {
		_, ok := reg.Match(req("GET", "/products"))
		require.True(t, ok)
	}
	assert.Equal(t, 3, first.Calls())
	assert.Equal(t, 0, shadowed.Calls())
}

func TestAddResetsCounter(t *testing.T) {
	reg := New()
	r := build(t, rule.On("GET", "/"))
	r.Record()
	r.Record()

	reg.Add(r)
	assert.Equal(t, 0, r.Calls())
	assert.Equal(t, 1, reg.Len())
}

func TestReset(t *testing.T) {
	reg := New()
	r := build(t, rule.On("GET", "/").ExpectCalls(3))
	reg.Add(r)
	reg.Match(req("GET", "/"))

	reg.Reset()

	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, r.Calls())
	_, ok := reg.FindMatch(req("GET", "/"))
	assert.False(t, ok)
	assert.NoError(t, reg.Verify())
}

func TestVerifyAggregates(t *testing.T) {
	reg := New()
	exact := build(t, rule.On("GET", "/products").Named("products").ExpectCalls(2))
	atLeast := build(t, rule.On("GET", "/orders").Named("orders").Expect(rule.AtLeast(1)))
	free := build(t, rule.On("GET", "/free"))
	reg.Add(exact, atLeast, free)

	reg.Match(req("GET", "/products"))

	err := reg.Verify()
	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Violations, 2)

	assert.Equal(t, exact.ID, verr.Violations[0].RuleID)
	assert.Equal(t, "products", verr.Violations[0].Rule)
	assert.Equal(t, 1, verr.Violations[0].Observed)
	assert.Equal(t, "exactly 2", verr.Violations[0].Expected.String())

	assert.Equal(t, "orders", verr.Violations[1].Rule)
	assert.Equal(t, 0, verr.Violations[1].Observed)

	assert.Contains(t, err.Error(), "2 rules violated")
}

func TestVerifySingleViolationMessage(t *testing.T) {
	reg := New()
	reg.Add(build(t, rule.On("GET", "/products").Named("products").ExpectCalls(2)))
	reg.Match(req("GET", "/products"))

	err := reg.Verify()
	require.Error(t, err)
	assert.Equal(t, `verification failed: rule "products": expected exactly 2 calls, observed 1`, err.Error())
}

func TestExplain(t *testing.T) {
	reg := New()
	reg.Add(
		build(t, rule.On("POST", "/products").Named("post")),
		build(t, rule.On("GET", "/orders").Named("orders")),
		build(t, rule.On("GET", "/products").WithQueryParam("store", "en").Named("store")),
	)

	misses := reg.Explain(req("GET", "/products?store=de"), 0)
	require.Len(t, misses, 3)
	assert.Contains(t, misses[0].Reason, "method")
	assert.Contains(t, misses[1].Reason, "path")
	assert.Contains(t, misses[2].Reason, "query store")

	assert.Len(t, reg.Explain(req("GET", "/products?store=de"), 2), 2)
}

func TestConcurrentMatchCountsExactly(t *testing.T) {
	reg := New()
	r := build(t, rule.On("GET", "/products"))
	reg.Add(r)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Match(req("GET", "/products"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, r.Calls())
}

func TestConcurrentAddAndMatch(t *testing.T) {
	reg := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Add(build(t, rule.On("GET", "/x")))
		}()
		go func() {
			defer wg.Done()
			reg.Match(req("GET", "/x"))
			if i%10 == 0 {
				_ = reg.Rules()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, reg.Len())
}
