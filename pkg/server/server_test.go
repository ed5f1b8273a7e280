package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/commerce-it/mockserver/pkg/registry"
	"github.com/commerce-it/mockserver/pkg/rule"
)

func startServer(t *testing.T, b *Builder) *Server {
	t.Helper()
	srv, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func get(t *testing.T, srv *Server, url string) (int, string) {
	t.Helper()
	resp, err := srv.Client().Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestBuildValidation(t *testing.T) {
	_, err := NewBuilder().Build()
	assert.ErrorIs(t, err, ErrNoListeners)

	_, err = NewBuilder().WithHTTPPort(70000).Build()
	assert.Error(t, err)

	_, err = NewBuilder().WithHTTPSPort(-2).Build()
	assert.Error(t, err)

	_, err = NewBuilder().WithHTTPPort(8443).WithHTTPSPort(8443).Build()
	assert.Error(t, err)

	_, err = NewBuilder().WithHTTP().WithDefaultResponse(1000, "").Build()
	assert.Error(t, err)

	_, err = NewBuilder().WithHTTP().WithRuleBuilders(rule.NewBuilder().WithPathPattern("(")).Build()
	assert.Error(t, err)

	_, err = NewBuilder().WithHTTPS().WithCertFiles("/missing.crt", "/missing.key").Build()
	assert.Error(t, err)
}

func TestLifecycle(t *testing.T) {
	srv, err := NewBuilder().WithHTTP().Build()
	require.NoError(t, err)

	assert.Equal(t, StateNew, srv.State())
	assert.Equal(t, -1, srv.HTTPPort())
	assert.Equal(t, -1, srv.HTTPSPort())
	assert.Empty(t, srv.URL())

	require.NoError(t, srv.Start())
	assert.Equal(t, StateRunning, srv.State())
	assert.Positive(t, srv.HTTPPort())
	assert.Equal(t, -1, srv.HTTPSPort(), "HTTPS not configured")
	assert.ErrorIs(t, srv.Start(), ErrAlreadyRunning)

	require.NoError(t, srv.Stop())
	assert.Equal(t, StateStopped, srv.State())
	assert.Equal(t, -1, srv.HTTPPort())

	// Stop is idempotent.
	require.NoError(t, srv.Stop())
	assert.Equal(t, StateStopped, srv.State())

	// Restart is allowed.
	require.NoError(t, srv.Start())
	assert.Equal(t, StateRunning, srv.State())
	status, _ := get(t, srv, srv.URL()+"/")
	assert.Equal(t, http.StatusNotFound, status)
	require.NoError(t, srv.Stop())
}

func TestStopBeforeStart(t *testing.T) {
	srv, err := NewBuilder().WithHTTP().Build()
	require.NoError(t, err)
	assert.NoError(t, srv.Stop())
	assert.Equal(t, StateNew, srv.State())
}

func TestDistinctWorkingPorts(t *testing.T) {
	srv := startServer(t, NewBuilder().WithHTTP().WithHTTPS().
		WithRuleBuilders(rule.On("GET", "/ping").WithResponseBody("pong")))

	require.Positive(t, srv.HTTPPort())
	require.Positive(t, srv.HTTPSPort())
	assert.NotEqual(t, srv.HTTPPort(), srv.HTTPSPort())

	for _, base := range []string{srv.URL(), srv.HTTPSURL()} {
		status, body := get(t, srv, base+"/ping")
		assert.Equal(t, http.StatusOK, status, base)
		assert.Equal(t, "pong", body, base)
	}

	entries := srv.Requests()
	require.Len(t, entries, 2)
	assert.Equal(t, "http", entries[0].Scheme)
	assert.Equal(t, "https", entries[1].Scheme)
	assert.NotNil(t, srv.Certificate())
}

func TestGetProductsScenario(t *testing.T) {
	r, err := rule.On("GET", "/products").RespondWith(200).WithResponseBody(`{"ok":true}`).Build()
	require.NoError(t, err)
	srv := startServer(t, NewBuilder().WithHTTP().WithRules(r))

	status, body := get(t, srv, srv.URL()+"/products")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"ok":true}`, body)
	assert.Equal(t, 1, r.Calls())
}

func TestVerifyExactTwoScenario(t *testing.T) {
	srv := startServer(t, NewBuilder().WithHTTP())
	r, err := srv.AddBuilder(rule.On("GET", "/products").Named("products").ExpectCalls(2))
	require.NoError(t, err)

	get(t, srv, srv.URL()+"/products")

	err = srv.Verify()
	var verr *registry.VerificationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, r.ID, verr.Violations[0].RuleID)
	assert.Equal(t, "products", verr.Violations[0].Rule)
	assert.Equal(t, 1, verr.Violations[0].Observed)
	assert.Equal(t, rule.Times(2), verr.Violations[0].Expected)
}

func TestUnmatchedDefault(t *testing.T) {
	r, err := rule.On("GET", "/products").Build()
	require.NoError(t, err)
	srv := startServer(t, NewBuilder().WithHTTP().WithRules(r))

	status, body := get(t, srv, srv.URL()+"/orders")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Empty(t, body)
	assert.Equal(t, 0, r.Calls())

	entries := srv.Requests()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Matched())
	assert.Equal(t, http.StatusNotFound, entries[0].Status)
	require.Len(t, entries[0].NearMisses, 1)
	assert.Contains(t, entries[0].NearMisses[0].Reason, "path")
}

func TestCustomDefaultResponse(t *testing.T) {
	srv := startServer(t, NewBuilder().WithHTTP().WithDefaultResponse(http.StatusTeapot, "no rule"))
	status, body := get(t, srv, srv.URL()+"/anything")
	assert.Equal(t, http.StatusTeapot, status)
	assert.Equal(t, "no rule", body)
}

func TestConcurrentRequestsCountExactly(t *testing.T) {
	r, err := rule.On("GET", "/products").Build()
	require.NoError(t, err)
	srv := startServer(t, NewBuilder().WithHTTP().WithRules(r))

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := srv.Client().Get(srv.URL() + "/products")
			if err != nil {
				errs <- err
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 100, r.Calls())
	assert.Len(t, srv.Requests(), 100)
}

func TestRenderFailureIs500(t *testing.T) {
	srv := startServer(t, NewBuilder().WithHTTP().
		WithRuleBuilders(rule.On("GET", "/broken").WithTemplate().WithResponseBody("{{request.path")))

	status, body := get(t, srv, srv.URL()+"/broken")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "unterminated")

	entries := srv.Requests()
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].Error)
}

func TestPanicIsIsolated(t *testing.T) {
	srv := startServer(t, NewBuilder().WithHTTP().WithRuleBuilders(
		rule.On("POST", "/panic").WithBodyFunc(func(string) bool { panic("boom") }),
		rule.On("GET", "/ok"),
	))

	resp, err := srv.Client().Post(srv.URL()+"/panic", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	status, _ := get(t, srv, srv.URL()+"/ok")
	assert.Equal(t, http.StatusOK, status)
}

func TestResponseDelay(t *testing.T) {
	srv := startServer(t, NewBuilder().WithHTTP().
		WithRuleBuilders(rule.On("GET", "/slow").WithDelay(50*time.Millisecond)))

	start := time.Now()
	status, _ := get(t, srv, srv.URL()+"/slow")
	assert.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestStopAbortsDelayedResponses(t *testing.T) {
	srv, err := NewBuilder().WithHTTP().WithShutdownTimeout(2 * time.Second).
		WithRuleBuilders(rule.On("GET", "/slow").WithDelay(time.Minute)).Build()
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := srv.Client().Get(srv.URL() + "/slow")
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	require.Eventually(t, func() bool {
		return srv.Rules()[0].Calls() == 1
	}, 2*time.Second, 10*time.Millisecond)

	start := time.Now()
	require.NoError(t, srv.Stop())
	assert.Less(t, time.Since(start), time.Second)
	<-done
}

func TestBindError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	srv, err := NewBuilder().WithHTTP().WithHTTPSPort(port).Build()
	require.NoError(t, err)

	err = srv.Start()
	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, "https", bindErr.Scheme)
	assert.Error(t, errors.Unwrap(err))
	assert.Equal(t, StateNew, srv.State())
	assert.Equal(t, -1, srv.HTTPPort(), "already-bound HTTP listener must be released")
}

func TestReset(t *testing.T) {
	srv := startServer(t, NewBuilder().WithHTTP().WithRuleBuilders(rule.On("GET", "/a").ExpectCalls(5)))
	get(t, srv, srv.URL()+"/a")

	srv.Reset()

	assert.Empty(t, srv.Rules())
	assert.Empty(t, srv.Requests())
	assert.NoError(t, srv.Verify())
	status, _ := get(t, srv, srv.URL()+"/a")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStopReleasesGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv, err := NewBuilder().WithHTTP().WithHTTPS().
		WithRuleBuilders(rule.On("GET", "/x")).Build()
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	for _, base := range []string{srv.URL(), srv.HTTPSURL()} {
		resp, err := srv.Client().Get(base + "/x")
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}

	require.NoError(t, srv.Stop())
}

func TestHandlerWithoutListener(t *testing.T) {
	srv, err := NewBuilder().WithHTTP().WithRuleBuilders(rule.On("GET", "/direct").WithResponseBody("ok")).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/direct", nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Len(t, srv.Requests(), 1)
}

func TestShutdownErrorUnwrap(t *testing.T) {
	inner := errors.New("listener stuck")
	err := &ShutdownError{Errs: []error{inner, context.DeadlineExceeded}}
	assert.ErrorIs(t, err, inner)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "listener stuck")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "new", StateNew.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
