package testing

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/commerce-it/mockserver/pkg/registry"
	"github.com/commerce-it/mockserver/pkg/rule"
	"github.com/commerce-it/mockserver/pkg/server"
)

// MockServer is a running mock server bound to a test.
type MockServer struct {
	t   testing.TB
	srv *server.Server
}

// New builds and starts a server from b and stops it when the test
// completes. A nil builder serves HTTP on an ephemeral port.
// Build and bind failures abort the test.
func New(t testing.TB, b *server.Builder) *MockServer {
	t.Helper()

	if b == nil {
		b = server.NewBuilder().WithHTTP()
	}
	srv, err := b.Build()
	if err != nil {
		t.Fatalf("building mock server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("starting mock server: %v", err)
	}

	m := &MockServer{t: t, srv: srv}
	t.Cleanup(m.Stop)
	return m
}

// Stop stops the server. Shutdown faults are reported with t.Logf since
// they do not affect the test outcome.
func (m *MockServer) Stop() {
	if err := m.srv.Stop(); err != nil {
		m.t.Logf("stopping mock server: %v", err)
	}
}

// Server returns the underlying server.
func (m *MockServer) Server() *server.Server { return m.srv }

// URL returns the HTTP base URL.
func (m *MockServer) URL() string { return m.srv.URL() }

// HTTPSURL returns the HTTPS base URL.
func (m *MockServer) HTTPSURL() string { return m.srv.HTTPSURL() }

// HTTPPort returns the bound HTTP port, or -1.
func (m *MockServer) HTTPPort() int { return m.srv.HTTPPort() }

// HTTPSPort returns the bound HTTPS port, or -1.
func (m *MockServer) HTTPSPort() int { return m.srv.HTTPSPort() }

// Client returns an HTTP client that trusts the server certificate.
func (m *MockServer) Client() *http.Client { return m.srv.Client() }

// Add registers built rules.
func (m *MockServer) Add(rules ...*rule.Rule) { m.srv.Add(rules...) }

// AddBuilder builds and registers a rule, failing the test on a build error.
func (m *MockServer) AddBuilder(b *rule.Builder) *rule.Rule {
	m.t.Helper()
	r, err := m.srv.AddBuilder(b)
	if err != nil {
		m.t.Fatalf("building rule: %v", err)
	}
	return r
}

// Reset removes all rules and recorded requests.
func (m *MockServer) Reset() { m.srv.Reset() }

// Verify checks every rule expectation.
func (m *MockServer) Verify() error { return m.srv.Verify() }

// AssertVerified reports each violated expectation as a test error.
func (m *MockServer) AssertVerified(t testing.TB) {
	t.Helper()

	err := m.srv.Verify()
	if err == nil {
		return
	}
	var verr *registry.VerificationError
	if !errors.As(err, &verr) {
		t.Errorf("verification failed: %v", err)
		return
	}
	for i := range verr.Violations {
		t.Errorf("%v", &verr.Violations[i])
	}
}

// Requests returns the recorded requests, oldest first.
func (m *MockServer) Requests() []*RequestLog {
	entries := m.srv.Requests()
	logs := make([]*RequestLog, len(entries))
	for i, e := range entries {
		logs[i] = newRequestLog(e)
	}
	return logs
}

// AssertCalled asserts at least one request hit method and path.
func (m *MockServer) AssertCalled(t testing.TB, method, path string) {
	t.Helper()
	if m.countCalls(method, path) == 0 {
		t.Errorf("expected %s %s to be called, but it was not", method, path)
	}
}

// AssertCalledTimes asserts exactly times requests hit method and path.
func (m *MockServer) AssertCalledTimes(t testing.TB, method, path string, times int) {
	t.Helper()
	if n := m.countCalls(method, path); n != times {
		t.Errorf("expected %s %s to be called %d times, but was called %d times", method, path, times, n)
	}
}

// AssertNotCalled asserts no request hit method and path.
func (m *MockServer) AssertNotCalled(t testing.TB, method, path string) {
	t.Helper()
	if n := m.countCalls(method, path); n > 0 {
		t.Errorf("expected %s %s not to be called, but was called %d times", method, path, n)
	}
}

func (m *MockServer) countCalls(method, path string) int {
	n := 0
	for _, e := range m.srv.Requests() {
		if strings.EqualFold(e.Method, method) && e.Path == path {
			n++
		}
	}
	return n
}

// Run builds and starts a server, calls fn, and stops the server however
// fn exits. A panic in fn is re-raised after the server is stopped.
// Shutdown faults are joined to fn's error.
func Run(b *server.Builder, fn func(*server.Server) error) (err error) {
	srv, err := b.Build()
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	defer func() {
		stopErr := srv.Stop()
		if p := recover(); p != nil {
			panic(p)
		}
		err = errors.Join(err, stopErr)
	}()

	return fn(srv)
}
