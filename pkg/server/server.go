package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/commerce-it/mockserver/pkg/registry"
	"github.com/commerce-it/mockserver/pkg/requestlog"
	"github.com/commerce-it/mockserver/pkg/rule"
	mocktls "github.com/commerce-it/mockserver/pkg/tls"
)

const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"
)

// Server is a rule-based HTTP/HTTPS mock server.
// All methods are safe for concurrent use.
type Server struct {
	host            string
	httpPort        *int
	httpsPort       *int
	cert            *mocktls.Certificate
	defaultStatus   int
	defaultBody     []byte
	shutdownTimeout time.Duration

	registry *registry.Registry
	journal  *requestlog.InMemoryStore
	client   *http.Client
	log      *slog.Logger

	mu        sync.Mutex
	state     State
	listeners []*listener
	cancel    context.CancelFunc // cancels in-flight request contexts on Stop
}

// listener is one bound socket and the http.Server serving it.
type listener struct {
	scheme string
	port   int
	srv    *http.Server
	done   chan struct{} // closed when Serve returns
}

// Start binds every configured listener and begins serving. On a bind
// failure nothing is left bound, a *BindError is returned and the state is
// unchanged.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return ErrAlreadyRunning
	}

	type bound struct {
		scheme string
		ln     net.Listener
	}
	var lns []bound
	closeAll := func() {
		for _, b := range lns {
			_ = b.ln.Close()
		}
	}

	for _, cfg := range []struct {
		scheme string
		port   *int
	}{{schemeHTTP, s.httpPort}, {schemeHTTPS, s.httpsPort}} {
		if cfg.port == nil {
			continue
		}
		addr := net.JoinHostPort(s.host, strconv.Itoa(*cfg.port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			closeAll()
			return &BindError{Scheme: cfg.scheme, Addr: addr, Err: err}
		}
		lns = append(lns, bound{scheme: cfg.scheme, ln: ln})
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.listeners = make([]*listener, 0, len(lns))

	for _, b := range lns {
		l := &listener{
			scheme: b.scheme,
			port:   b.ln.Addr().(*net.TCPAddr).Port,
			srv: &http.Server{
				Handler:           s,
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return baseCtx },
				ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelDebug),
			},
			done: make(chan struct{}),
		}

		ln := b.ln
		if b.scheme == schemeHTTPS {
			ln = tls.NewListener(ln, s.cert.ServerConfig())
		}

		go func() {
			defer close(l.done)
			if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("listener stopped", "scheme", l.scheme, "port", l.port, "error", err)
			}
		}()

		s.listeners = append(s.listeners, l)
		s.log.Info("listening", "scheme", l.scheme, "addr", net.JoinHostPort(s.host, strconv.Itoa(l.port)))
	}

	s.state = StateRunning
	return nil
}

// Stop shuts the listeners down gracefully within the shutdown timeout,
// then closes whatever is left. It is a no-op unless the server is
// running. Faults are logged and returned as a *ShutdownError; the server
// is stopped either way.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	// Abort response delays so shutdown does not wait on them.
	s.cancel()

	var errs []error
	for _, l := range s.listeners {
		if err := l.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s shutdown: %w", l.scheme, err))
			if err := l.srv.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s close: %w", l.scheme, err))
			}
		}
		<-l.done
	}
	s.client.CloseIdleConnections()

	s.listeners = nil
	s.cancel = nil
	s.state = StateStopped

	if len(errs) > 0 {
		err := &ShutdownError{Errs: errs}
		s.log.Warn("shutdown incomplete", "error", err)
		return err
	}
	s.log.Info("stopped")
	return nil
}

// State returns the lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HTTPPort returns the bound HTTP port, or -1 when not running or not
// configured.
func (s *Server) HTTPPort() int {
	return s.port(schemeHTTP)
}

// HTTPSPort returns the bound HTTPS port, or -1 when not running or not
// configured.
func (s *Server) HTTPSPort() int {
	return s.port(schemeHTTPS)
}

func (s *Server) port(scheme string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.listeners {
		if l.scheme == scheme {
			return l.port
		}
	}
	return -1
}

// URL returns the base URL of the HTTP listener, or "" when it is not bound.
func (s *Server) URL() string {
	return s.baseURL(schemeHTTP, s.HTTPPort())
}

// HTTPSURL returns the base URL of the HTTPS listener, or "" when it is not
// bound.
func (s *Server) HTTPSURL() string {
	return s.baseURL(schemeHTTPS, s.HTTPSPort())
}

func (s *Server) baseURL(scheme string, port int) string {
	if port < 0 {
		return ""
	}
	host := s.host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Client returns an HTTP client that trusts the server's certificate.
func (s *Server) Client() *http.Client {
	return s.client
}

// Certificate returns the HTTPS certificate, or nil when HTTPS is disabled.
func (s *Server) Certificate() *mocktls.Certificate {
	return s.cert
}

// Add registers rules after the existing ones.
func (s *Server) Add(rules ...*rule.Rule) {
	s.registry.Add(rules...)
}

// AddBuilder builds and registers a rule.
func (s *Server) AddBuilder(b *rule.Builder) (*rule.Rule, error) {
	r, err := b.Build()
	if err != nil {
		return nil, err
	}
	s.registry.Add(r)
	return r, nil
}

// Reset removes all rules and clears the request journal.
func (s *Server) Reset() {
	s.registry.Reset()
	s.journal.Clear()
}

// Verify checks every rule expectation. It returns a
// *registry.VerificationError listing all violations, or nil.
func (s *Server) Verify() error {
	return s.registry.Verify()
}

// Rules returns the registered rules in match order.
func (s *Server) Rules() []*rule.Rule {
	return s.registry.Rules()
}

// Registry returns the server's rule registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Requests returns the journaled requests, oldest first.
func (s *Server) Requests() []*requestlog.Entry {
	entries := s.journal.List(nil)
	slices.Reverse(entries)
	return entries
}

// Journal returns the request journal for filtered queries.
func (s *Server) Journal() requestlog.Store {
	return s.journal
}
