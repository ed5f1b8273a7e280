package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/commerce-it/mockserver/pkg/httputil"
	"github.com/commerce-it/mockserver/pkg/logging"
	"github.com/commerce-it/mockserver/pkg/registry"
	"github.com/commerce-it/mockserver/pkg/requestlog"
	"github.com/commerce-it/mockserver/pkg/rule"
)

// Target is the mock server controlled by the API.
type Target interface {
	AddBuilder(b *rule.Builder) (*rule.Rule, error)
	Rules() []*rule.Rule
	Reset()
	Verify() error
	Journal() requestlog.Store
}

// API serves the control routes for a Target.
type API struct {
	target Target
	log    *slog.Logger
	mux    *http.ServeMux

	mu         sync.Mutex
	httpServer *http.Server
	port       int
	done       chan struct{}
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.log = logging.Component(logger, "admin")
	}
}

// New creates the control API for target.
func New(target Target, opts ...Option) *API {
	a := &API{
		target: target,
		log:    logging.Nop(),
		mux:    http.NewServeMux(),
		port:   -1,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("GET /health", a.handleHealth)
	a.mux.HandleFunc("GET /rules", a.handleListRules)
	a.mux.HandleFunc("POST /rules", a.handleAddRule)
	a.mux.HandleFunc("DELETE /rules", a.handleReset)
	a.mux.HandleFunc("GET /verify", a.handleVerify)
	a.mux.HandleFunc("GET /requests", a.handleListRequests)
	a.mux.HandleFunc("DELETE /requests", a.handleClearRequests)

	return a
}

// Handler returns the HTTP handler serving the routes.
func (a *API) Handler() http.Handler {
	return a.mux
}

// Start listens on addr and serves in the background.
func (a *API) Start(addr string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.httpServer != nil {
		return errors.New("admin API already running")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("admin API listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           a.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("admin API server error", "error", err)
		}
	}()

	a.httpServer = srv
	a.done = done
	a.port = ln.Addr().(*net.TCPAddr).Port
	a.log.Info("admin API listening", "addr", ln.Addr().String())
	return nil
}

// Port returns the bound port, or -1 when not running.
func (a *API) Port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.port
}

// Stop gracefully shuts the API down.
func (a *API) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.httpServer == nil {
		return nil
	}
	err := a.httpServer.Shutdown(ctx)
	if err != nil {
		_ = a.httpServer.Close()
	}
	<-a.done
	a.httpServer = nil
	a.port = -1
	return err
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Rules: len(a.target.Rules())})
}

func (a *API) handleListRules(w http.ResponseWriter, _ *http.Request) {
	rules := a.target.Rules()
	out := make([]RuleStatus, len(rules))
	for i, r := range rules {
		out[i] = newRuleStatus(r)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (a *API) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var def rule.Definition
	if err := httputil.DecodeJSON(r, &def); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	added, err := a.target.AddBuilder(rule.FromDefinition(def))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_rule", err.Error())
		return
	}

	a.log.Info("rule added", "id", added.ID, "rule", added.String())
	httputil.WriteJSON(w, http.StatusCreated, newRuleStatus(added))
}

func (a *API) handleReset(w http.ResponseWriter, _ *http.Request) {
	a.target.Reset()
	a.log.Info("rules reset")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleVerify(w http.ResponseWriter, _ *http.Request) {
	err := a.target.Verify()
	if err == nil {
		httputil.WriteJSON(w, http.StatusOK, VerifyResponse{OK: true})
		return
	}

	var verr *registry.VerificationError
	if !errors.As(err, &verr) {
		httputil.WriteError(w, http.StatusInternalServerError, "verify_failed", err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusConflict, VerifyResponse{OK: false, Violations: verr.Violations})
}

func (a *API) handleListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &requestlog.Filter{
		Method:        q.Get("method"),
		Path:          q.Get("path"),
		MatchedRuleID: q.Get("rule"),
	}
	if v := q.Get("unmatched"); v != "" {
		unmatched, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid_parameter", "unmatched must be a boolean")
			return
		}
		filter.Unmatched = unmatched
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid_parameter", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	httputil.WriteJSON(w, http.StatusOK, a.target.Journal().List(filter))
}

func (a *API) handleClearRequests(w http.ResponseWriter, _ *http.Request) {
	a.target.Journal().Clear()
	w.WriteHeader(http.StatusNoContent)
}
