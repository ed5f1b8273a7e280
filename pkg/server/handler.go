package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/commerce-it/mockserver/pkg/requestlog"
	"github.com/commerce-it/mockserver/pkg/rule"
)

// maxNearMisses bounds the rules explained for an unmatched request.
const maxNearMisses = 5

// ServeHTTP dispatches r to the first matching rule. It journals every
// request and turns render failures and panics into a 500 for that
// request only.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w}
	req := rule.NewRequest(r)

	entry := &requestlog.Entry{
		Timestamp:   start,
		Scheme:      schemeHTTP,
		Method:      r.Method,
		Path:        r.URL.Path,
		QueryString: r.URL.RawQuery,
		Headers:     r.Header.Clone(),
		RemoteAddr:  r.RemoteAddr,
	}
	if r.TLS != nil {
		entry.Scheme = schemeHTTPS
	}

	defer func() {
		if p := recover(); p != nil {
			s.log.Error("panic while handling request",
				"method", r.Method, "path", r.URL.Path, "panic", p, "stack", string(debug.Stack()))
			entry.Error = fmt.Sprintf("panic: %v", p)
			if !rec.wroteHeader {
				http.Error(rec, "internal error: "+entry.Error, http.StatusInternalServerError)
			}
		}
		entry.SetBody(req.Body())
		entry.Status = rec.status
		entry.DurationMs = time.Since(start).Milliseconds()
		s.journal.Log(entry)
	}()

	matched, ok := s.registry.Match(req)
	if !ok {
		s.handleUnmatched(rec, req, entry)
		return
	}

	entry.MatchedRuleID = matched.ID
	entry.MatchedRule = matched.String()

	resp, err := matched.Respond(req)
	if err != nil {
		s.log.Error("rendering response failed", "rule", matched.String(), "error", err)
		entry.Error = err.Error()
		http.Error(rec, err.Error(), http.StatusInternalServerError)
		return
	}

	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		select {
		case <-timer.C:
		case <-r.Context().Done():
			timer.Stop()
			entry.Error = "request canceled during delay"
			rec.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}

	if err := resp.Write(rec); err != nil {
		s.log.Debug("writing response failed", "rule", matched.String(), "error", err)
	}
	s.log.Debug("request matched", "method", r.Method, "path", r.URL.Path, "rule", matched.String(), "status", rec.status)
}

func (s *Server) handleUnmatched(w http.ResponseWriter, req *rule.Request, entry *requestlog.Entry) {
	entry.NearMisses = s.registry.Explain(req, maxNearMisses)

	if s.log.Enabled(req.HTTPRequest().Context(), slog.LevelDebug) {
		attrs := []any{"method", req.Method(), "path", req.Path()}
		for _, nm := range entry.NearMisses {
			attrs = append(attrs, "rule."+nm.Rule, nm.Reason)
		}
		s.log.Debug("no rule matched", attrs...)
	}

	w.WriteHeader(s.defaultStatus)
	if len(s.defaultBody) > 0 {
		_, _ = w.Write(s.defaultBody)
	}
}

// statusRecorder remembers the status written through it.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
