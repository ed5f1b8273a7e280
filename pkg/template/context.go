package template

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// Context holds all available data for template evaluation.
type Context struct {
	Request RequestContext
}

// RequestContext contains HTTP request data available to templates.
type RequestContext struct {
	Method     string
	Path       string
	URL        string
	RawBody    string
	Body       any // Parsed JSON or nil
	Query      url.Values
	Headers    http.Header
	PathParams map[string]string
}

// NewContext creates a template context from an HTTP request and its
// already-read body.
func NewContext(r *http.Request, body []byte) *Context {
	ctx := &Context{
		Request: RequestContext{
			Method:     r.Method,
			Path:       r.URL.Path,
			URL:        r.URL.String(),
			RawBody:    string(body),
			Query:      r.URL.Query(),
			Headers:    r.Header,
			PathParams: make(map[string]string),
		},
	}

	if len(body) > 0 {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			ctx.Request.Body = parsed
		}
	}

	return ctx
}

// SetPathParams merges path parameters into the context.
func (c *Context) SetPathParams(params map[string]string) {
	if c.Request.PathParams == nil {
		c.Request.PathParams = make(map[string]string, len(params))
	}
	for k, v := range params {
		c.Request.PathParams[k] = v
	}
}
