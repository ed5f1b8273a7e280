package rule

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/expr-lang/expr"
	"github.com/google/uuid"

	"github.com/commerce-it/mockserver/internal/matching"
)

// Builder builds rules using a fluent API.
// Methods record the first error encountered; Build returns it.
type Builder struct {
	def      Definition
	bodyFunc func(body string) bool
	err      error
}

// NewBuilder returns an empty builder. A rule built from it matches every
// request and answers 200 with an empty body.
func NewBuilder() *Builder {
	return &Builder{}
}

// On returns a builder matching method and path.
func On(method, path string) *Builder {
	return NewBuilder().WithMethod(method).WithPath(path)
}

// setError records the first error encountered during building.
func (b *Builder) setError(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns any error encountered during building.
func (b *Builder) Err() error {
	return b.err
}

// Named sets a human-readable rule name used in logs and verification reports.
func (b *Builder) Named(name string) *Builder {
	b.def.Name = name
	return b
}

// WithID sets the rule ID instead of a generated UUID.
func (b *Builder) WithID(id string) *Builder {
	b.def.ID = id
	return b
}

// --- request side ---

// WithMethod matches the HTTP method, case-insensitively.
func (b *Builder) WithMethod(method string) *Builder {
	b.def.Request.Method = method
	return b
}

// WithPath matches the URL path. The path may be exact, contain {param}
// segments, or use * wildcards.
func (b *Builder) WithPath(path string) *Builder {
	b.def.Request.Path = path
	return b
}

// WithPathPattern matches the URL path against a regular expression.
// Named groups become path parameters for templates.
func (b *Builder) WithPathPattern(pattern string) *Builder {
	b.def.Request.PathPattern = pattern
	return b
}

// WithHeader requires a header. The value may use * wildcards.
func (b *Builder) WithHeader(name, value string) *Builder {
	if b.def.Request.Headers == nil {
		b.def.Request.Headers = make(map[string]string)
	}
	b.def.Request.Headers[name] = value
	return b
}

// WithContentType requires the Content-Type header.
func (b *Builder) WithContentType(contentType string) *Builder {
	return b.WithHeader("Content-Type", contentType)
}

// WithQueryParam requires a query parameter. Calling it again for the same
// name adds values; the request must carry every one of them.
func (b *Builder) WithQueryParam(name string, values ...string) *Builder {
	if b.def.Request.Query == nil {
		b.def.Request.Query = make(map[string][]string)
	}
	b.def.Request.Query[name] = append(b.def.Request.Query[name], values...)
	return b
}

// WithBody requires the body to equal body exactly.
func (b *Builder) WithBody(body string) *Builder {
	b.def.Request.Body = &body
	return b
}

// WithBodyFromFile requires the body to equal the contents of path.
func (b *Builder) WithBodyFromFile(path string) *Builder {
	data, err := os.ReadFile(path)
	if err != nil {
		b.setError(fmt.Errorf("WithBodyFromFile: %w", err))
		return b
	}
	return b.WithBody(string(data))
}

// WithBodyContains requires the body to contain substr.
func (b *Builder) WithBodyContains(substr string) *Builder {
	b.def.Request.BodyContains = substr
	return b
}

// WithBodyPattern requires the body to match a regular expression.
func (b *Builder) WithBodyPattern(pattern string) *Builder {
	b.def.Request.BodyPattern = pattern
	return b
}

// WithBodyJSONPath requires the JSON body to yield expected at path.
// Pass map[string]any{"exists": true} to only check presence.
func (b *Builder) WithBodyJSONPath(path string, expected any) *Builder {
	if b.def.Request.BodyJSONPath == nil {
		b.def.Request.BodyJSONPath = make(map[string]any)
	}
	b.def.Request.BodyJSONPath[path] = expected
	return b
}

// WithBodyExpr requires a boolean expr-lang expression to hold. The
// expression sees method, path, body, json, query and headers.
//
//	WithBodyExpr(`json.variables.sku startsWith "MJ"`)
func (b *Builder) WithBodyExpr(expression string) *Builder {
	b.def.Request.BodyExpr = expression
	return b
}

// WithBodySchema requires the JSON body to satisfy a JSON Schema given as
// a decoded value or a JSON string.
func (b *Builder) WithBodySchema(schema any) *Builder {
	b.def.Request.BodySchema = schema
	return b
}

// WithBodyFunc requires fn to accept the body. The predicate is kept out of
// the rule's Definition.
func (b *Builder) WithBodyFunc(fn func(body string) bool) *Builder {
	b.bodyFunc = fn
	return b
}

// --- response side ---

// RespondWith sets the response status.
func (b *Builder) RespondWith(status int) *Builder {
	return b.WithStatus(status)
}

// WithStatus sets the response status. Default is 200.
func (b *Builder) WithStatus(status int) *Builder {
	if status < 100 || status > 599 {
		b.setError(fmt.Errorf("WithStatus: invalid status code %d", status))
		return b
	}
	b.def.Response.Status = status
	return b
}

// WithResponseBody sets a literal response body.
func (b *Builder) WithResponseBody(body string) *Builder {
	b.def.Response.Body = body
	return b
}

// WithJSON encodes v as the response body and sets Content-Type to
// application/json.
func (b *Builder) WithJSON(v any) *Builder {
	data, err := json.Marshal(v)
	if err != nil {
		b.setError(fmt.Errorf("WithJSON: failed to marshal body: %w", err))
		return b
	}
	b.def.Response.Body = string(data)
	return b.WithResponseContentType("application/json")
}

// WithResponseHeader sets a response header.
func (b *Builder) WithResponseHeader(name, value string) *Builder {
	if b.def.Response.Headers == nil {
		b.def.Response.Headers = make(map[string]string)
	}
	b.def.Response.Headers[http.CanonicalHeaderKey(name)] = value
	return b
}

// WithResponseContentType sets the response Content-Type header.
func (b *Builder) WithResponseContentType(contentType string) *Builder {
	return b.WithResponseHeader("Content-Type", contentType)
}

// WithResponseBodyFromFile serves the contents of path. The file is read on
// every response, so edits show up without rebuilding the rule.
func (b *Builder) WithResponseBodyFromFile(path string) *Builder {
	b.def.Response.BodyFile = path
	return b
}

// WithTemplate renders the response body and header values as templates.
func (b *Builder) WithTemplate() *Builder {
	b.def.Response.Template = true
	return b
}

// WithDelay delays the response by d.
func (b *Builder) WithDelay(d time.Duration) *Builder {
	if d < 0 {
		b.setError(fmt.Errorf("WithDelay: negative delay %s", d))
		return b
	}
	b.def.Response.Delay = d.String()
	return b
}

// --- expectations ---

// Expect sets the expected invocation count.
func (b *Builder) Expect(e Expectation) *Builder {
	b.def.Expect = &e
	return b
}

// ExpectCalls expects exactly n invocations. n <= 0 removes the
// expectation; use Expect(Never()) to assert a rule is never hit.
func (b *Builder) ExpectCalls(n int) *Builder {
	if n <= 0 {
		b.def.Expect = nil
		return b
	}
	return b.Expect(Times(n))
}

// Definition returns the serializable form of the rule being built.
func (b *Builder) Definition() Definition {
	return b.def.clone()
}

// Build validates the builder and returns an immutable Rule.
func (b *Builder) Build() (*Rule, error) {
	if b.err != nil {
		return nil, b.err
	}

	def := b.def.clone()
	if def.ID == "" {
		def.ID = uuid.NewString()
	}

	m, err := compileMatcher(def.Request)
	if err != nil {
		return nil, err
	}
	m.bodyFunc = b.bodyFunc

	resp, err := compileResponse(def.Response)
	if err != nil {
		return nil, err
	}

	if def.Expect != nil {
		if err := def.Expect.validate(); err != nil {
			return nil, err
		}
	}

	return &Rule{
		ID:       def.ID,
		Name:     def.Name,
		matcher:  m,
		response: resp,
		expect:   def.Expect,
		def:      def,
	}, nil
}

func compileMatcher(req RequestDefinition) (matcher, error) {
	m := matcher{
		method:       req.Method,
		path:         req.Path,
		headers:      req.Headers,
		query:        req.Query,
		bodyEquals:   req.Body,
		bodyContains: req.BodyContains,
	}

	if req.PathPattern != "" {
		re, err := regexp.Compile(req.PathPattern)
		if err != nil {
			return m, fmt.Errorf("invalid path pattern %q: %w", req.PathPattern, err)
		}
		m.pathRegex = re
	}

	if req.BodyPattern != "" {
		re, err := regexp.Compile(req.BodyPattern)
		if err != nil {
			return m, fmt.Errorf("invalid body pattern %q: %w", req.BodyPattern, err)
		}
		m.bodyRegex = re
	}

	for path, expected := range req.BodyJSONPath {
		cond, err := matching.NewJSONPathCondition(path, expected)
		if err != nil {
			return m, err
		}
		m.jsonPath = append(m.jsonPath, cond)
	}

	if req.BodySchema != nil {
		schema, err := matching.CompileSchema(req.BodySchema)
		if err != nil {
			return m, err
		}
		m.bodySchema = schema
	}

	if req.BodyExpr != "" {
		program, err := expr.Compile(req.BodyExpr, expr.Env(exprEnv{}), expr.AsBool())
		if err != nil {
			return m, fmt.Errorf("invalid body expression %q: %w", req.BodyExpr, err)
		}
		m.bodyExpr = program
		m.bodyExprSrc = req.BodyExpr
	}

	return m, nil
}

func compileResponse(def ResponseDefinition) (ResponseSpec, error) {
	spec := ResponseSpec{
		Status:    def.Status,
		Header:    make(http.Header, len(def.Headers)),
		Body:      []byte(def.Body),
		BodyFile:  def.BodyFile,
		Templated: def.Template,
	}
	if spec.Status == 0 {
		spec.Status = http.StatusOK
	}
	if spec.Status < 100 || spec.Status > 599 {
		return spec, fmt.Errorf("invalid status code %d", spec.Status)
	}
	for k, v := range def.Headers {
		spec.Header.Set(k, v)
	}
	if def.Delay != "" {
		d, err := time.ParseDuration(def.Delay)
		if err != nil {
			return spec, fmt.Errorf("invalid delay %q: %w", def.Delay, err)
		}
		if d < 0 {
			return spec, fmt.Errorf("invalid delay %q: negative", def.Delay)
		}
		spec.Delay = d
	}
	return spec, nil
}
