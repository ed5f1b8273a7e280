package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/commerce-it/mockserver/internal/matching"
)

// Template errors.
var (
	ErrUnterminated      = errors.New("unterminated template expression")
	ErrUnknownExpression = errors.New("unknown template expression")
	ErrBodyNotJSON       = errors.New("request body is not JSON")
)

// Engine processes templates with variable substitution.
// An Engine is stateless and safe for concurrent use.
type Engine struct {
	now func() time.Time
}

// New creates a new template engine.
func New() *Engine {
	return &Engine{now: time.Now}
}

// Process evaluates a template string with the given context.
// It finds all {{expression}} patterns and replaces them with evaluated results.
func (e *Engine) Process(tmpl string, ctx *Context) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}
	if ctx == nil {
		ctx = &Context{}
	}

	var sb strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			return "", fmt.Errorf("%w at offset %d", ErrUnterminated, len(tmpl)-len(rest)+start)
		}

		sb.WriteString(rest[:start])
		expr := strings.TrimSpace(rest[start+2 : start+2+end])
		value, err := e.evaluate(expr, ctx)
		if err != nil {
			return "", err
		}
		sb.WriteString(value)
		rest = rest[start+2+end+2:]
	}
}

// evaluate processes a single template expression and returns its value.
func (e *Engine) evaluate(expr string, ctx *Context) (string, error) {
	switch expr {
	case "uuid":
		return uuid.New().String(), nil
	case "now":
		return e.now().Format(time.RFC3339), nil
	case "timestamp":
		return strconv.FormatInt(e.now().Unix(), 10), nil
	}

	if field, ok := strings.CutPrefix(expr, "request."); ok {
		return e.evaluateRequest(field, ctx)
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownExpression, expr)
}

// evaluateRequest resolves request.* fields.
func (e *Engine) evaluateRequest(field string, ctx *Context) (string, error) {
	req := &ctx.Request

	switch field {
	case "method":
		return req.Method, nil
	case "path":
		return req.Path, nil
	case "url":
		return req.URL, nil
	case "body":
		return req.RawBody, nil
	}

	if name, ok := strings.CutPrefix(field, "query."); ok {
		return req.Query.Get(name), nil
	}
	if name, ok := strings.CutPrefix(field, "header."); ok {
		return req.Headers.Get(name), nil
	}
	if name, ok := strings.CutPrefix(field, "pathParam."); ok {
		return req.PathParams[name], nil
	}
	if path, ok := strings.CutPrefix(field, "body."); ok {
		return lookupBody(path, req.Body)
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownExpression, "request."+field)
}

func lookupBody(path string, body any) (string, error) {
	if body == nil {
		return "", ErrBodyNotJSON
	}
	value, found, err := matching.Lookup("$."+path, body)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return stringify(value), nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
