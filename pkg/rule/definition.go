package rule

import (
	"maps"
	"slices"
)

// Definition is the serializable form of a rule, used by rule files and the
// admin API. Go predicates set with WithBodyFunc are not representable.
type Definition struct {
	ID       string             `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string             `json:"name,omitempty" yaml:"name,omitempty"`
	Request  RequestDefinition  `json:"request" yaml:"request"`
	Response ResponseDefinition `json:"response" yaml:"response"`
	Expect   *Expectation       `json:"expect,omitempty" yaml:"expect,omitempty"`
}

// RequestDefinition describes which requests a rule accepts.
// Every non-empty field must match.
type RequestDefinition struct {
	Method       string              `json:"method,omitempty" yaml:"method,omitempty"`
	Path         string              `json:"path,omitempty" yaml:"path,omitempty"`
	PathPattern  string              `json:"pathPattern,omitempty" yaml:"pathPattern,omitempty"`
	Headers      map[string]string   `json:"headers,omitempty" yaml:"headers,omitempty"`
	Query        map[string][]string `json:"query,omitempty" yaml:"query,omitempty"`
	Body         *string             `json:"body,omitempty" yaml:"body,omitempty"`
	BodyContains string              `json:"bodyContains,omitempty" yaml:"bodyContains,omitempty"`
	BodyPattern  string              `json:"bodyPattern,omitempty" yaml:"bodyPattern,omitempty"`
	BodyJSONPath map[string]any      `json:"bodyJsonPath,omitempty" yaml:"bodyJsonPath,omitempty"`
	BodyExpr     string              `json:"bodyExpr,omitempty" yaml:"bodyExpr,omitempty"`
	BodySchema   any                 `json:"bodySchema,omitempty" yaml:"bodySchema,omitempty"` // JSON Schema, draft 2020-12
}

// ResponseDefinition describes the response a rule renders.
type ResponseDefinition struct {
	Status   int               `json:"status,omitempty" yaml:"status,omitempty"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body     string            `json:"body,omitempty" yaml:"body,omitempty"`
	JSON     any               `json:"json,omitempty" yaml:"json,omitempty"` // Encoded as the body when set
	BodyFile string            `json:"bodyFile,omitempty" yaml:"bodyFile,omitempty"`
	Template bool              `json:"template,omitempty" yaml:"template,omitempty"`
	Delay    string            `json:"delay,omitempty" yaml:"delay,omitempty"` // Go duration, e.g. "150ms"
}

// FromDefinition returns a Builder initialized from def. Validation errors
// surface from Build.
func FromDefinition(def Definition) *Builder {
	b := &Builder{def: def.clone()}
	if def.Response.JSON != nil {
		b.WithJSON(def.Response.JSON)
	}
	return b
}

func (d Definition) clone() Definition {
	out := d
	out.Request.Headers = maps.Clone(d.Request.Headers)
	if d.Request.Query != nil {
		out.Request.Query = make(map[string][]string, len(d.Request.Query))
		for k, v := range d.Request.Query {
			out.Request.Query[k] = slices.Clone(v)
		}
	}
	if d.Request.Body != nil {
		body := *d.Request.Body
		out.Request.Body = &body
	}
	out.Request.BodyJSONPath = maps.Clone(d.Request.BodyJSONPath)
	out.Response.Headers = maps.Clone(d.Response.Headers)
	out.Response.JSON = nil
	if d.Expect != nil {
		e := *d.Expect
		out.Expect = &e
	}
	return out
}
