package rule

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/commerce-it/mockserver/internal/matching"
	"github.com/commerce-it/mockserver/pkg/template"
)

var templates = template.New()

// ResponseSpec is the compiled response side of a rule.
type ResponseSpec struct {
	Status    int
	Header    http.Header
	Body      []byte
	BodyFile  string // Read on every response when set
	Templated bool
	Delay     time.Duration
}

// Response is a rendered response ready to be written.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Delay  time.Duration
}

// Write writes the status, headers and body to w. Delay is the caller's
// concern.
func (r *Response) Write(w http.ResponseWriter) error {
	for k, values := range r.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(r.Status)
	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}

func (r *Rule) render(req *Request) (*Response, error) {
	spec := &r.response
	resp := &Response{
		Status: spec.Status,
		Header: spec.Header.Clone(),
		Body:   spec.Body,
		Delay:  spec.Delay,
	}

	if spec.BodyFile != "" {
		data, err := os.ReadFile(spec.BodyFile)
		if err != nil {
			return nil, fmt.Errorf("reading response body file: %w", err)
		}
		resp.Body = data
	}

	if !spec.Templated {
		return resp, nil
	}

	ctx := template.NewContext(req.HTTPRequest(), req.Body())
	ctx.SetPathParams(r.pathParams(req))

	body, err := templates.Process(string(resp.Body), ctx)
	if err != nil {
		return nil, fmt.Errorf("rendering response body: %w", err)
	}
	resp.Body = []byte(body)

	for name, values := range resp.Header {
		for i, v := range values {
			rendered, err := templates.Process(v, ctx)
			if err != nil {
				return nil, fmt.Errorf("rendering header %s: %w", name, err)
			}
			values[i] = rendered
		}
	}

	return resp, nil
}

// pathParams collects {param} segments and named regex groups.
func (r *Rule) pathParams(req *Request) map[string]string {
	params := matching.PathParams(r.matcher.path, req.Path())
	if _, captures := matching.MatchPathRegexp(r.matcher.pathRegex, req.Path()); len(captures) > 0 {
		if params == nil {
			params = make(map[string]string, len(captures))
		}
		for k, v := range captures {
			params[k] = v
		}
	}
	return params
}
