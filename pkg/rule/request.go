package rule

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// MaxBodySize is the maximum number of request body bytes read for matching.
const MaxBodySize = 10 << 20 // 10MB

// ErrBodyTooLarge is reported by Request.BodyErr when the body exceeds MaxBodySize.
var ErrBodyTooLarge = errors.New("request body exceeds maximum size")

// Request wraps an incoming *http.Request so the body can be inspected by
// every rule without consuming it more than once.
type Request struct {
	raw *http.Request

	bodyOnce sync.Once
	body     []byte
	bodyErr  error

	queryOnce sync.Once
	query     url.Values

	jsonOnce sync.Once
	json     any
}

// NewRequest wraps r. The body is read lazily on first access.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

// HTTPRequest returns the wrapped request.
func (r *Request) HTTPRequest() *http.Request { return r.raw }

// Method returns the request method.
func (r *Request) Method() string { return r.raw.Method }

// Path returns the request URL path.
func (r *Request) Path() string { return r.raw.URL.Path }

// Query returns the parsed query string.
func (r *Request) Query() url.Values {
	r.queryOnce.Do(func() {
		r.query = r.raw.URL.Query()
	})
	return r.query
}

// Header returns the request headers.
func (r *Request) Header() http.Header { return r.raw.Header }

// Body returns the request body, reading it on first call.
func (r *Request) Body() []byte {
	r.bodyOnce.Do(r.readBody)
	return r.body
}

// BodyString returns the request body as a string.
func (r *Request) BodyString() string {
	return string(r.Body())
}

// BodyErr returns the error encountered while reading the body, if any.
func (r *Request) BodyErr() error {
	r.bodyOnce.Do(r.readBody)
	return r.bodyErr
}

// JSON returns the body decoded as JSON, or nil when it is not valid JSON.
func (r *Request) JSON() any {
	r.jsonOnce.Do(func() {
		body := r.Body()
		if len(body) == 0 {
			return
		}
		var v any
		if err := json.Unmarshal(body, &v); err == nil {
			r.json = v
		}
	})
	return r.json
}

func (r *Request) readBody() {
	if r.raw.Body == nil {
		return
	}
	defer func() { _ = r.raw.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(r.raw.Body, MaxBodySize+1))
	if err != nil {
		r.bodyErr = err
	}
	if len(data) > MaxBodySize {
		data = data[:MaxBodySize]
		r.bodyErr = ErrBodyTooLarge
	}
	r.body = data
}
