// Package http holds the responses scripts describe and the types they are
// made of.
package http

import (
	nethttp "net/http"
	"time"

	"github.com/purplejs/purplejs/js/value"
)

// DefaultContentType is the content type of responses that don't say
// otherwise.
const DefaultContentType = "text/plain; charset=utf-8"

// Response is an immutable HTTP response built with a ResponseBuilder.
type Response struct {
	status      int
	contentType string
	body        []byte
	headers     nethttp.Header
	cookies     []*Cookie
	redirect    string
	webSocket   *WebSocketConfig
	value       value.Value
}

// Status returns the status code.
func (r *Response) Status() int { return r.status }

// ContentType returns the media type of the body.
func (r *Response) ContentType() string { return r.contentType }

// Body returns the body, or nil if there is none.
func (r *Response) Body() []byte {
	if r.body == nil {
		return nil
	}
	b := make([]byte, len(r.body))
	copy(b, r.body)
	return b
}

// Headers returns a copy of the headers.
func (r *Response) Headers() nethttp.Header { return r.headers.Clone() }

// Header returns the first value of the named header.
func (r *Response) Header(name string) string { return r.headers.Get(name) }

// Cookies returns the cookies in the order they were added.
func (r *Response) Cookies() []*Cookie {
	cookies := make([]*Cookie, len(r.cookies))
	for i, c := range r.cookies {
		cc := *c
		cookies[i] = &cc
	}
	return cookies
}

// Redirect returns the redirect location, or "" if the response isn't a
// redirect.
func (r *Response) Redirect() string { return r.redirect }

// WebSocket returns the websocket configuration, or nil if the connection
// shouldn't be upgraded.
func (r *Response) WebSocket() *WebSocketConfig { return r.webSocket }

// Value returns the script value the response was built from.
func (r *Response) Value() value.Value { return r.value }

// ResponseBuilder accumulates the parts of a response.
type ResponseBuilder struct {
	r Response
}

// NewResponseBuilder returns a builder of a 200 plain text response.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{r: Response{
		status:      nethttp.StatusOK,
		contentType: DefaultContentType,
		headers:     make(nethttp.Header),
	}}
}

// Status sets the status code.
func (b *ResponseBuilder) Status(status int) *ResponseBuilder {
	b.r.status = status
	return b
}

// ContentType sets the content type. An empty type restores the default.
func (b *ResponseBuilder) ContentType(contentType string) *ResponseBuilder {
	if contentType == "" {
		contentType = DefaultContentType
	}
	b.r.contentType = contentType
	return b
}

// Body sets the body.
func (b *ResponseBuilder) Body(body []byte) *ResponseBuilder {
	b.r.body = body
	return b
}

// Header sets a header, replacing the values it had.
func (b *ResponseBuilder) Header(name, v string) *ResponseBuilder {
	b.r.headers.Set(name, v)
	return b
}

// AddHeader adds a value to a header.
func (b *ResponseBuilder) AddHeader(name, v string) *ResponseBuilder {
	b.r.headers.Add(name, v)
	return b
}

// Cookie adds a cookie.
func (b *ResponseBuilder) Cookie(c *Cookie) *ResponseBuilder {
	if c != nil {
		b.r.cookies = append(b.r.cookies, c)
	}
	return b
}

// Redirect records the location the response redirects to.
func (b *ResponseBuilder) Redirect(location string) *ResponseBuilder {
	b.r.redirect = location
	return b
}

// WebSocket sets the websocket configuration.
func (b *ResponseBuilder) WebSocket(config *WebSocketConfig) *ResponseBuilder {
	b.r.webSocket = config
	return b
}

// Value sets the script value the response is built from.
func (b *ResponseBuilder) Value(v value.Value) *ResponseBuilder {
	b.r.value = v
	return b
}

// Build returns a response with a copy of everything added so far.
func (b *ResponseBuilder) Build() *Response {
	r := b.r
	r.headers = b.r.headers.Clone()
	if b.r.body != nil {
		r.body = make([]byte, len(b.r.body))
		copy(r.body, b.r.body)
	}
	r.cookies = make([]*Cookie, len(b.r.cookies))
	for i, c := range b.r.cookies {
		cc := *c
		r.cookies[i] = &cc
	}
	if b.r.webSocket != nil {
		r.webSocket = b.r.webSocket.clone()
	}
	return &r
}

// WebSocketConfig is what a response that upgrades its connection to a
// websocket asks for.
type WebSocketConfig struct {
	// Group is the group the session joins, if any.
	Group string
	// SubProtocols are the subprotocols the server supports.
	SubProtocols []string
	// Attributes are handed to the script with every event of the session.
	Attributes map[string]interface{}
	// Timeout closes sessions that were idle for that long. Zero disables it.
	Timeout time.Duration
}

func (c *WebSocketConfig) clone() *WebSocketConfig {
	cc := *c
	if c.SubProtocols != nil {
		cc.SubProtocols = append([]string(nil), c.SubProtocols...)
	}
	if c.Attributes != nil {
		cc.Attributes = make(map[string]interface{}, len(c.Attributes))
		for k, v := range c.Attributes {
			cc.Attributes[k] = v
		}
	}
	return &cc
}
