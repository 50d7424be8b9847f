// Package response turns the values scripts return into HTTP responses and
// writes those to clients.
package response

import (
	"io"
	"mime"
	nethttp "net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/http/httpguts"

	"github.com/purplejs/purplejs/http"
	"github.com/purplejs/purplejs/js/value"
)

// WebSocketConfigFactory reads the websocket configuration out of the
// webSocket member of a response value. It returns nil when the value
// doesn't ask for an upgrade and must accept absent values.
type WebSocketConfigFactory interface {
	Create(v value.Value) *http.WebSocketConfig
}

// ScriptToResponse maps response values to responses. It has no state of
// its own and is safe for concurrent use as long as the values it reads are.
type ScriptToResponse struct {
	serializer BodySerializer
	webSocket  WebSocketConfigFactory
	logger     logrus.FieldLogger
}

// NewScriptToResponse returns a mapper using the given collaborators. A nil
// serializer is replaced with DefaultSerializer, a nil factory never asks for
// upgrades.
func NewScriptToResponse(
	serializer BodySerializer, webSocket WebSocketConfigFactory, logger logrus.FieldLogger,
) *ScriptToResponse {
	if serializer == nil {
		serializer = DefaultSerializer{}
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &ScriptToResponse{serializer: serializer, webSocket: webSocket, logger: logger}
}

// ToResponse builds the response root describes. Members that are missing
// or have the wrong type are ignored, so this never fails.
func (s *ScriptToResponse) ToResponse(root value.Value) *http.Response {
	builder := http.NewResponseBuilder()
	if root == nil {
		return builder.Build()
	}

	builder.Value(root)
	s.populateStatus(builder, root)

	body := root.Member("body")
	builder.ContentType(s.findContentType(root.Member("contentType"), body))
	builder.Body(s.serializer.ToBody(body))

	s.populateHeaders(builder, root.Member("headers"))
	s.populateCookies(builder, root.Member("cookies"))
	s.setRedirect(builder, root.Member("redirect"))
	s.setWebSocket(builder, root.Member("webSocket"))

	return builder.Build()
}

// Status codes outside this range can't be written.
const (
	minStatus = 100
	maxStatus = 999
)

func (s *ScriptToResponse) populateStatus(builder *http.ResponseBuilder, root value.Value) {
	if status, ok := value.MemberInt(root, "status"); ok {
		if status >= minStatus && status <= maxStatus {
			builder.Status(status)
			return
		}
		s.logger.WithField("status", status).Debug("Invalid status, using 200")
	}
	builder.Status(nethttp.StatusOK)
}

func (s *ScriptToResponse) findContentType(v, body value.Value) string {
	if v != nil {
		if explicit, ok := v.ToString(); ok {
			mediaType, params, err := mime.ParseMediaType(explicit)
			if err == nil {
				if formatted := mime.FormatMediaType(mediaType, params); formatted != "" {
					return formatted
				}
			}
			s.logger.WithError(err).WithField("contentType", explicit).
				Debug("Invalid content type, inferring it from the body")
		}
	}

	if inferred := s.serializer.FindType(body); inferred != "" {
		return inferred
	}
	return http.DefaultContentType
}

func (s *ScriptToResponse) populateHeaders(builder *http.ResponseBuilder, v value.Value) {
	if v == nil || !v.IsObject() {
		return
	}
	for _, key := range v.Keys() {
		m := v.Member(key)
		if m == nil {
			continue
		}
		header, ok := m.ToString()
		if !ok {
			continue
		}
		if !httpguts.ValidHeaderFieldName(key) || !httpguts.ValidHeaderFieldValue(header) {
			s.logger.WithField("header", key).Debug("Skipping invalid response header")
			continue
		}
		builder.Header(key, header)
	}
}

func (s *ScriptToResponse) populateCookies(builder *http.ResponseBuilder, v value.Value) {
	if v == nil {
		return
	}
	if v.IsArray() {
		for _, item := range v.Array() {
			if name, ok := value.MemberString(item, "name"); ok && name != "" {
				builder.Cookie(newCookie(name, item))
			}
		}
		return
	}
	for _, key := range v.Keys() {
		if m := v.Member(key); m != nil {
			builder.Cookie(newCookie(key, m))
		}
	}
}

func (s *ScriptToResponse) setRedirect(builder *http.ResponseBuilder, v value.Value) {
	if v == nil {
		return
	}
	location, ok := v.ToString()
	if !ok {
		return
	}
	builder.Status(nethttp.StatusSeeOther).
		Header("Location", location).
		Redirect(location)
}

func (s *ScriptToResponse) setWebSocket(builder *http.ResponseBuilder, v value.Value) {
	if s.webSocket == nil {
		return
	}
	builder.WebSocket(s.webSocket.Create(v))
}
