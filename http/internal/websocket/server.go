package websocket

import (
	"errors"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"
	uuid "github.com/nu7hatch/gouuid"
	"github.com/sirupsen/logrus"

	"github.com/purplejs/purplejs/http"
)

// The types of session events.
const (
	EventOpen    = "open"
	EventMessage = "message"
	EventClose   = "close"
	EventError   = "error"
)

// Event is something that happened to a session.
type Event struct {
	Type    string
	Session *Session
	// Message is the text of text messages.
	Message string
	// Data is the content of binary messages.
	Data []byte
	// CloseCode is the status code of close events.
	CloseCode int
	// Err is the cause of error events.
	Err error
}

// ToScript returns the object scripts get for the event.
func (e *Event) ToScript() map[string]interface{} {
	session := map[string]interface{}{
		"id":    e.Session.ID,
		"group": e.Session.Group,
	}
	if e.Session.Config != nil && e.Session.Config.Attributes != nil {
		session["attributes"] = e.Session.Config.Attributes
	} else {
		session["attributes"] = map[string]interface{}{}
	}
	obj := map[string]interface{}{
		"type":    e.Type,
		"session": session,
	}
	switch e.Type {
	case EventMessage:
		if e.Data != nil {
			obj["data"] = e.Data
		} else {
			obj["message"] = e.Message
		}
	case EventClose:
		obj["closeCode"] = e.CloseCode
	case EventError:
		if e.Err != nil {
			obj["error"] = e.Err.Error()
		}
	}
	return obj
}

// Handler handles the events of sessions. Events of one session are
// delivered in order, from a single goroutine.
type Handler interface {
	HandleEvent(e *Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(e *Event)

// HandleEvent calls f(e).
func (f HandlerFunc) HandleEvent(e *Event) { f(e) }

// Server upgrades connections and runs their sessions.
type Server struct {
	registry *Registry
	logger   logrus.FieldLogger
}

// NewServer returns a server whose sessions are kept in registry.
func NewServer(registry *Registry, logger logrus.FieldLogger) *Server {
	return &Server{registry: registry, logger: logger}
}

// Registry returns the registry of the server.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Serve upgrades the connection of req and blocks until the session ends.
func (s *Server) Serve(w nethttp.ResponseWriter, req *nethttp.Request, config *http.WebSocketConfig, h Handler) error {
	upgrader := websocket.Upgrader{
		Subprotocols: config.SubProtocols,
		CheckOrigin:  func(*nethttp.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return err
	}

	id, err := uuid.NewV4()
	if err != nil {
		_ = conn.Close()
		return err
	}
	session := &Session{ID: id.String(), Group: config.Group, Config: config, conn: conn}
	logger := s.logger.WithField("session", session.ID)

	s.registry.add(session)
	defer func() {
		s.registry.remove(session)
		_ = conn.Close()
	}()

	logger.Debug("WebSocket session opened")
	h.HandleEvent(&Event{Type: EventOpen, Session: session})

	code := s.readPump(session, config.Timeout, h)
	logger.WithField("code", code).Debug("WebSocket session closed")
	h.HandleEvent(&Event{Type: EventClose, Session: session, CloseCode: code})
	return nil
}

// readPump delivers messages until the connection is closed and returns the
// close code.
func (s *Server) readPump(session *Session, timeout time.Duration, h Handler) int {
	conn := session.conn
	if timeout > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(timeout))
		})
	}
	for {
		if timeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(timeout))
		}
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return closeErr.Code
			}
			h.HandleEvent(&Event{Type: EventError, Session: session, Err: err})
			return websocket.CloseAbnormalClosure
		}

		ev := &Event{Type: EventMessage, Session: session}
		if messageType == websocket.BinaryMessage {
			ev.Data = data
		} else {
			ev.Message = string(data)
		}
		h.HandleEvent(ev)
	}
}
