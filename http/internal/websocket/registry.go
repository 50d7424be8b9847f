package websocket

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/purplejs/purplejs/http"
)

// ErrSessionNotFound is returned for ids of sessions that are closed or never
// existed.
var ErrSessionNotFound = errors.New("websocket session not found")

const writeWait = 10 * time.Second

// Session is an open websocket connection.
type Session struct {
	ID     string
	Group  string
	Config *http.WebSocketConfig

	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *Session) send(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *Session) close(code int, text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}

// Registry keeps track of the open sessions. It's safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	groups   map[string]map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		groups:   make(map[string]map[string]*Session),
	}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	if s.Group == "" {
		return
	}
	group, ok := r.groups[s.Group]
	if !ok {
		group = make(map[string]*Session)
		r.groups[s.Group] = group
	}
	group[s.ID] = s
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s.ID)
	if group, ok := r.groups[s.Group]; ok {
		delete(group, s.ID)
		if len(group) == 0 {
			delete(r.groups, s.Group)
		}
	}
}

func (r *Registry) get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return s, nil
}

// Send sends a text message to the session with the given id.
func (r *Registry) Send(id, message string) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}
	return s.send(websocket.TextMessage, []byte(message))
}

// SendBinary sends a binary message to the session with the given id.
func (r *Registry) SendBinary(id string, data []byte) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}
	return s.send(websocket.BinaryMessage, data)
}

// SendToGroup sends a text message to every session of a group and returns
// how many sessions it was sent to.
func (r *Registry) SendToGroup(group, message string) int {
	r.mu.RLock()
	members := make([]*Session, 0, len(r.groups[group]))
	for _, s := range r.groups[group] {
		members = append(members, s)
	}
	r.mu.RUnlock()

	sent := 0
	for _, s := range members {
		if err := s.send(websocket.TextMessage, []byte(message)); err == nil {
			sent++
		}
	}
	return sent
}

// Close asks the session with the given id to close.
func (r *Registry) Close(id string) error {
	s, err := r.get(id)
	if err != nil {
		return err
	}
	return s.close(websocket.CloseNormalClosure, "")
}

// GroupSize returns the number of open sessions in a group.
func (r *Registry) GroupSize(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

// Size returns the number of open sessions.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every open session, used when the server shuts down.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	for _, s := range all {
		_ = s.close(websocket.CloseGoingAway, "server shutting down")
		_ = s.conn.Close()
	}
}
