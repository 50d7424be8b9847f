package websocket

import (
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purplejs/purplejs/http"
)

type recorder struct {
	mu     sync.Mutex
	events []*Event
	opened chan *Session
	closed chan int
	onMsg  func(e *Event)
}

func newRecorder() *recorder {
	return &recorder{opened: make(chan *Session, 10), closed: make(chan int, 10)}
}

func (r *recorder) HandleEvent(e *Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	onMsg := r.onMsg
	r.mu.Unlock()

	switch e.Type {
	case EventOpen:
		r.opened <- e.Session
	case EventClose:
		r.closed <- e.CloseCode
	case EventMessage:
		if onMsg != nil {
			onMsg(e)
		}
	}
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]string, len(r.events))
	for i, e := range r.events {
		result[i] = e.Type
	}
	return result
}

func startServer(t *testing.T, config *http.WebSocketConfig, h Handler) (*Server, string) {
	t.Helper()
	// sessions may outlive the test, so nothing is logged to it
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewServer(NewRegistry(), logger)
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, req *nethttp.Request) {
		assert.NoError(t, s.Serve(w, req, config, h))
	}))
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil) //nolint:bodyclose
	require.NoError(t, err)
	return conn
}

func TestServeEcho(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	s, url := startServer(t, &http.WebSocketConfig{Group: "chat"}, rec)
	rec.mu.Lock()
	rec.onMsg = func(e *Event) {
		assert.NoError(t, s.Registry().Send(e.Session.ID, "echo: "+e.Message))
	}
	rec.mu.Unlock()

	conn := dial(t, url)
	session := <-rec.opened
	assert.Equal(t, "chat", session.Group)
	assert.Equal(t, 1, s.Registry().GroupSize("chat"))
	assert.Equal(t, 1, s.Registry().Size())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hi")))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", string(msg))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	assert.Equal(t, websocket.CloseNormalClosure, <-rec.closed)
	_ = conn.Close()

	assert.Eventually(t, func() bool { return s.Registry().Size() == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, s.Registry().GroupSize("chat"))
	assert.Equal(t, []string{EventOpen, EventMessage, EventClose}, rec.types())
}

func TestRegistryGroupsAndClose(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	s, url := startServer(t, &http.WebSocketConfig{Group: "room"}, rec)

	first, second := dial(t, url), dial(t, url)
	defer func() { _ = first.Close() }()
	defer func() { _ = second.Close() }()
	one, two := <-rec.opened, <-rec.opened
	assert.NotEqual(t, one.ID, two.ID)

	assert.Equal(t, 2, s.Registry().SendToGroup("room", "broadcast"))
	for _, conn := range []*websocket.Conn{first, second} {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "broadcast", string(msg))
	}
	assert.Equal(t, 0, s.Registry().SendToGroup("nobody", "x"))

	require.NoError(t, s.Registry().Close(one.ID))
	assert.ErrorIs(t, s.Registry().Send("missing", "x"), ErrSessionNotFound)
	assert.ErrorIs(t, s.Registry().Close("missing"), ErrSessionNotFound)
}

func TestServeTimeout(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	_, url := startServer(t, &http.WebSocketConfig{Timeout: 50 * time.Millisecond}, rec)

	conn := dial(t, url)
	defer func() { _ = conn.Close() }()
	<-rec.opened

	select {
	case code := <-rec.closed:
		assert.Equal(t, websocket.CloseAbnormalClosure, code)
	case <-time.After(5 * time.Second):
		t.Fatal("the idle session wasn't closed")
	}
	assert.Contains(t, rec.types(), EventError)
}

func TestEventToScript(t *testing.T) {
	t.Parallel()
	session := &Session{ID: "id", Group: "g", Config: &http.WebSocketConfig{Attributes: map[string]interface{}{"a": 1}}}

	assert.Equal(t, map[string]interface{}{
		"type":    EventMessage,
		"session": map[string]interface{}{"id": "id", "group": "g", "attributes": map[string]interface{}{"a": 1}},
		"message": "hi",
	}, (&Event{Type: EventMessage, Session: session, Message: "hi"}).ToScript())

	obj := (&Event{Type: EventClose, Session: &Session{ID: "x"}, CloseCode: 1000}).ToScript()
	assert.Equal(t, 1000, obj["closeCode"])
	assert.Equal(t, map[string]interface{}{}, obj["session"].(map[string]interface{})["attributes"])

	obj = (&Event{Type: EventMessage, Session: session, Data: []byte{1}}).ToScript()
	assert.Equal(t, []byte{1}, obj["data"])
	assert.NotContains(t, obj, "message")
}
