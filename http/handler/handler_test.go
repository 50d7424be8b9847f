package handler

import (
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/purplejs/purplejs/js"
	"github.com/purplejs/purplejs/lib/fsext"
	"github.com/purplejs/purplejs/loader"
)

func newTestHandler(t *testing.T, src string, mode js.RunMode, opts Options) *Handler {
	t.Helper()
	fs := fsext.NewMemMapFs()
	require.NoError(t, fsext.WriteFile(fs, "/main.js", []byte(src), 0o644))

	// websocket sessions may outlive the test, so nothing is logged to it
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sessions := NewSessions()
	pool, err := js.NewPool(2, func() (*js.Engine, error) {
		return js.NewBuilder().
			Logger(logger).
			RunMode(mode).
			Filesystems(loader.CreateFilesystems(fs, 0)).
			Module(sessions.Module()).
			Build()
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sessions.Close()
		pool.Close()
	})
	return New(pool, sessions, opts, mode, logger)
}

func TestServeMethods(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, `
		exports.get = function(req) {
			return {body: {method: req.method, name: req.params.name}};
		};
		exports.post = function(req) {
			return {status: 201, body: req.body, contentType: "text/csv"};
		};
	`, js.RunModeProd, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/hello?name=purple", nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "GET", gjson.Get(rec.Body.String(), "method").String())
	assert.Equal(t, "purple", gjson.Get(rec.Body.String(), "name").String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodPost, "/", strings.NewReader("a,b")))
	assert.Equal(t, nethttp.StatusCreated, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "a,b", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodDelete, "/", nil))
	assert.Equal(t, nethttp.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
}

func TestServeServiceFallback(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, `
		exports.get = function() { return {body: "get"}; };
		exports.service = function(req) { return {body: "service " + req.method}; };
	`, js.RunModeProd, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/", nil))
	assert.Equal(t, "get", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodPut, "/", nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "service PUT", rec.Body.String())
}

func TestServeRedirectAndCookies(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, `
		exports.get = function() {
			return {
				redirect: "/elsewhere",
				cookies: {session: {value: "abc", httpOnly: true}},
			};
		};
	`, js.RunModeProd, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/", nil))
	assert.Equal(t, nethttp.StatusSeeOther, rec.Code)
	assert.Equal(t, "/elsewhere", rec.Header().Get("Location"))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "session=abc")
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "HttpOnly")
}

func TestServeErrors(t *testing.T) {
	t.Parallel()
	src := `exports.get = function() { throw new Error("boom"); };`

	t.Run("prod", func(t *testing.T) {
		t.Parallel()
		h := newTestHandler(t, src, js.RunModeProd, Options{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/", nil))
		assert.Equal(t, nethttp.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "boom")
	})

	t.Run("dev", func(t *testing.T) {
		t.Parallel()
		h := newTestHandler(t, src, js.RunModeDev, Options{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/", nil))
		assert.Equal(t, nethttp.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "boom")
	})

	t.Run("missing script", func(t *testing.T) {
		t.Parallel()
		h := newTestHandler(t, src, js.RunModeProd, Options{Script: "/other.js"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/", nil))
		assert.Equal(t, nethttp.StatusInternalServerError, rec.Code)
	})

	t.Run("body too large", func(t *testing.T) {
		t.Parallel()
		h := newTestHandler(t, src, js.RunModeProd, Options{MaxBodySize: 4})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodPost, "/", strings.NewReader("too large")))
		assert.Equal(t, nethttp.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestServeTimeout(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, `exports.get = function() { for (;;) {} };`,
		js.RunModeProd, Options{ScriptTimeout: 50 * time.Millisecond})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/", nil))
	assert.Equal(t, nethttp.StatusGatewayTimeout, rec.Code)

	// the engine is usable again once interrupted
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodDelete, "/", nil))
	assert.Equal(t, nethttp.StatusMethodNotAllowed, rec.Code)
}

func TestServeThrowingResponse(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, `
		exports.get = function(req) {
			if (req.params.loop) {
				return {get status() { for (;;) {} }, body: "late"};
			}
			return {
				status: 202,
				body: {ok: true, get broken() { throw new Error("boom"); }},
				headers: new Proxy({}, {ownKeys: function() { throw new Error("boom"); }})
			};
		};
		exports.post = function(req) {
			return {status: Number(req.params.status), body: "x"};
		};
	`, js.RunModeProd, Options{ScriptTimeout: 50 * time.Millisecond})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/", nil))
	assert.Equal(t, nethttp.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"ok":true,"broken":null}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/?loop=1", nil))
	assert.Equal(t, nethttp.StatusGatewayTimeout, rec.Code)

	// both engines of the pool still answer
	for i := 0; i < 2; i++ {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/", nil))
		assert.Equal(t, nethttp.StatusAccepted, rec.Code)
	}

	for status, expected := range map[string]int{"0": 200, "42": 200, "1000": 200, "100": 100, "999": 999} {
		rec = httptest.NewRecorder()
		require.NotPanics(t, func() {
			h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodPost, "/?status="+status, nil))
		}, status)
		assert.Equal(t, expected, rec.Code, status)
	}
}

func TestServeWebSocket(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, `
		var ws = require('purple/websocket');
		exports.get = function(req) {
			if (!req.webSocket) {
				return {status: 400};
			}
			return {webSocket: {group: "echo", attributes: {user: req.params.user}}};
		};
		exports.webSocketEvent = function(event) {
			if (event.type === "message") {
				ws.send(event.session.id, event.session.attributes.user + ": " + event.message);
			}
		};
	`, js.RunModeProd, Options{})

	srv := httptest.NewServer(h)
	defer srv.Close()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/", nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=ann"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hi")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ann: hi", string(msg))
}
