package request

import (
	"crypto/tls"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToScript(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(nethttp.MethodPost, "http://example.com:8080/items/1?a=1&a=2&b=x",
		strings.NewReader("a=3&c=form"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("X-Multi", "1")
	req.Header.Add("X-Multi", "2")
	req.AddCookie(&nethttp.Cookie{Name: "session", Value: "abc"})
	req.RemoteAddr = "10.0.0.1:5555"

	obj, err := ToScript(req, 0)
	require.NoError(t, err)

	assert.Equal(t, "POST", obj["method"])
	assert.Equal(t, "http", obj["scheme"])
	assert.Equal(t, "example.com", obj["host"])
	assert.Equal(t, 8080, obj["port"])
	assert.Equal(t, "/items/1", obj["path"])
	assert.Equal(t, "/items/1?a=1&a=2&b=x", obj["uri"])
	assert.Equal(t, "http://example.com:8080/items/1?a=1&a=2&b=x", obj["url"])
	assert.Equal(t, "10.0.0.1", obj["remoteAddress"])
	assert.Equal(t, "application/x-www-form-urlencoded", obj["contentType"])
	assert.Equal(t, int64(10), obj["contentLength"])
	assert.Equal(t, map[string]interface{}{"a": "3", "b": "x", "c": "form"}, obj["params"])
	assert.Equal(t, []interface{}{"1", "2", "3"}, obj["paramsAll"].(map[string]interface{})["a"])
	assert.Equal(t, "1, 2", obj["headers"].(map[string]interface{})["X-Multi"])
	assert.Equal(t, map[string]interface{}{"session": "abc"}, obj["cookies"])
	assert.Equal(t, "a=3&c=form", obj["body"])
	assert.Equal(t, false, obj["webSocket"])
}

func TestToScriptDefaults(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(nethttp.MethodGet, "https://example.com/", nil)
	req.TLS = &tls.ConnectionState{}
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")

	obj, err := ToScript(req, 0)
	require.NoError(t, err)
	assert.Equal(t, "https", obj["scheme"])
	assert.Equal(t, 443, obj["port"])
	assert.Equal(t, true, obj["webSocket"])
	assert.NotContains(t, obj, "body")
	assert.Empty(t, obj["params"])
}

func TestToScriptBodyLimit(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(nethttp.MethodPost, "/", strings.NewReader("0123456789"))
	_, err := ToScript(req, 5)
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	req = httptest.NewRequest(nethttp.MethodPost, "/", strings.NewReader("0123456789"))
	req.ContentLength = -1
	_, err = ToScript(req, 5)
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	req = httptest.NewRequest(nethttp.MethodPost, "/", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	obj, err := ToScript(req, 100)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, obj["body"])
	assert.Empty(t, obj["params"])
}
