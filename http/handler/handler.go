// Package handler serves HTTP requests with the functions a script
// application exports.
//
// The main script exports functions named after the lower-cased request
// methods, or a catch-all function named service:
//
//	exports.get = function(req) {
//	    return {body: {hello: req.params.name}};
//	};
//
// Requests that upgrade to websockets are answered with a response that has
// a webSocket member; the events of the session are then delivered to the
// exported webSocketEvent function.
package handler

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"sort"
	"strings"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/purplejs/purplejs/errext"
	"github.com/purplejs/purplejs/http"
	"github.com/purplejs/purplejs/http/internal/request"
	"github.com/purplejs/purplejs/http/internal/response"
	"github.com/purplejs/purplejs/http/internal/websocket"
	"github.com/purplejs/purplejs/js"
	"github.com/purplejs/purplejs/js/value"
)

const (
	serviceMethod        = "service"
	webSocketEventMethod = "webSocketEvent"
)

// Options configure a Handler.
type Options struct {
	// Script is the path of the main script, relative to the application root.
	Script string
	// ScriptTimeout interrupts scripts that run longer. Zero disables it.
	ScriptTimeout time.Duration
	// MaxBodySize limits the size of request bodies.
	MaxBodySize int64
}

// Handler is a net/http.Handler that runs requests through a pool of engines.
type Handler struct {
	pool    *js.Pool
	opts    Options
	mapper  *response.ScriptToResponse
	ws      *websocket.Server
	logger  logrus.FieldLogger
	devMode bool
}

var _ nethttp.Handler = &Handler{}

// Sessions keeps the websocket sessions of the handlers that share it.
type Sessions struct {
	registry *websocket.Registry
}

// NewSessions returns an empty set of websocket sessions.
func NewSessions() *Sessions {
	return &Sessions{registry: websocket.NewRegistry()}
}

// Module exposes the sessions to scripts as the purple/websocket module.
func (s *Sessions) Module() js.Module {
	return websocket.Module(s.registry)
}

// Size returns the number of open sessions.
func (s *Sessions) Size() int {
	return s.registry.Size()
}

// Close closes every open session.
func (s *Sessions) Close() {
	s.registry.CloseAll()
}

// New returns a handler that runs the script given in opts with engines from
// pool. The engines should be built with the sessions module.
func New(pool *js.Pool, sessions *Sessions, opts Options, runMode js.RunMode, logger logrus.FieldLogger) *Handler {
	if opts.Script == "" {
		opts.Script = "/main.js"
	}
	return &Handler{
		pool:    pool,
		opts:    opts,
		mapper:  response.NewScriptToResponse(response.DefaultSerializer{}, websocket.ConfigFactory{}, logger),
		ws:      websocket.NewServer(sessions.registry, logger),
		logger:  logger,
		devMode: runMode == js.RunModeDev,
	}
}

// ServeHTTP implements net/http.Handler.
func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, req *nethttp.Request) {
	reqObj, err := request.ToScript(req, h.opts.MaxBodySize)
	if err != nil {
		status := nethttp.StatusBadRequest
		if errors.Is(err, request.ErrBodyTooLarge) {
			status = nethttp.StatusRequestEntityTooLarge
		}
		nethttp.Error(w, nethttp.StatusText(status), status)
		return
	}

	ctx := req.Context()
	if h.opts.ScriptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.ScriptTimeout)
		defer cancel()
	}

	res, status, err := h.run(ctx, req.Method, reqObj)
	if err != nil {
		h.fail(w, req, status, err)
		return
	}

	if res.WebSocket() != nil && gorillaws.IsWebSocketUpgrade(req) {
		if err := h.ws.Serve(w, req, res.WebSocket(), websocket.HandlerFunc(h.handleEvent)); err != nil {
			h.logger.WithError(err).Debug("WebSocket upgrade failed")
		}
		return
	}

	if err := response.Write(w, req, res); err != nil {
		h.logger.WithError(err).Debug("Couldn't write the response")
	}
}

// run calls the function of the script that handles method and maps what it
// returns while the engine is still held.
func (h *Handler) run(ctx context.Context, method string, reqObj map[string]interface{}) (*http.Response, int, error) {
	engine, err := h.pool.Get(ctx)
	if err != nil {
		return nil, nethttp.StatusServiceUnavailable, err
	}
	defer h.pool.Put(engine)

	exports, err := engine.Require(h.opts.Script)
	if err != nil {
		return nil, nethttp.StatusInternalServerError, err
	}

	name := strings.ToLower(method)
	if !exports.HasMethod(name) {
		if !exports.HasMethod(serviceMethod) {
			return nil, nethttp.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", method)
		}
		name = serviceMethod
	}

	var res *http.Response
	err = exports.ExecuteMethodWith(ctx, name, func(v value.Value) { res = h.mapper.ToResponse(v) }, reqObj)
	if err != nil {
		return nil, nethttp.StatusInternalServerError, err
	}
	return res, nethttp.StatusOK, nil
}

func (h *Handler) fail(w nethttp.ResponseWriter, req *nethttp.Request, status int, err error) {
	switch status {
	case nethttp.StatusMethodNotAllowed:
		if allow := h.allowedMethods(req.Context()); allow != "" {
			w.Header().Set("Allow", allow)
		}
		nethttp.Error(w, nethttp.StatusText(status), status)
		return
	case nethttp.StatusServiceUnavailable:
		h.logger.WithError(err).Warn("No engine available to handle the request")
		nethttp.Error(w, nethttp.StatusText(status), status)
		return
	}

	msg, fields := errext.Format(err)
	h.logger.WithFields(fields).WithField("path", req.URL.Path).Error(msg)
	if errext.IsInterruptError(err) {
		status = nethttp.StatusGatewayTimeout
	}
	if h.devMode {
		nethttp.Error(w, msg, status)
		return
	}
	nethttp.Error(w, nethttp.StatusText(status), status)
}

func (h *Handler) allowedMethods(ctx context.Context) string {
	engine, err := h.pool.Get(ctx)
	if err != nil {
		return ""
	}
	defer h.pool.Put(engine)
	exports, err := engine.Require(h.opts.Script)
	if err != nil {
		return ""
	}

	var allowed []string
	for _, m := range []string{
		nethttp.MethodGet, nethttp.MethodHead, nethttp.MethodPost, nethttp.MethodPut,
		nethttp.MethodPatch, nethttp.MethodDelete, nethttp.MethodOptions,
	} {
		if exports.HasMethod(strings.ToLower(m)) {
			allowed = append(allowed, m)
		}
	}
	sort.Strings(allowed)
	return strings.Join(allowed, ", ")
}

func (h *Handler) handleEvent(e *websocket.Event) {
	logger := h.logger.WithFields(logrus.Fields{"session": e.Session.ID, "event": e.Type})
	ctx := context.Background()
	if h.opts.ScriptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.ScriptTimeout)
		defer cancel()
	}

	engine, err := h.pool.Get(ctx)
	if err != nil {
		logger.WithError(err).Warn("No engine available to handle the websocket event")
		return
	}
	defer h.pool.Put(engine)

	exports, err := engine.Require(h.opts.Script)
	if err != nil {
		logger.WithError(err).Error("Couldn't load the script for the websocket event")
		return
	}
	if !exports.HasMethod(webSocketEventMethod) {
		logger.Debug("The script doesn't handle websocket events")
		return
	}
	if _, err := exports.ExecuteMethodContext(ctx, webSocketEventMethod, e.ToScript()); err != nil {
		msg, fields := errext.Format(err)
		logger.WithFields(fields).Error(msg)
	}
}
