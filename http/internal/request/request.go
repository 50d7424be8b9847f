// Package request converts incoming HTTP requests into the objects scripts
// are called with.
package request

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	nethttp "net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

// ErrBodyTooLarge is returned when a request body is larger than allowed.
var ErrBodyTooLarge = errors.New("request body too large")

// DefaultMaxBodySize is the body size limit used when none is configured.
const DefaultMaxBodySize = 10 << 20

// ToScript reads req into the object handed to scripts. Bodies larger than
// maxBodySize are rejected with ErrBodyTooLarge; a non-positive maxBodySize
// uses DefaultMaxBodySize.
func ToScript(req *nethttp.Request, maxBodySize int64) (map[string]interface{}, error) {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	body, err := readBody(req, maxBodySize)
	if err != nil {
		return nil, err
	}

	contentType := req.Header.Get("Content-Type")
	values := req.URL.Query()
	if isForm(contentType) && len(body) > 0 {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		for k, vs := range form {
			values[k] = append(values[k], vs...)
		}
	}

	host, port := hostPort(req)
	obj := map[string]interface{}{
		"method":        req.Method,
		"scheme":        scheme(req),
		"host":          host,
		"port":          port,
		"path":          req.URL.Path,
		"uri":           req.URL.RequestURI(),
		"url":           fullURL(req),
		"remoteAddress": remoteAddress(req),
		"contentType":   contentType,
		"contentLength": req.ContentLength,
		"params":        params(values),
		"paramsAll":     paramsAll(values),
		"headers":       headers(req.Header),
		"cookies":       cookies(req),
		"webSocket":     websocket.IsWebSocketUpgrade(req),
	}
	if len(body) > 0 {
		obj["body"] = string(body)
	}
	return obj, nil
}

func readBody(req *nethttp.Request, limit int64) ([]byte, error) {
	if req.Body == nil || req.Body == nethttp.NoBody {
		return nil, nil
	}
	if req.ContentLength > limit {
		return nil, ErrBodyTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(req.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("couldn't read the request body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

func isForm(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

func scheme(req *nethttp.Request) string {
	if req.TLS != nil {
		return "https"
	}
	return "http"
}

func hostPort(req *nethttp.Request) (string, int) {
	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	h, p, err := net.SplitHostPort(host)
	if err != nil {
		if req.TLS != nil {
			return host, 443
		}
		return host, 80
	}
	port, _ := strconv.Atoi(p)
	return h, port
}

func fullURL(req *nethttp.Request) string {
	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	u := url.URL{
		Scheme:   scheme(req),
		Host:     host,
		Path:     req.URL.Path,
		RawPath:  req.URL.RawPath,
		RawQuery: req.URL.RawQuery,
	}
	return u.String()
}

func remoteAddress(req *nethttp.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// params keeps the last value of every parameter.
func params(values url.Values) map[string]interface{} {
	result := make(map[string]interface{}, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			result[k] = vs[len(vs)-1]
		}
	}
	return result
}

func paramsAll(values url.Values) map[string]interface{} {
	result := make(map[string]interface{}, len(values))
	for k, vs := range values {
		all := make([]interface{}, len(vs))
		for i, v := range vs {
			all[i] = v
		}
		result[k] = all
	}
	return result
}

func headers(h nethttp.Header) map[string]interface{} {
	result := make(map[string]interface{}, len(h))
	for k, vs := range h {
		result[k] = strings.Join(vs, ", ")
	}
	return result
}

func cookies(req *nethttp.Request) map[string]interface{} {
	list := req.Cookies()
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	result := make(map[string]interface{}, len(list))
	for _, c := range list {
		if _, ok := result[c.Name]; !ok {
			result[c.Name] = c.Value
		}
	}
	return result
}
