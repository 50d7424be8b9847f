// Package websocket upgrades connections of responses that ask for it and
// routes the events of those sessions back to scripts.
package websocket

import (
	"time"

	"github.com/purplejs/purplejs/http"
	"github.com/purplejs/purplejs/js/value"
	"github.com/purplejs/purplejs/lib/types"
)

// ConfigFactory reads websocket configurations out of response values:
//
//	webSocket: {group: "chat", subProtocols: ["v1"], attributes: {...}, timeout: "30s"}
//
// Numeric timeouts are in milliseconds.
type ConfigFactory struct{}

// Create returns nil unless v is an object.
func (ConfigFactory) Create(v value.Value) *http.WebSocketConfig {
	if v == nil || !v.IsObject() {
		return nil
	}

	config := &http.WebSocketConfig{}
	if group, ok := value.MemberString(v, "group"); ok {
		config.Group = group
	}
	config.SubProtocols = subProtocols(v.Member("subProtocols"))
	if attrs, ok := value.Native(v.Member("attributes")).(map[string]interface{}); ok {
		config.Attributes = attrs
	}
	config.Timeout = timeout(v.Member("timeout"))
	return config
}

func subProtocols(v value.Value) []string {
	switch value.KindOf(v) {
	case value.KindScalar:
		if s, ok := v.ToString(); ok && s != "" {
			return []string{s}
		}
	case value.KindArray:
		var result []string
		for _, item := range v.Array() {
			if item == nil {
				continue
			}
			if s, ok := item.ToString(); ok && s != "" {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

func timeout(v value.Value) time.Duration {
	if v == nil {
		return 0
	}
	if ms, ok := v.ToFloat(); ok {
		if ms <= 0 {
			return 0
		}
		return time.Duration(ms * float64(time.Millisecond))
	}
	if s, ok := v.ToString(); ok {
		d, err := types.ParseExtendedDuration(s)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}
