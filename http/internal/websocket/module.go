package websocket

import (
	"github.com/purplejs/purplejs/js"
	"github.com/purplejs/purplejs/js/common"
)

// ModuleName is the name scripts require the websocket module by.
const ModuleName = js.NativePrefix + "websocket"

// Module exposes the sessions of registry to scripts:
//
//	var ws = require('purple/websocket');
//	ws.send(event.session.id, "hello");
//	ws.sendToGroup("chat", "hello everyone");
func Module(registry *Registry) js.Module {
	return js.ModuleFunc(func(b js.Binder) error {
		b.NativeModule(ModuleName, func(ctx js.ExecutionContext) (interface{}, error) {
			rt := ctx.Runtime()
			return map[string]interface{}{
				"send": func(id string, data interface{}) {
					var err error
					if s, ok := data.(string); ok {
						err = registry.Send(id, s)
					} else {
						var b []byte
						if b, err = common.ToBytes(data); err == nil {
							err = registry.SendBinary(id, b)
						}
					}
					if err != nil {
						common.Throw(rt, err)
					}
				},
				"sendToGroup": func(group, message string) int {
					return registry.SendToGroup(group, message)
				},
				"close": func(id string) {
					if err := registry.Close(id); err != nil {
						common.Throw(rt, err)
					}
				},
				"groupSize": func(group string) int {
					return registry.GroupSize(group)
				},
			}, nil
		})
		return nil
	})
}
