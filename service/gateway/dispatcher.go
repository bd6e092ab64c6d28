package gateway

import (
	"context"

	"github.com/golang/glog"
)

// HandlerFunc processes one inbound frame on behalf of a connection.
type HandlerFunc func(ctx context.Context, c *Client, payload map[string]any)

type Dispatcher struct {
	handlers map[string]HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

func (d *Dispatcher) Register(method string, h HandlerFunc) { d.handlers[method] = h }

// Dispatch runs the handler for the frame's method. Unknown methods are
// logged and dropped, never echoed back.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, f *Frame) {
	h, ok := d.handlers[f.Method]
	if !ok {
		glog.Infof("no handler for method=%v conn=%s", f.Method, c.ID)
		return
	}
	h(ctx, c, f.Payload)
}
