package rpc

import (
	"context"
	"encoding/json"
	"time"

	"MProject/logger"
	"MProject/tools/errs"
	"MProject/tools/safe"

	"github.com/nats-io/nats.go"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the only thing a call ever produces. Transport failures,
// timeouts and upstream rejections all land here as Status=error; the
// client never returns a raw error across the component boundary.
type Result struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (r Result) OK() bool { return r.Status == StatusSuccess }

func ErrResult(msg string) Result {
	return Result{Status: StatusError, Message: msg}
}

// Transport is the persistent request/response channel to the business api.
// *nats.Conn satisfies it through natsTransport; tests script their own.
type Transport interface {
	Request(pattern string, data []byte, timeout time.Duration) ([]byte, error)
}

type natsTransport struct {
	nc *nats.Conn
}

func (t natsTransport) Request(pattern string, data []byte, timeout time.Duration) ([]byte, error) {
	msg, err := t.nc.Request(pattern, data, timeout)
	if err != nil {
		return nil, err
	}
	return msg.Data, nil
}

type Conf struct {
	Timeout    time.Duration // per attempt, default 5s
	MaxRetries int           // retries after the first attempt, default 3
	BaseDelay  time.Duration // backoff base, doubled per attempt, default 100ms
}

func (c *Conf) norm() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
}

type Client struct {
	tr   Transport
	conf Conf
}

func NewClient(nc *nats.Conn, conf Conf) *Client {
	return NewClientWithTransport(natsTransport{nc: nc}, conf)
}

func NewClientWithTransport(tr Transport, conf Conf) *Client {
	safe.MustNotNil(tr, "rpc transport")
	conf.norm()
	return &Client{tr: tr, conf: conf}
}

// Call sends {pattern, payload} and waits for the response. Each attempt is
// bounded by the configured timeout; failed attempts are retried with
// exponential backoff (base << attempt) up to MaxRetries. An in-flight
// attempt that times out is simply abandoned, nothing is cancelled on the
// transport side.
func (c *Client) Call(ctx context.Context, pattern string, payload any) Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return ErrResult(errs.ErrArgs.WithDetail(err.Error()).Error())
	}

	var lastErr error
	for attempt := 0; attempt <= c.conf.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.conf.BaseDelay << (attempt - 1)
			logger.Warnf("[rpc] retrying %s (%d/%d) after %v", pattern, attempt, c.conf.MaxRetries, delay)
			select {
			case <-ctx.Done():
				return ErrResult(errs.ErrUpstreamTimeout.WithDetail(ctx.Err().Error()).Error())
			case <-time.After(delay):
			}
		}

		data, reqErr := c.tr.Request(pattern, body, c.conf.Timeout)
		if reqErr != nil {
			lastErr = reqErr
			continue
		}
		return parseResponse(data)
	}

	logger.Errorf("[rpc] %s failed after %d attempts: %v", pattern, c.conf.MaxRetries+1, lastErr)
	res := ErrResult(errs.ErrUpstreamFailed.EMsg())
	if lastErr != nil {
		res.Message = errs.ErrUpstreamFailed.WithDetail(lastErr.Error()).Error()
	}
	return res
}

// Notify is the detached, fire-and-forget variant for non-critical
// notifications. The caller does not wait; a terminal failure is logged
// and dropped.
func (c *Client) Notify(pattern string, payload any) {
	safe.SafeGo(func() {
		res := c.Call(context.Background(), pattern, payload)
		if !res.OK() {
			logger.Warnf("[rpc] detached notify %s dropped: %s", pattern, res.Message)
		}
	})
}

// parseResponse keeps whatever the api sent. Responses that do not carry a
// status field count as success with the raw body attached.
func parseResponse(data []byte) Result {
	var res Result
	if err := json.Unmarshal(data, &res); err != nil || res.Status == "" {
		return Result{Status: StatusSuccess, Data: data}
	}
	if res.Data == nil {
		res.Data = data
	}
	return res
}
