package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"MProject/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 25 * time.Second
	pongWait   = 35 * time.Second

	sendQueueSize = 256
)

// Client is one physical websocket connection. The write pump is the only
// goroutine allowed to touch the underlying conn for writes; everyone else
// enqueues.
type Client struct {
	ID     string
	UserID string // bound on join, empty for handshake-only connections

	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(id string, ws *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Enqueue hands payload to the write pump without blocking. A full queue
// means a slow client; the frame is dropped, not queued elsewhere.
func (c *Client) Enqueue(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		// UserID belongs to the registry's lock; the conn id is enough here
		logger.Warnf("[ws] send queue full, drop frame conn=%s", c.ID)
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// WritePump drains the send queue onto the socket and keeps the
// ping/pong cycle alive. Runs until Close or a write error.
func (c *Client) WritePump() {
	t := time.NewTicker(pingPeriod)
	defer func() {
		t.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[ws] write failed conn=%s err=%v", c.ID, err)
				return
			}
		case <-t.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ===== wire frames =====

// Frame is the envelope for everything crossing the socket, both ways:
// {"method": "...", "payload": {...}}.
type Frame struct {
	Method  string         `json:"method"`
	Payload map[string]any `json:"payload"`
}

func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// MarshalFrame builds an outbound frame. Marshal failures are a
// programming error on our side; log and drop.
func MarshalFrame(method string, payload any) []byte {
	data, err := json.Marshal(Frame{Method: method, Payload: toMap(payload)})
	if err != nil {
		logger.Errorf("[ws] marshal frame %s: %v", method, err)
		return nil
	}
	return data
}

func toMap(payload any) map[string]any {
	if payload == nil {
		return nil
	}
	if m, ok := payload.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// ===== fanout =====

type fanoutJob struct {
	clients []*Client
	payload []byte
}

// Fanout spreads one payload over many connections without tying up the
// caller. Slow clients are skipped by Enqueue.
type Fanout struct {
	jobs chan fanoutJob
}

func NewFanout(workers, queue int) *Fanout {
	f := &Fanout{jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		go func() {
			for job := range f.jobs {
				for _, c := range job.clients {
					c.Enqueue(job.payload)
				}
			}
		}()
	}
	return f
}

func (f *Fanout) Broadcast(clients []*Client, payload []byte) {
	if len(clients) == 0 || len(payload) == 0 {
		return
	}
	f.jobs <- fanoutJob{clients: clients, payload: payload}
}
