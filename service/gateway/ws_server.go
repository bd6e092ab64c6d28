package gateway

import (
	"context"
	"net/http"
	"time"

	"MProject/logger"
	"MProject/tools/errs"
	"MProject/tools/ids"
	"MProject/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server owns the HTTP surface: the websocket endpoint plus health and
// metrics. Everything stateful lives in the router; the server only
// shepherds connections in and out.
type Server struct {
	router   *Router
	disp     *Dispatcher
	resolver *ShardResolver
}

func NewServer(router *Router, resolver *ShardResolver) *Server {
	return &Server{
		router:   router,
		disp:     NewDispatcherFor(router),
		resolver: resolver,
	}
}

func (s *Server) Mount(r *gin.Engine) {
	r.GET("/ws", s.HandleWS)
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
}

// HandleWS admits, upgrades and then pumps frames until the peer goes
// away. Shard admission runs on the handshake query so a misrouted client
// is turned away with the target instance before any upgrade work.
func (s *Server) HandleWS(c *gin.Context) {
	userID := c.Query("userId")

	if adm := s.resolver.Admit(userID); !adm.Allowed {
		c.JSON(http.StatusMisdirectedRequest, gin.H{
			"status":         "error",
			"message":        errs.ErrWrongShard.Msg,
			"targetInstance": adm.Target,
		})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade failed: %v", err)
		return
	}

	client := NewClient(ids.NewConnID(), ws)
	safe.SafeGo(client.WritePump)

	logger.Infof("[ws] connected conn=%s userId=%s", client.ID, userID)
	s.readLoop(client, ws)
}

func (s *Server) readLoop(client *Client, ws *websocket.Conn) {
	defer func() {
		s.router.HandleDisconnect(context.Background(), client)
		client.Close()
	}()

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Infof("[ws] read failed conn=%s err=%v", client.ID, err)
			}
			return
		}

		frame, err := ParseFrame(data)
		if err != nil {
			logger.Warnf("[ws] bad frame conn=%s err=%v", client.ID, err)
			continue
		}
		s.disp.Dispatch(context.Background(), client, frame)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleMetrics(c *gin.Context) {
	m := s.router.Metrics()
	c.JSON(http.StatusOK, gin.H{
		"connections": m.Connections,
		"users":       m.Users,
		"rooms":       m.Rooms,
	})
}
