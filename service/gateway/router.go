package gateway

import (
	"context"
	"encoding/json"
	"time"

	"MProject/logger"
	"MProject/module/chat"
	"MProject/module/complaint"
	"MProject/module/like"
	"MProject/module/match"
	"MProject/module/message"
	"MProject/service/cache"
	"MProject/service/rpc"
	"MProject/tools/errs"
)

// Client-facing ack event for join/leave requests.
const MethodConnection = "connection"

// Broker is the shared coordination service contract: TTL'd keys, hashes,
// sets, sorted sets, pub/sub. Every implementation degrades gracefully:
// reads come back empty on transport error, writes are dropped with a log
// line. The router never special-cases broker failure.
type Broker interface {
	Get(ctx context.Context, key string) string
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Del(ctx context.Context, keys ...string)
	Expire(ctx context.Context, key string, ttl time.Duration)
	HSet(ctx context.Context, key string, pairs ...string)
	HGet(ctx context.Context, key, field string) string
	HGetAll(ctx context.Context, key string) map[string]string
	HDel(ctx context.Context, key string, fields ...string)
	SAdd(ctx context.Context, key string, members ...string)
	SRem(ctx context.Context, key string, members ...string)
	SMembers(ctx context.Context, key string) []string
	ZAdd(ctx context.Context, key string, score float64, member string)
	ZRange(ctx context.Context, key string, start, stop int64) []string
	ZRevRange(ctx context.Context, key string, start, stop int64) []string
	Publish(ctx context.Context, channel string, payload []byte)
}

// Upstream is the business api: awaited for calls that gate a user-visible
// ack, detached (Notify) for best-effort notifications.
type Upstream interface {
	Call(ctx context.Context, pattern string, payload any) rpc.Result
	Notify(pattern string, payload any)
}

// presence keys, written on join/leave and mirrored cross-instance
func userStatusKey(userID string) string { return "user:" + userID + ":status" }
func userRoomKey(userID string) string   { return "user:" + userID + ":room" }

// ConnectionResult is the ack for join-room and leave-room requests.
type ConnectionResult struct {
	RoomName string `json:"roomName"`
	UserID   string `json:"userId"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// Router validates inbound requests, orchestrates registry/broker/api side
// effects, and performs targeted emission. It is the only component that
// stitches the others together; it owns none of their state.
type Router struct {
	reg    *Registry
	broker Broker
	api    Upstream
	local  *cache.Memory
	fan    *Fanout // nil means inline emission

	presenceTTL time.Duration
}

type RouterConf struct {
	PresenceTTL time.Duration
}

func NewRouter(reg *Registry, broker Broker, api Upstream, local *cache.Memory, fan *Fanout, conf RouterConf) *Router {
	if conf.PresenceTTL <= 0 {
		conf.PresenceTTL = time.Hour
	}
	return &Router{
		reg:         reg,
		broker:      broker,
		api:         api,
		local:       local,
		fan:         fan,
		presenceTTL: conf.PresenceTTL,
	}
}

func (rt *Router) Registry() *Registry { return rt.reg }
func (rt *Router) Metrics() Metrics    { return rt.reg.Metrics() }

// ===== join / leave / disconnect =====

// HandleJoin binds the connection to the user, puts the user in the room,
// refreshes presence and asks the api to persist the join. An api failure
// degrades to a local-only join with a warning; validation failure is the
// only thing that produces an error ack, and it happens before any
// registry mutation.
func (rt *Router) HandleJoin(ctx context.Context, c *Client, payload map[string]any) {
	dto, err := parseConnection(payload)
	if err != nil {
		rt.ack(c, ConnectionResult{Status: rpc.StatusError, Message: err.Error()})
		return
	}

	wentOnline, displaced := rt.reg.Register(c, dto.UserID)
	if displaced != "" {
		// the connection switched identity and took the previous user's
		// last link with it; that counts as the displaced user's disconnect
		rt.propagateOffline(ctx, displaced)
	}
	rt.reg.JoinRoom(dto.UserID, dto.RoomName)

	rt.broker.Set(ctx, userStatusKey(dto.UserID), "online", rt.presenceTTL)
	rt.broker.Set(ctx, userRoomKey(dto.UserID), dto.RoomName, rt.presenceTTL)
	if wentOnline {
		rt.publishStatus(ctx, dto.UserID, "online")
	}

	res := rt.api.Call(ctx, chat.PatternJoinRoom, dto)
	if !res.OK() {
		// local-only join; the socket side is already bound
		logger.Warnf("[router] join persist failed user=%s room=%s: %s", dto.UserID, dto.RoomName, res.Message)
	}

	rt.ack(c, ConnectionResult{
		RoomName: dto.RoomName,
		UserID:   dto.UserID,
		Status:   rpc.StatusSuccess,
	})
	logger.Infof("[router] user %s joined room %s conn=%s", dto.UserID, dto.RoomName, c.ID)
}

// HandleLeave mirrors HandleJoin. Leaving the personal room is a
// disconnect intent for this connection; offline propagation still fires
// only when the connection set becomes empty. Leaving a shared room never
// touches presence.
func (rt *Router) HandleLeave(ctx context.Context, c *Client, payload map[string]any) {
	dto, err := parseConnection(payload)
	if err != nil {
		rt.ack(c, ConnectionResult{Status: rpc.StatusError, Message: err.Error()})
		return
	}

	if dto.RoomName == dto.UserID {
		if userID, wentOffline := rt.reg.Deregister(c.ID); wentOffline {
			rt.propagateOffline(ctx, userID)
		}
	} else {
		rt.reg.LeaveRoom(dto.UserID, dto.RoomName)
	}

	rt.api.Notify(chat.PatternLeaveRoom, dto)

	rt.ack(c, ConnectionResult{
		RoomName: dto.RoomName,
		UserID:   dto.UserID,
		Status:   rpc.StatusSuccess,
	})
	logger.Infof("[router] user %s left room %s conn=%s", dto.UserID, dto.RoomName, c.ID)
}

// HandleDisconnect runs on transport-level close: full cleanup of this
// connection's mappings, offline propagation when it was the last one.
func (rt *Router) HandleDisconnect(ctx context.Context, c *Client) {
	userID, wentOffline := rt.reg.Deregister(c.ID)
	if userID == "" {
		return // handshake-only connection, nothing registered
	}
	if wentOffline {
		rt.propagateOffline(ctx, userID)
	}
	logger.Infof("[router] conn %s closed user=%s offline=%v", c.ID, userID, wentOffline)
}

// propagateOffline flips the cross-instance view. Broker and api failures
// are soft; local registry state is already consistent either way.
func (rt *Router) propagateOffline(ctx context.Context, userID string) {
	rt.broker.Set(ctx, userStatusKey(userID), "offline", rt.presenceTTL)
	rt.broker.Del(ctx, userRoomKey(userID))
	rt.publishStatus(ctx, userID, "offline")
	rt.api.Notify("UpdateUserOfflineStatus", map[string]string{"userId": userID})
}

// publishStatus emits on the status channel in the same shape external
// producers use: the bare payload, no frame envelope.
func (rt *Router) publishStatus(ctx context.Context, userID, status string) {
	data, err := json.Marshal(map[string]any{
		"userId":    userID,
		"status":    status,
		"timestamp": time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	rt.broker.Publish(ctx, EventUserStatus.String(), data)
}

// ===== external event routing =====

// RouteExternalEvent dispatches one broker-originated event. The emission
// strategy is fixed per kind; the switch is exhaustive over EventKind.
// Unknown targets (offline user, empty room) are silent no-ops. Events for
// the same room go out in the order this method is called; there is no
// reordering or batching.
func (rt *Router) RouteExternalEvent(ctx context.Context, kind EventKind, payload map[string]any) {
	switch kind {
	case EventChatUpdate:
		dto, err := chat.ParseUpdate(payload)
		if err != nil {
			logger.Warnf("[router] drop %s: %v", kind, err)
			return
		}
		rt.emitRoom(dto.RoomName, chat.MethodUpdateData, payload)

	case EventChatNewMessage:
		msg, err := chat.ParseNewMessage(payload)
		if err != nil {
			logger.Warnf("[router] drop %s: %v", kind, err)
			return
		}
		for _, up := range chat.ApplyNewMessage(ctx, rt.broker, msg) {
			rt.emitUser(up.UserID, chat.MethodUpdateData, up.Dto)
		}

	case EventChatMessageRead:
		r, err := message.ParseRead(payload)
		if err != nil {
			logger.Warnf("[router] drop %s: %v", kind, err)
			return
		}
		up := chat.ApplyMessageRead(ctx, rt.broker, r.ChatID, r.UserID)
		rt.emitUser(up.UserID, chat.MethodUpdateData, up.Dto)

	case EventChatTyping:
		t, err := message.ParseTyping(payload)
		if err != nil {
			logger.Warnf("[router] drop %s: %v", kind, err)
			return
		}
		for _, userID := range message.ApplyTyping(ctx, rt.broker, t) {
			rt.emitUser(userID, message.MethodUpdateInterData, payload)
		}

	case EventUserStatus:
		// producers that know the audience list it in notifyUsers; without
		// one the change is broadcast
		if targets, ok := payload["notifyUsers"].([]any); ok && len(targets) > 0 {
			for _, t := range targets {
				if userID, ok := t.(string); ok && userID != "" {
					rt.emitUser(userID, message.MethodUpdateLineStatData, payload)
				}
			}
			return
		}
		rt.emitAll(message.MethodUpdateLineStatData, payload)

	case EventLikeNew:
		n, err := like.ParseNew(payload)
		if err != nil {
			logger.Warnf("[router] drop %s: %v", kind, err)
			return
		}
		rt.emitUser(n.ToUserID, like.MethodTriggerData, payload)

	case EventMatchNew:
		n, err := match.ParseNew(payload)
		if err != nil {
			logger.Warnf("[router] drop %s: %v", kind, err)
			return
		}
		// a match ships with a freshly created chat; link it for both sides
		if n.ChatID != "" && n.User1ID != "" && n.User2ID != "" {
			dto := &chat.AddDto{ChatID: n.ChatID, UserID: n.User1ID, CreatedAt: time.Now().UnixMilli()}
			dto.ToUser.ID = n.User2ID
			chat.ApplyAdd(ctx, rt.broker, dto)
		}
		for _, userID := range n.Targets() {
			rt.local.Delete("chats:" + userID)
			rt.emitUser(userID, match.MethodTriggerData, payload)
			if n.ChatID != "" {
				rt.emitUser(userID, chat.MethodAddData, map[string]any{"chatId": n.ChatID})
			}
		}

	case EventComplaintUpdate:
		sc, err := complaint.ParseStatusChange(payload)
		if err != nil {
			logger.Warnf("[router] drop %s: %v", kind, err)
			return
		}
		if sc.ComplainantID == "" {
			return
		}
		rt.emitUser(sc.ComplainantID, complaint.MethodStatusUpdated, payload)

	case EventComplaintStatusChanged:
		rt.emitAll(complaint.MethodStatusUpdated, payload)
	}
}

// ===== targeted emission =====

func (rt *Router) emitRoom(roomName, method string, payload any) {
	frame := MarshalFrame(method, payload)
	if frame == nil {
		return
	}
	var clients []*Client
	for _, userID := range rt.reg.MembersOf(roomName) {
		clients = append(clients, rt.reg.ClientsOf(userID)...)
	}
	rt.emit(clients, frame)
}

func (rt *Router) emitUser(userID, method string, payload any) {
	clients := rt.reg.ClientsOf(userID)
	if len(clients) == 0 {
		return // offline here: drop, no queuing
	}
	frame := MarshalFrame(method, payload)
	if frame == nil {
		return
	}
	rt.emit(clients, frame)
}

func (rt *Router) emitAll(method string, payload any) {
	frame := MarshalFrame(method, payload)
	if frame == nil {
		return
	}
	rt.emit(rt.reg.AllClients(), frame)
}

func (rt *Router) emit(clients []*Client, frame []byte) {
	if len(clients) == 0 {
		return
	}
	if rt.fan != nil {
		rt.fan.Broadcast(clients, frame)
		return
	}
	for _, c := range clients {
		c.Enqueue(frame)
	}
}

func (rt *Router) ack(c *Client, res ConnectionResult) {
	if frame := MarshalFrame(MethodConnection, res); frame != nil {
		c.Enqueue(frame)
	}
}

// ===== inbound validation =====

type connectionDto struct {
	RoomName string `json:"roomName"`
	UserID   string `json:"userId"`
}

func parseConnection(payload map[string]any) (*connectionDto, error) {
	roomName, _ := payload["roomName"].(string)
	userID, _ := payload["userId"].(string)
	if roomName == "" || userID == "" {
		return nil, errs.ErrArgs.WrapMsg("roomName and userId are required")
	}
	return &connectionDto{RoomName: roomName, UserID: userID}, nil
}
