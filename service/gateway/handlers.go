package gateway

import (
	"context"
	"encoding/json"

	"MProject/logger"
	"MProject/module/chat"
	"MProject/module/complaint"
	"MProject/module/like"
	"MProject/module/match"
	"MProject/module/message"
	"MProject/service/rpc"
)

// NewDispatcherFor wires every client-facing method to its handler. The
// inbound method names double as upstream api patterns; the gateway is a
// relay with local side effects, not a second api surface.
func NewDispatcherFor(rt *Router) *Dispatcher {
	d := NewDispatcher()
	d.Register(chat.PatternJoinRoom, rt.HandleJoin)
	d.Register(chat.PatternLeaveRoom, rt.HandleLeave)
	d.Register(chat.PatternGetUserChats, rt.handleGetChats)
	d.Register(chat.PatternDeleteChat, rt.handleDeleteChat)
	d.Register(message.PatternSendMsg, rt.handleSendMsg)
	d.Register(message.PatternUpdateMsg, rt.handleUpdateMsg)
	d.Register(message.PatternUpdateInterlocutor, rt.handleInterlocutor)
	d.Register(like.PatternTrigger, rt.handleLike)
	d.Register(match.PatternTrigger, rt.handleMatch)
	d.Register(complaint.PatternCreate, rt.handleCreateComplaint)
	d.Register(complaint.PatternUpdate, rt.handleUpdateComplaint)
	return d
}

// handleSendMsg relays a new message to the api. On success the recipient
// and the sender both get the persisted message; on failure only the
// sender hears about it.
func (rt *Router) handleSendMsg(ctx context.Context, c *Client, payload map[string]any) {
	dto, err := message.ParseSend(payload)
	if err != nil {
		rt.sendResult(c, message.MethodSendMsgData, rpc.ErrResult(err.Error()))
		return
	}

	res := rt.api.Call(ctx, message.PatternSendMsg, dto)
	if !res.OK() {
		rt.sendResult(c, message.MethodSendMsgData, res)
		return
	}

	rt.emitUser(dto.ToUser, message.MethodSendMsgData, resultPayload(res))
	rt.sendResult(c, message.MethodSendMsgData, res)
}

// handleUpdateMsg relays an edit or a read-status flip. The room named in
// the payload sees the change; the sender gets the ack either way.
func (rt *Router) handleUpdateMsg(ctx context.Context, c *Client, payload map[string]any) {
	dto, err := message.ParseUpdate(payload)
	if err != nil {
		rt.sendResult(c, message.MethodUpdateMsgData, rpc.ErrResult(err.Error()))
		return
	}

	res := rt.api.Call(ctx, message.PatternUpdateMsg, dto)
	if res.OK() {
		rt.emitRoom(dto.RoomName, message.MethodUpdateMsgData, resultPayload(res))
	}
	rt.sendResult(c, message.MethodUpdateMsgData, res)
}

// handleInterlocutor relays a typing-state change. Transient state: the
// api is told in the background and the room is told immediately.
func (rt *Router) handleInterlocutor(ctx context.Context, c *Client, payload map[string]any) {
	dto, err := message.ParseInterlocutor(payload)
	if err != nil {
		rt.sendResult(c, message.MethodUpdateInterData, rpc.ErrResult(err.Error()))
		return
	}

	rt.api.Notify(message.PatternUpdateInterlocutor, dto)
	rt.emitRoom(dto.RoomName, message.MethodUpdateInterData, payload)
}

func (rt *Router) handleLike(ctx context.Context, c *Client, payload map[string]any) {
	dto, err := like.ParseTrigger(payload)
	if err != nil {
		rt.sendResult(c, like.MethodTriggerData, rpc.ErrResult(err.Error()))
		return
	}

	res := rt.api.Call(ctx, like.PatternTrigger, dto)
	if res.OK() {
		rt.emitRoom(dto.RoomName, like.MethodTriggerData, resultPayload(res))
	}
	rt.sendResult(c, like.MethodTriggerData, res)
}

func (rt *Router) handleMatch(ctx context.Context, c *Client, payload map[string]any) {
	dto, err := match.ParseTrigger(payload)
	if err != nil {
		rt.sendResult(c, match.MethodTriggerData, rpc.ErrResult(err.Error()))
		return
	}

	res := rt.api.Call(ctx, match.PatternTrigger, dto)
	if res.OK() {
		rt.emitRoom(dto.RoomName, match.MethodTriggerData, resultPayload(res))
	}
	rt.sendResult(c, match.MethodTriggerData, res)
}

func (rt *Router) handleCreateComplaint(ctx context.Context, c *Client, payload map[string]any) {
	dto, err := complaint.ParseCreate(payload)
	if err != nil {
		rt.sendResult(c, complaint.MethodCreated, rpc.ErrResult(err.Error()))
		return
	}

	res := rt.api.Call(ctx, complaint.PatternCreate, dto)
	rt.sendResult(c, complaint.MethodCreated, res)
}

func (rt *Router) handleUpdateComplaint(ctx context.Context, c *Client, payload map[string]any) {
	dto, err := complaint.ParseUpdate(payload)
	if err != nil {
		rt.sendResult(c, complaint.MethodUpdated, rpc.ErrResult(err.Error()))
		return
	}

	res := rt.api.Call(ctx, complaint.PatternUpdate, dto)
	rt.sendResult(c, complaint.MethodUpdated, res)
}

// handleGetChats resolves the user's chat list through three tiers: the
// in-process cache, the broker, then the api. Api results are written back
// to both caches so the next hit is local.
func (rt *Router) handleGetChats(ctx context.Context, c *Client, payload map[string]any) {
	userID, _ := payload["userId"].(string)
	if userID == "" {
		rt.sendResult(c, chat.MethodChatsError, rpc.ErrResult("userId is required"))
		return
	}
	cacheKey := "chats:" + userID

	if v, ok := rt.local.Get(cacheKey); ok {
		if chats, ok := v.([]chat.ChatSummary); ok {
			rt.sendChats(c, chats)
			return
		}
	}

	if chats := chat.LoadUserChats(ctx, rt.broker, userID); len(chats) > 0 {
		rt.local.Set(cacheKey, chats, 0)
		rt.sendChats(c, chats)
		return
	}

	res := rt.api.Call(ctx, chat.PatternGetUserChats, map[string]string{"userId": userID})
	if !res.OK() {
		rt.sendResult(c, chat.MethodChatsError, res)
		return
	}

	var chats []chat.ChatSummary
	if len(res.Data) > 0 {
		if err := json.Unmarshal(res.Data, &chats); err != nil {
			logger.Warnf("[router] chats payload for %s: %v", userID, err)
			rt.sendResult(c, chat.MethodChatsError, rpc.ErrResult("malformed chats payload"))
			return
		}
	}
	chat.CacheChats(ctx, rt.broker, userID, chats)
	rt.local.Set(cacheKey, chats, 0)
	rt.sendChats(c, chats)
}

// handleDeleteChat relays the deletion upstream, then scrubs the broker
// state and tells every participant to drop the chat from their list. The
// requester's own cached list is invalidated so the next GetChats is fresh.
func (rt *Router) handleDeleteChat(ctx context.Context, c *Client, payload map[string]any) {
	dto, err := chat.ParseDelete(payload)
	if err != nil {
		rt.sendResult(c, chat.MethodDeleteData, rpc.ErrResult(err.Error()))
		return
	}

	res := rt.api.Call(ctx, chat.PatternDeleteChat, dto)
	if !res.OK() {
		rt.sendResult(c, chat.MethodDeleteData, res)
		return
	}

	participants := rt.broker.SMembers(ctx, chat.ChatUsersKey(dto.ChatID))
	chat.ApplyDelete(ctx, rt.broker, dto)

	notifiedSelf := false
	for _, userID := range participants {
		rt.local.Delete("chats:" + userID)
		rt.emitUser(userID, chat.MethodDeleteData, payload)
		if userID == dto.UserID {
			notifiedSelf = true
		}
	}
	if !notifiedSelf {
		rt.local.Delete("chats:" + dto.UserID)
		rt.sendResult(c, chat.MethodDeleteData, res)
	}
}

func (rt *Router) sendChats(c *Client, chats []chat.ChatSummary) {
	if frame := MarshalFrame(chat.MethodChatsList, map[string]any{"chats": chats}); frame != nil {
		c.Enqueue(frame)
	}
}

func (rt *Router) sendResult(c *Client, method string, res rpc.Result) {
	if frame := MarshalFrame(method, resultPayload(res)); frame != nil {
		c.Enqueue(frame)
	}
}

// resultPayload flattens an api result into a frame payload. Data stays
// under its own key so a structured error never collides with it.
func resultPayload(res rpc.Result) map[string]any {
	out := map[string]any{"status": res.Status}
	if res.Message != "" {
		out["message"] = res.Message
	}
	if len(res.Data) > 0 {
		var data any
		if err := json.Unmarshal(res.Data, &data); err == nil {
			out["data"] = data
		}
	}
	return out
}
