package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"MProject/module/chat"
	"MProject/module/complaint"
	"MProject/module/message"
	"MProject/service/rpc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMsgDeliversToRecipientAndAcksSender(t *testing.T) {
	rt, _, api := newTestRouter(t)
	sender := NewClient("c1", nil)
	recipient := NewClient("c2", nil)
	rt.HandleJoin(context.Background(), sender, joinPayload("alice", "alice"))
	rt.HandleJoin(context.Background(), recipient, joinPayload("bob", "bob"))
	drainFrames(t, sender)
	drainFrames(t, recipient)

	data, _ := json.Marshal(map[string]string{"messageId": "m1"})
	api.results[message.PatternSendMsg] = rpc.Result{Status: rpc.StatusSuccess, Data: data}

	rt.handleSendMsg(context.Background(), sender, map[string]any{
		"roomName": "bob",
		"userId":   "alice",
		"chatId":   "chat-7",
		"toUser":   "bob",
		"newMsg":   "hi there",
	})

	got := nextFrame(t, recipient)
	require.NotNil(t, got)
	assert.Equal(t, message.MethodSendMsgData, got.Method)

	ack := nextFrame(t, sender)
	require.NotNil(t, ack)
	assert.Equal(t, message.MethodSendMsgData, ack.Method)
	assert.Equal(t, rpc.StatusSuccess, ack.Payload["status"])
}

func TestSendMsgFailureOnlyReachesSender(t *testing.T) {
	rt, _, api := newTestRouter(t)
	sender := NewClient("c1", nil)
	recipient := NewClient("c2", nil)
	rt.HandleJoin(context.Background(), sender, joinPayload("alice", "alice"))
	rt.HandleJoin(context.Background(), recipient, joinPayload("bob", "bob"))
	drainFrames(t, sender)
	drainFrames(t, recipient)
	api.results[message.PatternSendMsg] = rpc.ErrResult("operation failed")

	rt.handleSendMsg(context.Background(), sender, map[string]any{
		"roomName": "bob",
		"userId":   "alice",
		"chatId":   "chat-7",
		"toUser":   "bob",
		"newMsg":   "hi there",
	})

	assert.Nil(t, nextFrame(t, recipient))
	ack := nextFrame(t, sender)
	require.NotNil(t, ack)
	assert.Equal(t, rpc.StatusError, ack.Payload["status"])
	assert.Equal(t, "operation failed", ack.Payload["message"])
}

func TestUpdateMsgRequiresChangeSet(t *testing.T) {
	rt, _, api := newTestRouter(t)
	sender := NewClient("c1", nil)
	rt.HandleJoin(context.Background(), sender, joinPayload("alice", "alice"))
	drainFrames(t, sender)

	// neither newMsg nor readStat
	rt.handleUpdateMsg(context.Background(), sender, map[string]any{
		"roomName": "bob",
		"userId":   "alice",
		"chatId":   "chat-7",
		"msgId":    "m1",
	})

	ack := nextFrame(t, sender)
	require.NotNil(t, ack)
	assert.Equal(t, rpc.StatusError, ack.Payload["status"])
	assert.Empty(t, api.calls[1:]) // nothing past the join reached the api
}

func TestInterlocutorStateFansOutWithoutAwaitingApi(t *testing.T) {
	rt, _, api := newTestRouter(t)
	sender := NewClient("c1", nil)
	peer := NewClient("c2", nil)
	rt.HandleJoin(context.Background(), sender, joinPayload("alice", "alice"))
	rt.HandleJoin(context.Background(), peer, joinPayload("bob", "bob"))
	drainFrames(t, sender)
	drainFrames(t, peer)

	rt.handleInterlocutor(context.Background(), sender, map[string]any{
		"roomName":     "bob",
		"userId":       "alice",
		"newWriteStat": message.WriteStatTyping,
	})

	f := nextFrame(t, peer)
	require.NotNil(t, f)
	assert.Equal(t, message.MethodUpdateInterData, f.Method)
	assert.Equal(t, message.WriteStatTyping, f.Payload["newWriteStat"])
	assert.Contains(t, api.notifies, message.PatternUpdateInterlocutor)
}

func TestCreateComplaintValidatesType(t *testing.T) {
	rt, _, api := newTestRouter(t)
	c := NewClient("c1", nil)
	rt.HandleJoin(context.Background(), c, joinPayload("alice", "alice"))
	drainFrames(t, c)

	rt.handleCreateComplaint(context.Background(), c, map[string]any{
		"roomName":       "alice",
		"userId":         "alice",
		"fromUserId":     "alice",
		"reportedUserId": "mallory",
		"type":           "NOT_A_TYPE",
		"description":    "spamming",
	})

	ack := nextFrame(t, c)
	require.NotNil(t, ack)
	assert.Equal(t, complaint.MethodCreated, ack.Method)
	assert.Equal(t, rpc.StatusError, ack.Payload["status"])
	assert.Len(t, api.calls, 1) // just the join
}

func TestCreateComplaintRelaysToApi(t *testing.T) {
	rt, _, api := newTestRouter(t)
	c := NewClient("c1", nil)
	rt.HandleJoin(context.Background(), c, joinPayload("alice", "alice"))
	drainFrames(t, c)

	rt.handleCreateComplaint(context.Background(), c, map[string]any{
		"roomName":       "alice",
		"userId":         "alice",
		"fromUserId":     "alice",
		"reportedUserId": "mallory",
		"type":           complaint.TypeSpam,
		"description":    "spamming",
	})

	ack := nextFrame(t, c)
	require.NotNil(t, ack)
	assert.Equal(t, rpc.StatusSuccess, ack.Payload["status"])
	assert.Contains(t, api.calls, complaint.PatternCreate)
}

func TestDeleteChatScrubsBrokerAndNotifiesParticipants(t *testing.T) {
	rt, broker, api := newTestRouter(t)
	alice := NewClient("c1", nil)
	bob := NewClient("c2", nil)
	rt.HandleJoin(context.Background(), alice, joinPayload("alice", "alice"))
	rt.HandleJoin(context.Background(), bob, joinPayload("bob", "bob"))
	drainFrames(t, alice)
	drainFrames(t, bob)

	ctx := context.Background()
	broker.SAdd(ctx, chat.ChatUsersKey("chat-7"), "alice", "bob")
	broker.SAdd(ctx, chat.UserChatsKey("alice"), "chat-7")
	broker.SAdd(ctx, chat.UserChatsKey("bob"), "chat-7")
	broker.HSet(ctx, chat.ChatKey("chat-7"), "lastMsgText", "bye")

	rt.handleDeleteChat(ctx, alice, map[string]any{
		"roomName": "alice",
		"userId":   "alice",
		"chatId":   "chat-7",
	})

	assert.Contains(t, api.calls, chat.PatternDeleteChat)
	assert.Empty(t, broker.hashes[chat.ChatKey("chat-7")])
	assert.Empty(t, broker.SMembers(ctx, chat.UserChatsKey("alice")))
	assert.Empty(t, broker.SMembers(ctx, chat.UserChatsKey("bob")))

	for _, c := range []*Client{alice, bob} {
		f := nextFrame(t, c)
		require.NotNil(t, f)
		assert.Equal(t, chat.MethodDeleteData, f.Method)
	}
}

func TestDeleteChatUpstreamFailureLeavesBrokerAlone(t *testing.T) {
	rt, broker, api := newTestRouter(t)
	alice := NewClient("c1", nil)
	rt.HandleJoin(context.Background(), alice, joinPayload("alice", "alice"))
	drainFrames(t, alice)

	ctx := context.Background()
	broker.SAdd(ctx, chat.ChatUsersKey("chat-7"), "alice")
	api.results[chat.PatternDeleteChat] = rpc.ErrResult("operation failed")

	rt.handleDeleteChat(ctx, alice, map[string]any{
		"userId": "alice",
		"chatId": "chat-7",
	})

	assert.NotEmpty(t, broker.SMembers(ctx, chat.ChatUsersKey("chat-7")))
	ack := nextFrame(t, alice)
	require.NotNil(t, ack)
	assert.Equal(t, rpc.StatusError, ack.Payload["status"])
}

func TestDispatcherDropsUnknownMethod(t *testing.T) {
	rt, _, _ := newTestRouter(t)
	d := NewDispatcherFor(rt)
	c := NewClient("c1", nil)

	d.Dispatch(context.Background(), c, &Frame{Method: "NoSuchThing"})
	assert.Nil(t, nextFrame(t, c))
}
