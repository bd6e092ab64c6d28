package chat

import (
	"context"
	"strconv"
	"time"

	"MProject/tools/decode"
	"MProject/tools/errs"
)

// Client-facing event names for the chats surface.
const (
	MethodUpdateData = "UpdateData"
	MethodAddData    = "AddData"
	MethodDeleteData = "DeleteData"
	MethodChatsList  = "ChatsList"
	MethodChatsError = "ChatsError"
)

// Upstream api patterns.
const (
	PatternJoinRoom     = "JoinRoom"
	PatternLeaveRoom    = "LeaveRoom"
	PatternGetUserChats = "GetUserChats"
	PatternDeleteChat   = "DeleteChat"
)

const metaTTL = time.Hour

// Store is the slice of the broker this module needs. The gateway's
// broker manager satisfies it.
type Store interface {
	Get(ctx context.Context, key string) string
	Del(ctx context.Context, keys ...string)
	HSet(ctx context.Context, key string, pairs ...string)
	HGet(ctx context.Context, key, field string) string
	HGetAll(ctx context.Context, key string) map[string]string
	SAdd(ctx context.Context, key string, members ...string)
	SRem(ctx context.Context, key string, members ...string)
	SMembers(ctx context.Context, key string) []string
	ZAdd(ctx context.Context, key string, score float64, member string)
	ZRevRange(ctx context.Context, key string, start, stop int64) []string
	Expire(ctx context.Context, key string, ttl time.Duration)
}

// ===== broker key layout =====
// chat:<id>           hash  lastMsgId, lastMsgText, unreadCount, createdAt, updatedAt
// chat:<id>:users     set   participant user ids
// chat:<id>:msgs      zset  message ids scored by timestamp
// user:<id>:chats     set   chat ids

func ChatKey(chatID string) string      { return "chat:" + chatID }
func ChatUsersKey(chatID string) string { return "chat:" + chatID + ":users" }
func ChatMsgsKey(chatID string) string  { return "chat:" + chatID + ":msgs" }
func UserChatsKey(userID string) string { return "user:" + userID + ":chats" }

// ===== payloads =====

type UpdateDto struct {
	RoomName       string `json:"roomName"`
	UserID         string `json:"userId"`
	ChatID         string `json:"chatId"`
	NewLastMsgID   string `json:"newLastMsgId,omitempty"`
	NewUnreadCount *int   `json:"newUnreadCount,omitempty"`
}

func ParseUpdate(payload map[string]any) (*UpdateDto, error) {
	dto, err := decode.Map[UpdateDto](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if dto.ChatID == "" || dto.RoomName == "" {
		return nil, errs.ErrPayload.WrapMsg("chatId and roomName are required")
	}
	return dto, nil
}

type AddDto struct {
	RoomName  string `json:"roomName"`
	UserID    string `json:"userId"`
	ChatID    string `json:"chatId"`
	CreatedAt int64  `json:"createdAt"`
	ToUser    struct {
		ID string `json:"id"`
	} `json:"toUser"`
}

type DeleteDto struct {
	RoomName string `json:"roomName"`
	UserID   string `json:"userId"`
	ChatID   string `json:"chatId"`
}

func ParseDelete(payload map[string]any) (*DeleteDto, error) {
	dto, err := decode.Map[DeleteDto](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if dto.ChatID == "" || dto.UserID == "" {
		return nil, errs.ErrPayload.WrapMsg("chatId and userId are required")
	}
	return dto, nil
}

type NewMessage struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
	SenderID  string `json:"senderId"`
	Timestamp int64  `json:"timestamp"`
}

func ParseNewMessage(payload map[string]any) (*NewMessage, error) {
	msg, err := decode.Map[NewMessage](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if msg.ChatID == "" {
		return nil, errs.ErrPayload.WrapMsg("chatId is required")
	}
	return msg, nil
}

// Update is one per-user emission prepared from an external event.
type Update struct {
	UserID string
	Dto    UpdateDto
}

// ApplyNewMessage refreshes the chat metadata in the broker and prepares
// the per-participant updates: recipients get an incremented unread
// count, the sender sees zero. The message id also lands in the chat's
// time-ordered index.
func ApplyNewMessage(ctx context.Context, store Store, msg *NewMessage) []Update {
	key := ChatKey(msg.ChatID)
	ts := msg.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	store.HSet(ctx, key,
		"lastMsgId", msg.MessageID,
		"lastMsgText", msg.Text,
		"updatedAt", strconv.FormatInt(ts, 10),
	)
	store.Expire(ctx, key, metaTTL)
	if msg.MessageID != "" {
		store.ZAdd(ctx, ChatMsgsKey(msg.ChatID), float64(ts), msg.MessageID)
	}

	users := store.SMembers(ctx, ChatUsersKey(msg.ChatID))
	out := make([]Update, 0, len(users))
	for _, userID := range users {
		unread := 0
		if userID != msg.SenderID {
			if cur := store.HGet(ctx, key, "unreadCount"); cur != "" {
				unread, _ = strconv.Atoi(cur)
			}
			unread++
			store.HSet(ctx, key, "unreadCount", strconv.Itoa(unread))
		}
		n := unread
		out = append(out, Update{
			UserID: userID,
			Dto: UpdateDto{
				RoomName:       userID,
				UserID:         userID,
				ChatID:         msg.ChatID,
				NewLastMsgID:   msg.MessageID,
				NewUnreadCount: &n,
			},
		})
	}
	return out
}

// ApplyAdd caches a freshly created chat and links it to both
// participants' chat lists.
func ApplyAdd(ctx context.Context, store Store, dto *AddDto) {
	if dto.ChatID == "" {
		return
	}
	key := ChatKey(dto.ChatID)
	store.HSet(ctx, key, "createdAt", strconv.FormatInt(dto.CreatedAt, 10))
	store.Expire(ctx, key, metaTTL)

	if dto.UserID != "" && dto.ToUser.ID != "" {
		store.SAdd(ctx, ChatUsersKey(dto.ChatID), dto.UserID, dto.ToUser.ID)
		store.SAdd(ctx, UserChatsKey(dto.UserID), dto.ChatID)
		store.SAdd(ctx, UserChatsKey(dto.ToUser.ID), dto.ChatID)
	}
}

// ApplyDelete drops every trace of a chat from the broker.
func ApplyDelete(ctx context.Context, store Store, dto *DeleteDto) {
	users := store.SMembers(ctx, ChatUsersKey(dto.ChatID))
	store.Del(ctx,
		ChatKey(dto.ChatID),
		ChatUsersKey(dto.ChatID),
		ChatMsgsKey(dto.ChatID),
	)
	for _, userID := range users {
		store.SRem(ctx, UserChatsKey(userID), dto.ChatID)
	}
}

// ApplyMessageRead resets the unread counter and prepares the update for
// the reading user.
func ApplyMessageRead(ctx context.Context, store Store, chatID, userID string) Update {
	store.HSet(ctx, ChatKey(chatID), "unreadCount", "0")
	zero := 0
	return Update{
		UserID: userID,
		Dto: UpdateDto{
			RoomName:       userID,
			UserID:         userID,
			ChatID:         chatID,
			NewUnreadCount: &zero,
		},
	}
}

// ChatSummary is one assembled entry of a user's chat list.
type ChatSummary map[string]string

// LoadUserChats assembles the user's chat list from broker state. Empty
// when nothing is cached; the caller then falls back to the api.
func LoadUserChats(ctx context.Context, store Store, userID string) []ChatSummary {
	ids := store.SMembers(ctx, UserChatsKey(userID))
	out := make([]ChatSummary, 0, len(ids))
	for _, chatID := range ids {
		meta := store.HGetAll(ctx, ChatKey(chatID))
		if len(meta) == 0 {
			continue
		}
		meta["id"] = chatID
		out = append(out, meta)
	}
	return out
}

// CacheChats writes api-fetched chat summaries back to the broker so the
// next lookup is local.
func CacheChats(ctx context.Context, store Store, userID string, chats []ChatSummary) {
	for _, c := range chats {
		id := c["id"]
		if id == "" {
			continue
		}
		pairs := make([]string, 0, len(c)*2)
		for k, v := range c {
			if k == "id" {
				continue
			}
			pairs = append(pairs, k, v)
		}
		if len(pairs) > 0 {
			store.HSet(ctx, ChatKey(id), pairs...)
			store.Expire(ctx, ChatKey(id), metaTTL)
		}
		store.SAdd(ctx, UserChatsKey(userID), id)
	}
}
