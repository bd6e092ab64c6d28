package message

import (
	"context"
	"time"

	"MProject/tools/decode"
	"MProject/tools/errs"
)

// Client-facing event names for the messages surface.
const (
	MethodSendMsgData        = "SendMsgData"
	MethodUpdateMsgData      = "UpdateMsgData"
	MethodUpdateInterData    = "UpdateInterData"
	MethodUpdateLineStatData = "UpdateLineStatData"
)

// Upstream api patterns.
const (
	PatternSendMsg            = "SendMsg"
	PatternUpdateMsg          = "UpdateMsg"
	PatternUpdateInterlocutor = "UpdateInterlocutor"
)

// read status of a message
const (
	ReadStatRead   = "READ"
	ReadStatUnread = "UNREAD"
)

// typing state of the interlocutor
const (
	WriteStatTyping = "TYPING"
	WriteStatIdle   = "IDLE"
)

type SendDto struct {
	RoomName string `json:"roomName"`
	UserID   string `json:"userId"`
	ChatID   string `json:"chatId"`
	ToUser   string `json:"toUser"`
	NewMsg   string `json:"newMsg"`
}

func ParseSend(payload map[string]any) (*SendDto, error) {
	dto, err := decode.Map[SendDto](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if dto.RoomName == "" || dto.UserID == "" || dto.ChatID == "" || dto.ToUser == "" || dto.NewMsg == "" {
		return nil, errs.ErrPayload.WrapMsg("roomName, userId, chatId, toUser and newMsg are required")
	}
	return dto, nil
}

// UpdateDto touches an existing message: a new text, a read-status flip,
// or both, never neither.
type UpdateDto struct {
	RoomName string `json:"roomName"`
	UserID   string `json:"userId"`
	ChatID   string `json:"chatId"`
	MsgID    string `json:"msgId"`
	NewMsg   string `json:"newMsg,omitempty"`
	ReadStat string `json:"readStat,omitempty"`
}

func ParseUpdate(payload map[string]any) (*UpdateDto, error) {
	dto, err := decode.Map[UpdateDto](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if dto.RoomName == "" || dto.UserID == "" || dto.ChatID == "" || dto.MsgID == "" {
		return nil, errs.ErrPayload.WrapMsg("roomName, userId, chatId and msgId are required")
	}
	if dto.NewMsg == "" && dto.ReadStat == "" {
		return nil, errs.ErrPayload.WrapMsg("at least one of newMsg or readStat must be set")
	}
	if dto.ReadStat != "" && dto.ReadStat != ReadStatRead && dto.ReadStat != ReadStatUnread {
		return nil, errs.ErrPayload.WrapMsg("readStat must be READ or UNREAD")
	}
	return dto, nil
}

type InterlocutorDto struct {
	RoomName     string `json:"roomName"`
	UserID       string `json:"userId"`
	NewWriteStat string `json:"newWriteStat"`
}

func ParseInterlocutor(payload map[string]any) (*InterlocutorDto, error) {
	dto, err := decode.Map[InterlocutorDto](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if dto.RoomName == "" || dto.UserID == "" {
		return nil, errs.ErrPayload.WrapMsg("roomName and userId are required")
	}
	if dto.NewWriteStat != WriteStatTyping && dto.NewWriteStat != WriteStatIdle {
		return nil, errs.ErrPayload.WrapMsg("newWriteStat must be TYPING or IDLE")
	}
	return dto, nil
}

// ===== broker-originated payloads =====

// Typing relays an interlocutor's typing state to chat participants.
type Typing struct {
	ChatID       string   `json:"chatId"`
	UserID       string   `json:"userId"`
	IsTyping     bool     `json:"isTyping"`
	Participants []string `json:"participants"`
}

func ParseTyping(payload map[string]any) (*Typing, error) {
	t, err := decode.Map[Typing](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if t.ChatID == "" || t.UserID == "" {
		return nil, errs.ErrPayload.WrapMsg("chatId and userId are required")
	}
	return t, nil
}

// TypingStore keeps the live typing set per chat so late joiners can see
// who is mid-sentence.
type TypingStore interface {
	SAdd(ctx context.Context, key string, members ...string)
	SRem(ctx context.Context, key string, members ...string)
	Expire(ctx context.Context, key string, ttl time.Duration)
}

func TypingKey(chatID string) string { return "chat:" + chatID + ":typing" }

// ApplyTyping mirrors the typing flag into the broker set and returns the
// users to notify (everyone listed except the typist).
func ApplyTyping(ctx context.Context, store TypingStore, t *Typing) []string {
	key := TypingKey(t.ChatID)
	if t.IsTyping {
		store.SAdd(ctx, key, t.UserID)
		store.Expire(ctx, key, time.Minute)
	} else {
		store.SRem(ctx, key, t.UserID)
	}

	out := make([]string, 0, len(t.Participants))
	for _, p := range t.Participants {
		if p != t.UserID {
			out = append(out, p)
		}
	}
	return out
}

// Read marks messages as seen by a user.
type Read struct {
	ChatID     string   `json:"chatId"`
	UserID     string   `json:"userId"`
	MessageIDs []string `json:"messageIds"`
	Timestamp  int64    `json:"timestamp"`
}

func ParseRead(payload map[string]any) (*Read, error) {
	r, err := decode.Map[Read](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if r.ChatID == "" || r.UserID == "" {
		return nil, errs.ErrPayload.WrapMsg("chatId and userId are required")
	}
	return r, nil
}
