package match

import (
	"MProject/tools/decode"
	"MProject/tools/errs"
)

const (
	MethodTriggerData = "TriggerData"

	PatternTrigger = "Match"
)

type FromUser struct {
	ID     string `json:"id"`
	Avatar string `json:"avatar"`
	Name   string `json:"name"`
}

type TriggerDto struct {
	RoomName  string   `json:"roomName"`
	UserID    string   `json:"userId"`
	IsTrigger bool     `json:"isTrigger"`
	FromUser  FromUser `json:"fromUser"`
}

func ParseTrigger(payload map[string]any) (*TriggerDto, error) {
	dto, err := decode.Map[TriggerDto](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if dto.RoomName == "" || dto.UserID == "" {
		return nil, errs.ErrPayload.WrapMsg("roomName and userId are required")
	}
	return dto, nil
}

// New is the broker-originated match event. Both sides get notified; an
// offline side is dropped silently on this instance.
type New struct {
	User1ID string `json:"user1Id"`
	User2ID string `json:"user2Id"`
	ChatID  string `json:"chatId,omitempty"`
}

func ParseNew(payload map[string]any) (*New, error) {
	n, err := decode.Map[New](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if n.User1ID == "" && n.User2ID == "" {
		return nil, errs.ErrPayload.WrapMsg("user1Id or user2Id is required")
	}
	return n, nil
}

// Targets lists the users to notify, skipping the empty side.
func (n *New) Targets() []string {
	out := make([]string, 0, 2)
	if n.User1ID != "" {
		out = append(out, n.User1ID)
	}
	if n.User2ID != "" {
		out = append(out, n.User2ID)
	}
	return out
}
