package like

import (
	"MProject/tools/decode"
	"MProject/tools/errs"
)

const (
	MethodTriggerData = "TriggerData"

	PatternTrigger = "Like"
)

// FromUser is the card shown with a like notification.
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
	if dto.FromUser.ID == "" {
		return nil, errs.ErrPayload.WrapMsg("fromUser.id is required")
	}
	return dto, nil
}

// New is the broker-originated like event; delivery targets the liked
// user only.
type New struct {
	ToUserID string   `json:"toUserId"`
	FromUser FromUser `json:"fromUser"`
	IsMutual bool     `json:"isMutual"`
}

func ParseNew(payload map[string]any) (*New, error) {
	n, err := decode.Map[New](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if n.ToUserID == "" {
		return nil, errs.ErrPayload.WrapMsg("toUserId is required")
	}
	return n, nil
}
