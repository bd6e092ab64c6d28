package complaint

import (
	"MProject/tools/decode"
	"MProject/tools/errs"
)

const (
	MethodCreated       = "ComplaintCreated"
	MethodUpdated       = "ComplaintUpdated"
	MethodStatusUpdated = "ComplaintStatusUpdated"

	PatternCreate = "CreateComplaint"
	PatternUpdate = "UpdateComplaint"
)

// Status values mirror the moderation pipeline.
const (
	StatusPending     = "PENDING"
	StatusUnderReview = "UNDER_REVIEW"
	StatusResolved    = "RESOLVED"
	StatusRejected    = "REJECTED"
)

var validStatus = map[string]struct{}{
	StatusPending:     {},
	StatusUnderReview: {},
	StatusResolved:    {},
	StatusRejected:    {},
}

// Complaint categories.
const (
	TypeOffensiveContent   = "OFFENSIVE_CONTENT"
	TypeFakeProfile        = "FAKE_PROFILE"
	TypeHarassment         = "HARASSMENT"
	TypeInappropriatePhoto = "INAPPROPRIATE_PHOTO"
	TypeSpam               = "SPAM"
	TypeUnderageUser       = "UNDERAGE_USER"
	TypeOther              = "OTHER"
)

var validType = map[string]struct{}{
	TypeOffensiveContent:   {},
	TypeFakeProfile:        {},
	TypeHarassment:         {},
	TypeInappropriatePhoto: {},
	TypeSpam:               {},
	TypeUnderageUser:       {},
	TypeOther:              {},
}

func ValidStatus(s string) bool {
	_, ok := validStatus[s]
	return ok
}

func ValidType(t string) bool {
	_, ok := validType[t]
	return ok
}

type CreateDto struct {
	RoomName          string `json:"roomName"`
	UserID            string `json:"userId"`
	FromUserID        string `json:"fromUserId"`
	ReportedUserID    string `json:"reportedUserId"`
	Type              string `json:"type"`
	Description       string `json:"description"`
	ReportedContentID string `json:"reportedContentId,omitempty"`
}

func ParseCreate(payload map[string]any) (*CreateDto, error) {
	dto, err := decode.Map[CreateDto](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if dto.RoomName == "" || dto.UserID == "" || dto.FromUserID == "" || dto.ReportedUserID == "" || dto.Description == "" {
		return nil, errs.ErrPayload.WrapMsg("roomName, userId, fromUserId, reportedUserId and description are required")
	}
	if !ValidType(dto.Type) {
		return nil, errs.ErrPayload.WrapMsg("unknown complaint type " + dto.Type)
	}
	return dto, nil
}

type UpdateDto struct {
	RoomName        string `json:"roomName"`
	UserID          string `json:"userId"`
	ComplaintID     string `json:"complaintId"`
	Status          string `json:"status"`
	ResolutionNotes string `json:"resolutionNotes,omitempty"`
}

func ParseUpdate(payload map[string]any) (*UpdateDto, error) {
	dto, err := decode.Map[UpdateDto](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if dto.RoomName == "" || dto.UserID == "" || dto.ComplaintID == "" {
		return nil, errs.ErrPayload.WrapMsg("roomName, userId and complaintId are required")
	}
	if !ValidStatus(dto.Status) {
		return nil, errs.ErrPayload.WrapMsg("unknown complaint status " + dto.Status)
	}
	return dto, nil
}

// StatusChange is the broker-originated moderation update, targeting the
// complainant.
type StatusChange struct {
	ComplaintID   string `json:"complaintId"`
	ComplainantID string `json:"complainantId"`
	Status        string `json:"status"`
	Timestamp     int64  `json:"timestamp"`
}

func ParseStatusChange(payload map[string]any) (*StatusChange, error) {
	sc, err := decode.Map[StatusChange](payload)
	if err != nil {
		return nil, errs.ErrPayload.WrapMsg(err.Error())
	}
	if sc.ComplaintID == "" {
		return nil, errs.ErrPayload.WrapMsg("complaintId is required")
	}
	return sc, nil
}
