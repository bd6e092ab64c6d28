package complaint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreate() map[string]any {
	return map[string]any{
		"roomName":       "alice",
		"userId":         "alice",
		"fromUserId":     "alice",
		"reportedUserId": "mallory",
		"type":           TypeHarassment,
		"description":    "unwanted messages",
	}
}

func TestParseCreateAcceptsEveryKnownType(t *testing.T) {
	for typ := range validType {
		p := validCreate()
		p["type"] = typ
		_, err := ParseCreate(p)
		assert.NoError(t, err, "type %s", typ)
	}
}

func TestParseCreateRejectsUnknownType(t *testing.T) {
	p := validCreate()
	p["type"] = "RUDE"
	_, err := ParseCreate(p)
	assert.Error(t, err)
}

func TestParseCreateRequiresDescription(t *testing.T) {
	p := validCreate()
	p["description"] = ""
	_, err := ParseCreate(p)
	assert.Error(t, err)
}

func TestParseUpdateValidatesStatus(t *testing.T) {
	p := map[string]any{
		"roomName":    "alice",
		"userId":      "alice",
		"complaintId": "cmp-1",
		"status":      "DONE",
	}
	_, err := ParseUpdate(p)
	assert.Error(t, err)

	p["status"] = StatusResolved
	dto, err := ParseUpdate(p)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, dto.Status)
}

func TestParseStatusChange(t *testing.T) {
	_, err := ParseStatusChange(map[string]any{"status": StatusPending})
	assert.Error(t, err)

	sc, err := ParseStatusChange(map[string]any{
		"complaintId":   "cmp-1",
		"complainantId": "alice",
		"status":        StatusUnderReview,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", sc.ComplainantID)
}
