package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	kv     map[string]string
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
	zsets  map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		kv:     map[string]string{},
		hashes: map[string]map[string]string{},
		sets:   map[string]map[string]struct{}{},
		zsets:  map[string][]string{},
	}
}

func (f *fakeStore) Get(_ context.Context, key string) string { return f.kv[key] }
func (f *fakeStore) Del(_ context.Context, keys ...string) {
	for _, k := range keys {
		delete(f.kv, k)
		delete(f.hashes, k)
		delete(f.sets, k)
		delete(f.zsets, k)
	}
}
func (f *fakeStore) HSet(_ context.Context, key string, pairs ...string) {
	h := f.hashes[key]
	if h == nil {
		h = map[string]string{}
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		h[pairs[i]] = pairs[i+1]
	}
}
func (f *fakeStore) HGet(_ context.Context, key, field string) string { return f.hashes[key][field] }
func (f *fakeStore) HGetAll(_ context.Context, key string) map[string]string {
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out
}
func (f *fakeStore) SAdd(_ context.Context, key string, members ...string) {
	s := f.sets[key]
	if s == nil {
		s = map[string]struct{}{}
		f.sets[key] = s
	}
	for _, m := range members {
		s[m] = struct{}{}
	}
}
func (f *fakeStore) SRem(_ context.Context, key string, members ...string) {
	for _, m := range members {
		delete(f.sets[key], m)
	}
}
func (f *fakeStore) SMembers(_ context.Context, key string) []string {
	out := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		out = append(out, m)
	}
	return out
}
func (f *fakeStore) ZAdd(_ context.Context, key string, _ float64, member string) {
	f.zsets[key] = append(f.zsets[key], member)
}
func (f *fakeStore) ZRevRange(_ context.Context, key string, _, _ int64) []string {
	return f.zsets[key]
}
func (f *fakeStore) Expire(_ context.Context, _ string, _ time.Duration) {}

func TestApplyNewMessageIncrementsRecipientsOnly(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()
	s.SAdd(ctx, ChatUsersKey("chat-7"), "alice", "bob")

	updates := ApplyNewMessage(ctx, s, &NewMessage{
		ChatID:    "chat-7",
		MessageID: "m1",
		Text:      "hi",
		SenderID:  "bob",
		Timestamp: 1700000000000,
	})

	require.Len(t, updates, 2)
	byUser := map[string]Update{}
	for _, u := range updates {
		byUser[u.UserID] = u
	}

	require.NotNil(t, byUser["alice"].Dto.NewUnreadCount)
	assert.Equal(t, 1, *byUser["alice"].Dto.NewUnreadCount)
	require.NotNil(t, byUser["bob"].Dto.NewUnreadCount)
	assert.Equal(t, 0, *byUser["bob"].Dto.NewUnreadCount)

	assert.Equal(t, "m1", s.hashes[ChatKey("chat-7")]["lastMsgId"])
	assert.Equal(t, "hi", s.hashes[ChatKey("chat-7")]["lastMsgText"])
	assert.Contains(t, s.zsets[ChatMsgsKey("chat-7")], "m1")
}

func TestApplyMessageReadResetsCounter(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()
	s.HSet(ctx, ChatKey("chat-7"), "unreadCount", "5")

	up := ApplyMessageRead(ctx, s, "chat-7", "alice")

	assert.Equal(t, "0", s.hashes[ChatKey("chat-7")]["unreadCount"])
	assert.Equal(t, "alice", up.UserID)
	require.NotNil(t, up.Dto.NewUnreadCount)
	assert.Equal(t, 0, *up.Dto.NewUnreadCount)
}

func TestApplyAddLinksBothParticipants(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()

	dto := &AddDto{RoomName: "alice", UserID: "alice", ChatID: "chat-7", CreatedAt: 1700000000000}
	dto.ToUser.ID = "bob"
	ApplyAdd(ctx, s, dto)

	assert.ElementsMatch(t, []string{"alice", "bob"}, s.SMembers(ctx, ChatUsersKey("chat-7")))
	assert.ElementsMatch(t, []string{"chat-7"}, s.SMembers(ctx, UserChatsKey("alice")))
	assert.ElementsMatch(t, []string{"chat-7"}, s.SMembers(ctx, UserChatsKey("bob")))
}

func TestApplyDeleteRemovesEveryTrace(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()
	dto := &AddDto{UserID: "alice", ChatID: "chat-7"}
	dto.ToUser.ID = "bob"
	ApplyAdd(ctx, s, dto)

	ApplyDelete(ctx, s, &DeleteDto{ChatID: "chat-7", UserID: "alice"})

	assert.Empty(t, s.hashes[ChatKey("chat-7")])
	assert.Empty(t, s.SMembers(ctx, ChatUsersKey("chat-7")))
	assert.Empty(t, s.SMembers(ctx, UserChatsKey("alice")))
	assert.Empty(t, s.SMembers(ctx, UserChatsKey("bob")))
}

func TestLoadUserChatsSkipsEvictedMetadata(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()
	s.SAdd(ctx, UserChatsKey("alice"), "chat-1", "chat-2")
	s.HSet(ctx, ChatKey("chat-1"), "lastMsgText", "hey")
	// chat-2 metadata expired: listed but not loadable

	chats := LoadUserChats(ctx, s, "alice")
	require.Len(t, chats, 1)
	assert.Equal(t, "chat-1", chats[0]["id"])
	assert.Equal(t, "hey", chats[0]["lastMsgText"])
}

func TestCacheChatsRoundTrips(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()

	CacheChats(ctx, s, "alice", []ChatSummary{
		{"id": "chat-1", "lastMsgText": "hey", "unreadCount": "2"},
	})

	chats := LoadUserChats(ctx, s, "alice")
	require.Len(t, chats, 1)
	assert.Equal(t, "2", chats[0]["unreadCount"])
}

func TestParseUpdateValidation(t *testing.T) {
	_, err := ParseUpdate(map[string]any{"roomName": "alice"})
	assert.Error(t, err)

	dto, err := ParseUpdate(map[string]any{
		"roomName":       "alice",
		"chatId":         "chat-7",
		"newUnreadCount": float64(3),
	})
	require.NoError(t, err)
	require.NotNil(t, dto.NewUnreadCount)
	assert.Equal(t, 3, *dto.NewUnreadCount)
}
