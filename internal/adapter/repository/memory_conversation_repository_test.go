package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/domain/entity"
	"marketchat/pkg/errors"
)

func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func seedConversation(t *testing.T, repo interface {
	CreateIfAbsent(context.Context, *entity.Conversation) (*entity.Conversation, bool, error)
}, a, b string) *entity.Conversation {
	t.Helper()
	conv, created, err := repo.CreateIfAbsent(context.Background(), &entity.Conversation{
		ID:           entity.PairKey(a, b),
		Participants: []string{a, b},
		UnreadCount:  map[string]int{a: 0, b: 0},
	})
	require.NoError(t, err)
	require.True(t, created)
	return conv
}

func TestMemoryConversationCreateIfAbsent(t *testing.T) {
	repo := NewMemoryConversationRepository(nil)
	ctx := context.Background()

	first := seedConversation(t, repo, "alice", "bob")

	again, created, err := repo.CreateIfAbsent(ctx, &entity.Conversation{
		ID:           entity.PairKey("bob", "alice"),
		Participants: []string{"bob", "alice"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, []string{"alice", "bob"}, again.Participants)
}

func TestMemoryAppendMessageUpdatesSummary(t *testing.T) {
	repo := NewMemoryConversationRepository(fixedClock())
	ctx := context.Background()
	conv := seedConversation(t, repo, "alice", "bob")

	msg := &entity.Message{ConversationID: conv.ID, Text: "hi", SenderID: "alice"}
	require.NoError(t, repo.AppendMessage(ctx, msg, "bob"))
	require.NoError(t, repo.AppendMessage(ctx, &entity.Message{ConversationID: conv.ID, Text: "there", SenderID: "alice"}, "bob"))

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())

	stored, err := repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "there", stored.LastMessage)
	assert.Equal(t, "alice", stored.LastSenderID)
	assert.Equal(t, 2, stored.UnreadFor("bob"))
	assert.Equal(t, 0, stored.UnreadFor("alice"))
}

func TestMemoryAppendMessageUnknownConversation(t *testing.T) {
	repo := NewMemoryConversationRepository(nil)

	err := repo.AppendMessage(context.Background(), &entity.Message{ConversationID: "missing", Text: "x"}, "bob")
	assert.True(t, errors.IsNotFound(err))
}

func TestMemoryTimestampsStrictlyIncrease(t *testing.T) {
	repo := NewMemoryConversationRepository(fixedClock())
	ctx := context.Background()
	conv := seedConversation(t, repo, "alice", "bob")

	var last time.Time
	for i := 0; i < 5; i++ {
		msg := &entity.Message{ConversationID: conv.ID, Text: fmt.Sprint(i), SenderID: "alice"}
		require.NoError(t, repo.AppendMessage(ctx, msg, "bob"))
		assert.True(t, msg.Timestamp.After(last))
		last = msg.Timestamp
	}
}

func TestMemoryMessagesBeforeCursor(t *testing.T) {
	repo := NewMemoryConversationRepository(nil)
	ctx := context.Background()
	conv := seedConversation(t, repo, "alice", "bob")

	var ids []string
	for i := 1; i <= 5; i++ {
		msg := &entity.Message{ConversationID: conv.ID, Text: fmt.Sprintf("m%d", i), SenderID: "alice"}
		require.NoError(t, repo.AppendMessage(ctx, msg, "bob"))
		ids = append(ids, msg.ID)
	}

	recent, err := repo.GetRecentMessages(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m5", recent[0].Text)
	assert.Equal(t, "m4", recent[1].Text)

	older, err := repo.GetMessagesBefore(ctx, conv.ID, ids[3], 10)
	require.NoError(t, err)
	require.Len(t, older, 3)
	assert.Equal(t, "m3", older[0].Text)
	assert.Equal(t, "m1", older[2].Text)

	_, err = repo.GetMessagesBefore(ctx, conv.ID, "nope", 10)
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestMemoryListByParticipantPaginates(t *testing.T) {
	repo := NewMemoryConversationRepository(nil)
	ctx := context.Background()

	for _, other := range []string{"bob", "carol", "dave"} {
		conv := seedConversation(t, repo, "alice", other)
		require.NoError(t, repo.AppendMessage(ctx, &entity.Message{ConversationID: conv.ID, Text: "hey", SenderID: other}, "alice"))
	}
	seedConversation(t, repo, "bob", "carol")

	page, cursor, err := repo.ListByParticipant(ctx, "alice", 2, "")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, entity.PairKey("alice", "dave"), page[0].ID)
	assert.NotEmpty(t, cursor)

	rest, cursor, err := repo.ListByParticipant(ctx, "alice", 2, cursor)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, entity.PairKey("alice", "bob"), rest[0].ID)
	assert.Empty(t, cursor)

	all, _, err := repo.ListByParticipant(ctx, "alice", 0, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryReconcileUnread(t *testing.T) {
	repo := NewMemoryConversationRepository(nil)
	ctx := context.Background()
	conv := seedConversation(t, repo, "alice", "bob")

	msg := &entity.Message{ConversationID: conv.ID, Text: "one", SenderID: "alice"}
	require.NoError(t, repo.AppendMessage(ctx, msg, "bob"))
	require.NoError(t, repo.AppendMessage(ctx, &entity.Message{ConversationID: conv.ID, Text: "two", SenderID: "alice"}, "bob"))

	// Flip one flag without touching the counter to simulate drift.
	require.NoError(t, repo.MarkMessageRead(ctx, conv.ID, msg.ID))

	counts, changed, err := repo.ReconcileUnread(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, map[string]int{"alice": 0, "bob": 1}, counts)

	_, changed, err = repo.ReconcileUnread(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMemoryWatchMessagesDeliversSnapshots(t *testing.T) {
	repo := NewMemoryConversationRepository(nil)
	conv := seedConversation(t, repo, "alice", "bob")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots := make(chan []*entity.Message, 8)
	done := make(chan error, 1)
	go func() {
		done <- repo.WatchMessages(ctx, conv.ID, func(msgs []*entity.Message) {
			snapshots <- msgs
		})
	}()

	initial := <-snapshots
	assert.Empty(t, initial)

	require.NoError(t, repo.AppendMessage(context.Background(), &entity.Message{ConversationID: conv.ID, Text: "hi", SenderID: "alice"}, "bob"))

	select {
	case got := <-snapshots:
		require.Len(t, got, 1)
		assert.Equal(t, "hi", got[0].Text)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after append")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestMemoryWatchConversationsFiltersByParticipant(t *testing.T) {
	repo := NewMemoryConversationRepository(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots := make(chan []*entity.Conversation, 8)
	go func() {
		_ = repo.WatchConversations(ctx, "alice", func(convs []*entity.Conversation) {
			snapshots <- convs
		})
	}()

	assert.Empty(t, <-snapshots)

	seedConversation(t, repo, "alice", "bob")

	select {
	case got := <-snapshots:
		require.Len(t, got, 1)
		assert.True(t, got[0].HasParticipant("alice"))
	case <-time.After(time.Second):
		t.Fatal("no snapshot after create")
	}
}
