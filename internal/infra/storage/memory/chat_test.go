package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	domainchat "parley/internal/domain/chat"
)

func seedDirect(t *testing.T, store *ChatStore, id domainchat.ConversationID, a, b string, at time.Time) *domainchat.Conversation {
	t.Helper()
	conv, err := domainchat.NewDirectConversation(id, a, b, at)
	if err != nil {
		t.Fatalf("NewDirectConversation: %v", err)
	}
	if err := store.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	return conv
}

func seedMessage(t *testing.T, store *ChatStore, conv domainchat.ConversationID, id domainchat.MessageID, sender, body string, at time.Time) *domainchat.Message {
	t.Helper()
	msg, err := domainchat.NewMessage(domainchat.MessageParams{
		ID:             id,
		ConversationID: conv,
		SenderID:       sender,
		Body:           body,
		CreatedAt:      at,
	})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := store.AppendMessage(context.Background(), msg); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	return msg
}

func TestCreateConversationEnforcesDirectUniqueness(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	now := time.Now()

	seedDirect(t, store, "c1", "alice", "bob", now)

	dup, err := domainchat.NewDirectConversation("c2", "bob", "alice", now)
	if err != nil {
		t.Fatalf("NewDirectConversation: %v", err)
	}
	if err := store.CreateConversation(ctx, dup); !errors.Is(err, domainchat.ErrDirectExists) {
		t.Fatalf("err = %v, want ErrDirectExists", err)
	}

	found, err := store.FindDirectConversation(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("FindDirectConversation: %v", err)
	}
	if found.ID != "c1" {
		t.Fatalf("found %s, want c1", found.ID)
	}
}

func TestAppendMessageAdvancesRecency(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	conv := seedDirect(t, store, "c1", "alice", "bob", created)
	sent := created.Add(time.Minute)
	seedMessage(t, store, conv.ID, "m1", "alice", "hi", sent)

	got, err := store.ConversationByID(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ConversationByID: %v", err)
	}
	if !got.LastMessageAt.Equal(sent) {
		t.Fatalf("LastMessageAt = %v, want %v", got.LastMessageAt, sent)
	}

	orphan, err := domainchat.NewMessage(domainchat.MessageParams{ID: "m2", ConversationID: "ghost", SenderID: "alice"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := store.AppendMessage(ctx, orphan); !errors.Is(err, domainchat.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUnseenMessagesFiltersSenderAndSeen(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	conv := seedDirect(t, store, "c1", "alice", "bob", base)
	fromAlice := seedMessage(t, store, conv.ID, "m1", "alice", "one", base.Add(time.Second))
	fromBob := seedMessage(t, store, conv.ID, "m2", "bob", "two", base.Add(2*time.Second))

	pending, err := store.UnseenMessages(ctx, conv.ID, "bob")
	if err != nil {
		t.Fatalf("UnseenMessages: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != fromAlice.ID {
		t.Fatalf("pending for bob = %+v, want only alice's message", pending)
	}

	if _, err := store.AddMessageSeen(ctx, fromAlice, "bob"); err != nil {
		t.Fatalf("AddMessageSeen: %v", err)
	}
	pending, err = store.UnseenMessages(ctx, conv.ID, "bob")
	if err != nil {
		t.Fatalf("UnseenMessages: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after seen = %+v, want none", pending)
	}

	// Alice never has to see her own message, only bob's.
	pending, err = store.UnseenMessages(ctx, conv.ID, "alice")
	if err != nil {
		t.Fatalf("UnseenMessages: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != fromBob.ID {
		t.Fatalf("pending for alice = %+v", pending)
	}
}

func TestAddMessageSeenIsIdempotent(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	base := time.Now()

	conv := seedDirect(t, store, "c1", "alice", "bob", base)
	msg := seedMessage(t, store, conv.ID, "m1", "alice", "hi", base.Add(time.Second))

	for i := 0; i < 3; i++ {
		updated, err := store.AddMessageSeen(ctx, msg, "bob")
		if err != nil {
			t.Fatalf("AddMessageSeen: %v", err)
		}
		if len(updated.SeenBy) != 2 {
			t.Fatalf("SeenBy = %v after %d adds, want [alice bob]", updated.SeenBy, i+1)
		}
	}

	if _, err := store.AddMessageSeen(ctx, &domainchat.Message{ID: "ghost", ConversationID: conv.ID}, "bob"); !errors.Is(err, domainchat.ErrMessageNotFound) {
		t.Fatalf("err = %v, want ErrMessageNotFound", err)
	}
}

func TestListConversationsOrdersByRecency(t *testing.T) {
	store := NewChatStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	older := seedDirect(t, store, "c1", "alice", "bob", base)
	seedDirect(t, store, "c2", "alice", "carol", base.Add(time.Second))
	seedMessage(t, store, older.ID, "m1", "bob", "ping", base.Add(time.Minute))

	got, err := store.ListConversations(ctx, "alice")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListConversations returned %d, want 2", len(got))
	}
	if got[0].Conversation.ID != "c1" || got[1].Conversation.ID != "c2" {
		t.Fatalf("order = [%s %s], want most recent activity first", got[0].Conversation.ID, got[1].Conversation.ID)
	}
	if got[0].LatestMessage == nil || got[0].LatestMessage.Body != "ping" {
		t.Fatalf("latest message not attached: %+v", got[0].LatestMessage)
	}
	if got[1].LatestMessage != nil {
		t.Fatalf("empty conversation carries a latest message")
	}

	none, err := store.ListConversations(ctx, "mallory")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("non-member sees %d conversations", len(none))
	}
}
