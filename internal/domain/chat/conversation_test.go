package chat

import (
	"errors"
	"testing"
	"time"
)

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	if DirectKey("alice", "bob") != DirectKey("bob", "alice") {
		t.Fatalf("direct key must not depend on argument order")
	}
	if got, want := DirectKey("bob", "alice"), "alice|bob"; got != want {
		t.Fatalf("DirectKey = %q, want %q", got, want)
	}
}

func TestNewDirectConversation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	conv, err := NewDirectConversation("c1", "bob", "alice", now)
	if err != nil {
		t.Fatalf("NewDirectConversation: %v", err)
	}
	if conv.IsGroup {
		t.Fatalf("direct conversation flagged as group")
	}
	if len(conv.MemberIDs) != 2 || conv.MemberIDs[0] != "alice" || conv.MemberIDs[1] != "bob" {
		t.Fatalf("members not normalized: %v", conv.MemberIDs)
	}
	if conv.DirectKey() != "alice|bob" {
		t.Fatalf("DirectKey = %q", conv.DirectKey())
	}
	if !conv.LastMessageAt.Equal(now) {
		t.Fatalf("LastMessageAt = %v, want %v", conv.LastMessageAt, now)
	}
}

func TestNewDirectConversationRejectsSameUser(t *testing.T) {
	if _, err := NewDirectConversation("c1", "alice", "alice", time.Now()); !errors.Is(err, ErrSameUser) {
		t.Fatalf("err = %v, want ErrSameUser", err)
	}
	if _, err := NewDirectConversation("c1", "alice", "  ", time.Now()); !errors.Is(err, ErrMemberRequired) {
		t.Fatalf("err = %v, want ErrMemberRequired", err)
	}
}

func TestNewGroupConversation(t *testing.T) {
	conv, err := NewGroupConversation("g1", "trip", "alice", []string{"bob", "carol", "bob"}, time.Now())
	if err != nil {
		t.Fatalf("NewGroupConversation: %v", err)
	}
	if !conv.IsGroup {
		t.Fatalf("group conversation not flagged as group")
	}
	if len(conv.MemberIDs) != 3 {
		t.Fatalf("members = %v, want creator plus two others", conv.MemberIDs)
	}
	if !conv.HasMember("alice") {
		t.Fatalf("creator missing from member set")
	}
	if conv.DirectKey() != "" {
		t.Fatalf("group conversation must not carry a direct key")
	}
}

func TestNewGroupConversationValidation(t *testing.T) {
	if _, err := NewGroupConversation("g1", "  ", "alice", []string{"bob", "carol"}, time.Now()); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("err = %v, want ErrNameRequired", err)
	}
	// The creator does not count toward the two-other-member minimum.
	if _, err := NewGroupConversation("g1", "trip", "alice", []string{"bob", "alice"}, time.Now()); !errors.Is(err, ErrGroupTooSmall) {
		t.Fatalf("err = %v, want ErrGroupTooSmall", err)
	}
}

func TestNormalizeMembers(t *testing.T) {
	got := NormalizeMembers([]string{" bob ", "", "alice", "bob"})
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("NormalizeMembers = %v", got)
	}
}

func TestNewMessageMarksSenderSeen(t *testing.T) {
	msg, err := NewMessage(MessageParams{ID: "m1", ConversationID: "c1", SenderID: "alice", Body: "hi"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if !msg.SeenByUser("alice") {
		t.Fatalf("sender must be in SeenBy from creation")
	}
	if msg.SeenByUser("bob") {
		t.Fatalf("unexpected seen entry for bob")
	}
	// Empty body and image are both allowed.
	if _, err := NewMessage(MessageParams{ID: "m2", ConversationID: "c1", SenderID: "alice"}); err != nil {
		t.Fatalf("empty message rejected: %v", err)
	}
	if _, err := NewMessage(MessageParams{ID: "m3", ConversationID: "c1"}); !errors.Is(err, ErrSenderRequired) {
		t.Fatalf("err = %v, want ErrSenderRequired", err)
	}
}
