package chat

import (
	"context"
	"time"
)

// Summary pairs a conversation with its most recent message for listings.
type Summary struct {
	Conversation  Conversation
	LatestMessage *Message
}

// Store is the durable-storage contract for conversations and messages.
// Implementations must enforce direct-pair uniqueness in CreateConversation
// by returning ErrDirectExists when a non-group conversation with the same
// canonical member pair is already present.
type Store interface {
	CreateConversation(ctx context.Context, conversation *Conversation) error
	ConversationByID(ctx context.Context, id ConversationID) (*Conversation, error)
	FindDirectConversation(ctx context.Context, userA, userB string) (*Conversation, error)
	// ListConversations returns every conversation the user is a member of,
	// most recent activity first, each with its latest message attached.
	ListConversations(ctx context.Context, memberID string) ([]Summary, error)

	// AppendMessage persists the message and advances the owning
	// conversation's LastMessageAt to the message's CreatedAt. Both writes
	// must succeed for the call to succeed.
	AppendMessage(ctx context.Context, message *Message) error
	// ListMessages returns messages newest first. A non-zero before acts as
	// an exclusive upper bound on CreatedAt for cursor pagination.
	ListMessages(ctx context.Context, conversationID ConversationID, limit int, before time.Time) ([]Message, error)
	// UnseenMessages returns messages in the conversation that the user has
	// neither seen nor sent.
	UnseenMessages(ctx context.Context, conversationID ConversationID, userID string) ([]Message, error)
	// AddMessageSeen adds the user to the message's seen set and returns the
	// updated message. Repeat calls are no-ops that still return the message.
	// The full message record is passed so clustered backends can address the
	// row without a secondary lookup.
	AddMessageSeen(ctx context.Context, message *Message, userID string) (*Message, error)
}
