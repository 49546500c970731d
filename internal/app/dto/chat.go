package dto

import "time"

// UserSummary is the public view of a user embedded in chat payloads.
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Conversation describes chat metadata with resolved members. Messages is
// populated with the latest message on listing responses and on per-user
// update events.
type Conversation struct {
	ID            string        `json:"id"`
	IsGroup       bool          `json:"is_group"`
	Name          string        `json:"name,omitempty"`
	Members       []UserSummary `json:"members"`
	Messages      []ChatMessage `json:"messages,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	LastMessageAt time.Time     `json:"last_message_at"`
}

// ConversationUpdate is the partial per-user payload emitted after a send so
// conversation-list views can refresh recency and preview without refetching.
type ConversationUpdate struct {
	ID            string        `json:"id"`
	Messages      []ChatMessage `json:"messages"`
	LastMessageAt time.Time     `json:"last_message_at"`
}

// ChatMessage contains a single message payload with resolved sender and
// seen records.
type ChatMessage struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Sender         UserSummary   `json:"sender"`
	Body           string        `json:"body,omitempty"`
	Image          string        `json:"image,omitempty"`
	SeenBy         []UserSummary `json:"seen_by"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ConversationList is a collection of conversation summaries.
type ConversationList struct {
	Items []Conversation `json:"items"`
}

// ChatMessageList is a paginated message list.
type ChatMessageList struct {
	Items      []ChatMessage `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// SeenResult reports how many messages a mark-seen call updated.
type SeenResult struct {
	UpdatedCount int `json:"updated_count"`
}
