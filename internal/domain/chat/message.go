package chat

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrConversationRequired = errors.New("chat: conversation id is required")
	ErrSenderRequired       = errors.New("chat: sender id is required")
	ErrMessageNotFound      = errors.New("chat: message not found")
)

type MessageID string

// Message is immutable except for SeenBy, which only ever grows. The sender
// is part of SeenBy from creation; other members are added by the seen
// tracker.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       string
	Body           string
	Image          string
	SeenBy         []string
	CreatedAt      time.Time
}

func (m *Message) SeenByUser(userID string) bool {
	for _, id := range m.SeenBy {
		if id == userID {
			return true
		}
	}
	return false
}

type MessageParams struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       string
	Body           string
	Image          string
	CreatedAt      time.Time
}

// NewMessage builds a message with the sender pre-marked as having seen it.
// A message may carry text, an image reference, both, or neither.
func NewMessage(params MessageParams) (*Message, error) {
	if strings.TrimSpace(string(params.ConversationID)) == "" {
		return nil, ErrConversationRequired
	}
	sender := strings.TrimSpace(params.SenderID)
	if sender == "" {
		return nil, ErrSenderRequired
	}
	return &Message{
		ID:             params.ID,
		ConversationID: params.ConversationID,
		SenderID:       sender,
		Body:           params.Body,
		Image:          strings.TrimSpace(params.Image),
		SeenBy:         []string{sender},
		CreatedAt:      normalizeTime(params.CreatedAt),
	}, nil
}
