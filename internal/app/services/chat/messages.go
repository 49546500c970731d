package chat

import (
	"context"
	"strings"
	"time"

	"parley/internal/app/dto"
	domainchat "parley/internal/domain/chat"
)

// SendParams carries a message's content. Body and Image are both optional;
// a message may carry either, both, or neither.
type SendParams struct {
	ConversationID domainchat.ConversationID
	SenderID       string
	Body           string
	Image          string
}

// Send persists a new message, advances the conversation's recency, then
// fans out: one "new" event on the conversation room, followed by one
// "update" event on every member's inbox channel. The room event is always
// published before the inbox events so subscribers viewing the conversation
// observe the message before their list view refreshes.
func (s *Service) Send(ctx context.Context, params SendParams) (*dto.ChatMessage, error) {
	senderID := strings.TrimSpace(params.SenderID)
	if senderID == "" {
		return nil, ErrUnauthorized
	}
	conv, err := s.memberConversation(ctx, params.ConversationID, senderID)
	if err != nil {
		if err == ErrForbidden {
			return nil, err
		}
		s.logError("send message failed", "error", err, "conversation_id", params.ConversationID, "sender_id", senderID)
		return nil, ErrSendMessage
	}

	msg, err := domainchat.NewMessage(domainchat.MessageParams{
		ID:             domainchat.MessageID(s.newID()),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Body:           params.Body,
		Image:          params.Image,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Store.AppendMessage(ctx, msg); err != nil {
		s.logError("send message failed", "error", err, "conversation_id", conv.ID, "sender_id", senderID)
		return nil, ErrSendMessage
	}

	view := s.messageViewResolved(ctx, msg)
	s.publish(ctx, domainchat.ConversationChannel(conv.ID), domainchat.EventNew, view)

	update := dto.ConversationUpdate{
		ID:            string(conv.ID),
		Messages:      []dto.ChatMessage{view},
		LastMessageAt: msg.CreatedAt,
	}
	for _, memberID := range conv.MemberIDs {
		s.publish(ctx, domainchat.UserChannel(memberID), domainchat.EventUpdate, update)
	}
	return &view, nil
}

// Messages returns conversation history newest first with cursor pagination,
// for members only.
func (s *Service) Messages(ctx context.Context, conversationID domainchat.ConversationID, principalID string, limit int, before time.Time) ([]dto.ChatMessage, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, ErrUnauthorized
	}
	if _, err := s.memberConversation(ctx, conversationID, principalID); err != nil {
		return nil, err
	}
	messages, err := s.Store.ListMessages(ctx, conversationID, limit, before)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(messages)*2)
	for i := range messages {
		ids = append(ids, messages[i].SenderID)
		ids = append(ids, messages[i].SeenBy...)
	}
	users := s.userMap(ctx, ids)
	out := make([]dto.ChatMessage, 0, len(messages))
	for i := range messages {
		out = append(out, messageView(&messages[i], users))
	}
	return out, nil
}
