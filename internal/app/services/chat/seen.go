package chat

import (
	"context"
	"strings"

	"parley/internal/app/dto"
	domainchat "parley/internal/domain/chat"
)

// MarkSeen adds the principal to the seen set of every message in the
// conversation it has neither seen nor sent, publishing one "update" event
// per changed message on the conversation room. Repeat calls with no new
// messages are a no-op returning zero, with no writes and no publishes.
func (s *Service) MarkSeen(ctx context.Context, conversationID domainchat.ConversationID, principalID string) (dto.SeenResult, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return dto.SeenResult{}, ErrUnauthorized
	}
	conv, err := s.memberConversation(ctx, conversationID, principalID)
	if err != nil {
		if err == ErrForbidden {
			return dto.SeenResult{}, err
		}
		s.logError("mark seen failed", "error", err, "conversation_id", conversationID, "user_id", principalID)
		return dto.SeenResult{}, ErrMarkSeen
	}

	pending, err := s.Store.UnseenMessages(ctx, conv.ID, principalID)
	if err != nil {
		s.logError("mark seen failed", "error", err, "conversation_id", conv.ID, "user_id", principalID)
		return dto.SeenResult{}, ErrMarkSeen
	}
	if len(pending) == 0 {
		return dto.SeenResult{UpdatedCount: 0}, nil
	}

	channel := domainchat.ConversationChannel(conv.ID)
	updated := 0
	for i := range pending {
		// Each addition inserts only the caller, so concurrent markers for
		// different users commute; per-message failures stop the pass.
		msg, err := s.Store.AddMessageSeen(ctx, &pending[i], principalID)
		if err != nil {
			s.logError("mark seen failed", "error", err, "conversation_id", conv.ID, "message_id", pending[i].ID, "user_id", principalID)
			return dto.SeenResult{}, ErrMarkSeen
		}
		updated++
		s.publish(ctx, channel, domainchat.EventUpdate, s.messageViewResolved(ctx, msg))
	}
	return dto.SeenResult{UpdatedCount: updated}, nil
}
