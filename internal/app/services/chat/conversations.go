package chat

import (
	"context"
	"errors"
	"strings"

	"parley/internal/app/dto"
	domainchat "parley/internal/domain/chat"
	domainuser "parley/internal/domain/user"
)

// CreateDirect returns the canonical conversation between the requester and
// the other user, creating it if absent. The idempotent short-circuit
// publishes nothing; a fresh creation announces itself on every member's
// inbox channel.
func (s *Service) CreateDirect(ctx context.Context, requesterID, otherUserID string) (*dto.Conversation, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, ErrUnauthorized
	}
	otherUserID = strings.TrimSpace(otherUserID)
	if otherUserID == "" {
		return nil, domainchat.ErrMemberRequired
	}
	if otherUserID == requesterID {
		return nil, domainchat.ErrSameUser
	}
	if s.Users != nil {
		if _, err := s.Users.ByID(ctx, domainuser.ID(otherUserID)); err != nil {
			if errors.Is(err, domainuser.ErrNotFound) {
				return nil, domainuser.ErrNotFound
			}
			s.logError("create conversation failed", "error", err, "requester_id", requesterID)
			return nil, ErrCreateConversation
		}
	}

	existing, err := s.Store.FindDirectConversation(ctx, requesterID, otherUserID)
	if err == nil {
		view := s.conversationView(ctx, existing, nil)
		return &view, nil
	}
	if !errors.Is(err, domainchat.ErrNotFound) {
		s.logError("create conversation failed", "error", err, "requester_id", requesterID)
		return nil, ErrCreateConversation
	}

	conv, err := domainchat.NewDirectConversation(domainchat.ConversationID(s.newID()), requesterID, otherUserID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.Store.CreateConversation(ctx, conv); err != nil {
		// A near-simultaneous creation won the canonical pair key. Treat
		// the conflict as the idempotence signal and return the winner.
		if errors.Is(err, domainchat.ErrDirectExists) {
			winner, findErr := s.Store.FindDirectConversation(ctx, requesterID, otherUserID)
			if findErr == nil {
				view := s.conversationView(ctx, winner, nil)
				return &view, nil
			}
			err = findErr
		}
		s.logError("create conversation failed", "error", err, "requester_id", requesterID)
		return nil, ErrCreateConversation
	}

	view := s.conversationView(ctx, conv, nil)
	for _, memberID := range conv.MemberIDs {
		s.publish(ctx, domainchat.UserChannel(memberID), domainchat.EventNew, view)
	}
	s.logInfo("conversation created", "conversation_id", conv.ID, "members", conv.MemberIDs)
	return &view, nil
}

// CreateGroup always creates a new group conversation; groups are never
// deduplicated.
func (s *Service) CreateGroup(ctx context.Context, requesterID, name string, memberIDs []string) (*dto.Conversation, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, ErrUnauthorized
	}
	conv, err := domainchat.NewGroupConversation(domainchat.ConversationID(s.newID()), name, requesterID, memberIDs, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.Store.CreateConversation(ctx, conv); err != nil {
		s.logError("create group conversation failed", "error", err, "requester_id", requesterID)
		return nil, ErrCreateConversation
	}
	view := s.conversationView(ctx, conv, nil)
	for _, memberID := range conv.MemberIDs {
		s.publish(ctx, domainchat.UserChannel(memberID), domainchat.EventNew, view)
	}
	s.logInfo("group conversation created", "conversation_id", conv.ID, "name", conv.Name, "members", conv.MemberIDs)
	return &view, nil
}

// List returns the principal's conversations, most recent activity first.
// Storage failures degrade to an empty list so conversation views stay up
// when the backend is not; the cause is logged.
func (s *Service) List(ctx context.Context, principalID string) []dto.Conversation {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return []dto.Conversation{}
	}
	summaries, err := s.Store.ListConversations(ctx, principalID)
	if err != nil {
		s.logError("list conversations failed", "error", err, "user_id", principalID)
		return []dto.Conversation{}
	}
	out := make([]dto.Conversation, 0, len(summaries))
	for _, summary := range summaries {
		conv := summary.Conversation
		out = append(out, s.conversationView(ctx, &conv, summary.LatestMessage))
	}
	return out
}

// Conversation returns one conversation with resolved members, for members
// only.
func (s *Service) Conversation(ctx context.Context, conversationID domainchat.ConversationID, principalID string) (*dto.Conversation, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, ErrUnauthorized
	}
	conv, err := s.memberConversation(ctx, conversationID, principalID)
	if err != nil {
		return nil, err
	}
	view := s.conversationView(ctx, conv, nil)
	return &view, nil
}

func (s *Service) logInfo(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Info(msg, args...)
	}
}
