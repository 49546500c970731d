package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"parley/internal/app/dto"
	"parley/internal/app/policies"
	domainchat "parley/internal/domain/chat"
	domainuser "parley/internal/domain/user"
)

var (
	ErrUnauthorized       = errors.New("chat: unauthorized")
	ErrForbidden          = errors.New("chat: not a conversation member")
	ErrCreateConversation = errors.New("chat: failed to create conversation")
	ErrSendMessage        = errors.New("chat: failed to send message")
	ErrMarkSeen           = errors.New("chat: failed to mark messages as seen")
)

// Service coordinates conversation creation, message dispatch and seen
// tracking over a durable store, notifying live subscribers through the
// channel bus after every accepted mutation.
type Service struct {
	Store  domainchat.Store
	Users  domainuser.Repository
	Bus    policies.Publisher
	Logger *slog.Logger

	// NewID and Now are overridable for tests.
	NewID func() string
	Now   func() time.Time
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// publish is best-effort: a dropped notification is recovered by clients
// refetching on reconnect, so transport errors are logged and swallowed.
func (s *Service) publish(ctx context.Context, channel, event string, payload any) {
	if s.Bus == nil {
		return
	}
	if err := s.Bus.Publish(ctx, channel, event, payload); err != nil {
		s.logWarn("event publish failed", "channel", channel, "event", event, "error", err)
	}
}

func (s *Service) logWarn(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Warn(msg, args...)
	}
}

func (s *Service) logError(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Error(msg, args...)
	}
}

// userMap resolves the given ids once per call so view building does not hit
// the user repository per message.
func (s *Service) userMap(ctx context.Context, ids []string) map[string]domainuser.User {
	out := make(map[string]domainuser.User, len(ids))
	if s.Users == nil || len(ids) == 0 {
		return out
	}
	typed := make([]domainuser.ID, 0, len(ids))
	for _, id := range ids {
		typed = append(typed, domainuser.ID(id))
	}
	users, err := s.Users.ByIDs(ctx, typed)
	if err != nil {
		s.logWarn("user resolution failed", "error", err)
		return out
	}
	for _, u := range users {
		out[string(u.ID)] = u
	}
	return out
}

func userSummary(id string, users map[string]domainuser.User) dto.UserSummary {
	if u, ok := users[id]; ok {
		return dto.UserSummary{ID: string(u.ID), Email: u.Email, Name: u.Name, Image: u.Image}
	}
	return dto.UserSummary{ID: id}
}

func (s *Service) conversationView(ctx context.Context, conv *domainchat.Conversation, latest *domainchat.Message) dto.Conversation {
	ids := append([]string(nil), conv.MemberIDs...)
	if latest != nil {
		ids = append(ids, latest.SenderID)
		ids = append(ids, latest.SeenBy...)
	}
	users := s.userMap(ctx, ids)
	view := dto.Conversation{
		ID:            string(conv.ID),
		IsGroup:       conv.IsGroup,
		Name:          conv.Name,
		Members:       make([]dto.UserSummary, 0, len(conv.MemberIDs)),
		CreatedAt:     conv.CreatedAt,
		LastMessageAt: conv.LastMessageAt,
	}
	for _, id := range conv.MemberIDs {
		view.Members = append(view.Members, userSummary(id, users))
	}
	if latest != nil {
		view.Messages = []dto.ChatMessage{messageView(latest, users)}
	}
	return view
}

func (s *Service) messageViewResolved(ctx context.Context, msg *domainchat.Message) dto.ChatMessage {
	ids := append([]string{msg.SenderID}, msg.SeenBy...)
	return messageView(msg, s.userMap(ctx, ids))
}

func messageView(msg *domainchat.Message, users map[string]domainuser.User) dto.ChatMessage {
	view := dto.ChatMessage{
		ID:             string(msg.ID),
		ConversationID: string(msg.ConversationID),
		Sender:         userSummary(msg.SenderID, users),
		Body:           msg.Body,
		Image:          msg.Image,
		SeenBy:         make([]dto.UserSummary, 0, len(msg.SeenBy)),
		CreatedAt:      msg.CreatedAt,
	}
	for _, id := range msg.SeenBy {
		view.SeenBy = append(view.SeenBy, userSummary(id, users))
	}
	return view
}

// memberConversation loads a conversation and checks that the principal is a
// member. Used by every per-conversation operation.
func (s *Service) memberConversation(ctx context.Context, id domainchat.ConversationID, principalID string) (*domainchat.Conversation, error) {
	conv, err := s.Store.ConversationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(principalID) {
		return nil, ErrForbidden
	}
	return conv, nil
}
