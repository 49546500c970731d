package scylla

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/gocql/gocql"

	domainchat "parley/internal/domain/chat"
)

// ChatStore implements the chat store contract over Scylla. Direct-pair
// uniqueness rides on a lightweight transaction against the
// direct_conversations table; the losing insert observes the winner's row
// and reports ErrDirectExists.
type ChatStore struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewChatStore(session *gocql.Session, logger *slog.Logger) *ChatStore {
	return &ChatStore{session: session, logger: logger}
}

func (s *ChatStore) CreateConversation(ctx context.Context, conversation *domainchat.Conversation) error {
	if s.session == nil {
		return errors.New("scylla session not initialized")
	}
	if key := conversation.DirectKey(); key != "" {
		applied, err := s.session.
			Query(`INSERT INTO direct_conversations (direct_key, conversation_id) VALUES (?, ?) IF NOT EXISTS`,
				key, string(conversation.ID)).
			WithContext(ctx).
			ScanCAS(nil, nil)
		if err != nil {
			return err
		}
		if !applied {
			return domainchat.ErrDirectExists
		}
	}
	if err := s.session.
		Query(`INSERT INTO conversations (id, is_group, name, member_ids, created_at, last_message_at) VALUES (?, ?, ?, ?, ?, ?)`,
			string(conversation.ID), conversation.IsGroup, conversation.Name,
			conversation.MemberIDs, conversation.CreatedAt, conversation.LastMessageAt).
		WithContext(ctx).
		Exec(); err != nil {
		return err
	}
	for _, memberID := range conversation.MemberIDs {
		if err := s.session.
			Query(`INSERT INTO conversations_by_member (member_id, conversation_id) VALUES (?, ?)`,
				memberID, string(conversation.ID)).
			WithContext(ctx).
			Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *ChatStore) ConversationByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	var row conversationRow
	if err := s.session.
		Query(`SELECT id, is_group, name, member_ids, created_at, last_message_at FROM conversations WHERE id = ? LIMIT 1`,
			string(id)).
		WithContext(ctx).
		Scan(&row.ID, &row.IsGroup, &row.Name, &row.MemberIDs, &row.CreatedAt, &row.LastMessageAt); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return row.toConversation(), nil
}

func (s *ChatStore) FindDirectConversation(ctx context.Context, userA, userB string) (*domainchat.Conversation, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	var conversationID string
	err := s.session.
		Query(`SELECT conversation_id FROM direct_conversations WHERE direct_key = ? LIMIT 1`,
			domainchat.DirectKey(userA, userB)).
		WithContext(ctx).
		Scan(&conversationID)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return s.ConversationByID(ctx, domainchat.ConversationID(conversationID))
}

func (s *ChatStore) ListConversations(ctx context.Context, memberID string) ([]domainchat.Summary, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	iter := s.session.
		Query(`SELECT conversation_id FROM conversations_by_member WHERE member_id = ?`, memberID).
		WithContext(ctx).
		Iter()
	var ids []string
	var id string
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	out := make([]domainchat.Summary, 0, len(ids))
	for _, conversationID := range ids {
		conv, err := s.ConversationByID(ctx, domainchat.ConversationID(conversationID))
		if err != nil {
			if errors.Is(err, domainchat.ErrNotFound) {
				continue
			}
			return nil, err
		}
		latest, err := s.latestMessage(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, domainchat.Summary{Conversation: *conv, LatestMessage: latest})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Conversation.LastMessageAt.After(out[j].Conversation.LastMessageAt)
	})
	return out, nil
}

func (s *ChatStore) AppendMessage(ctx context.Context, message *domainchat.Message) error {
	if s.session == nil {
		return errors.New("scylla session not initialized")
	}
	if err := s.session.
		Query(`INSERT INTO messages (conversation_id, created_at, id, sender_id, body, image, seen_by) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(message.ConversationID), message.CreatedAt, string(message.ID),
			message.SenderID, message.Body, message.Image, message.SeenBy).
		WithContext(ctx).
		Exec(); err != nil {
		return err
	}
	return s.session.
		Query(`UPDATE conversations SET last_message_at = ? WHERE id = ?`,
			message.CreatedAt, string(message.ConversationID)).
		WithContext(ctx).
		Exec()
}

func (s *ChatStore) ListMessages(ctx context.Context, conversationID domainchat.ConversationID, limit int, before time.Time) ([]domainchat.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var iter *gocql.Iter
	if !before.IsZero() {
		iter = s.session.
			Query(`SELECT conversation_id, created_at, id, sender_id, body, image, seen_by FROM messages WHERE conversation_id = ? AND created_at < ? LIMIT ?`,
				string(conversationID), before, limit).
			WithContext(ctx).
			Iter()
	} else {
		iter = s.session.
			Query(`SELECT conversation_id, created_at, id, sender_id, body, image, seen_by FROM messages WHERE conversation_id = ? LIMIT ?`,
				string(conversationID), limit).
			WithContext(ctx).
			Iter()
	}
	return collectMessages(iter)
}

// UnseenMessages filters client-side: Scylla cannot express a
// "set does not contain" predicate, so recent rows are scanned and reduced.
func (s *ChatStore) UnseenMessages(ctx context.Context, conversationID domainchat.ConversationID, userID string) ([]domainchat.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	iter := s.session.
		Query(`SELECT conversation_id, created_at, id, sender_id, body, image, seen_by FROM messages WHERE conversation_id = ?`,
			string(conversationID)).
		WithContext(ctx).
		Iter()
	all, err := collectMessages(iter)
	if err != nil {
		return nil, err
	}
	out := make([]domainchat.Message, 0)
	// Rows arrive newest first; report unseen oldest first.
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].SenderID == userID || all[i].SeenByUser(userID) {
			continue
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (s *ChatStore) AddMessageSeen(ctx context.Context, message *domainchat.Message, userID string) (*domainchat.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	if err := s.session.
		Query(`UPDATE messages SET seen_by = seen_by + ? WHERE conversation_id = ? AND created_at = ? AND id = ?`,
			[]string{userID}, string(message.ConversationID), message.CreatedAt, string(message.ID)).
		WithContext(ctx).
		Exec(); err != nil {
		return nil, err
	}
	var row messageRow
	if err := s.session.
		Query(`SELECT conversation_id, created_at, id, sender_id, body, image, seen_by FROM messages WHERE conversation_id = ? AND created_at = ? AND id = ? LIMIT 1`,
			string(message.ConversationID), message.CreatedAt, string(message.ID)).
		WithContext(ctx).
		Scan(&row.ConversationID, &row.CreatedAt, &row.ID, &row.SenderID, &row.Body, &row.Image, &row.SeenBy); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, domainchat.ErrMessageNotFound
		}
		return nil, err
	}
	return row.toMessage(), nil
}

func (s *ChatStore) latestMessage(ctx context.Context, conversationID domainchat.ConversationID) (*domainchat.Message, error) {
	var row messageRow
	err := s.session.
		Query(`SELECT conversation_id, created_at, id, sender_id, body, image, seen_by FROM messages WHERE conversation_id = ? LIMIT 1`,
			string(conversationID)).
		WithContext(ctx).
		Scan(&row.ConversationID, &row.CreatedAt, &row.ID, &row.SenderID, &row.Body, &row.Image, &row.SeenBy)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.toMessage(), nil
}

func collectMessages(iter *gocql.Iter) ([]domainchat.Message, error) {
	out := make([]domainchat.Message, 0)
	var row messageRow
	for iter.Scan(&row.ConversationID, &row.CreatedAt, &row.ID, &row.SenderID, &row.Body, &row.Image, &row.SeenBy) {
		out = append(out, *row.toMessage())
		row = messageRow{}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

type conversationRow struct {
	ID            string
	IsGroup       bool
	Name          string
	MemberIDs     []string
	CreatedAt     time.Time
	LastMessageAt time.Time
}

func (r conversationRow) toConversation() *domainchat.Conversation {
	return &domainchat.Conversation{
		ID:            domainchat.ConversationID(r.ID),
		IsGroup:       r.IsGroup,
		Name:          r.Name,
		MemberIDs:     domainchat.NormalizeMembers(r.MemberIDs),
		CreatedAt:     r.CreatedAt.UTC(),
		LastMessageAt: r.LastMessageAt.UTC(),
	}
}

type messageRow struct {
	ConversationID string
	CreatedAt      time.Time
	ID             string
	SenderID       string
	Body           string
	Image          string
	SeenBy         []string
}

func (r messageRow) toMessage() *domainchat.Message {
	return &domainchat.Message{
		ID:             domainchat.MessageID(r.ID),
		ConversationID: domainchat.ConversationID(r.ConversationID),
		SenderID:       r.SenderID,
		Body:           r.Body,
		Image:          r.Image,
		SeenBy:         append([]string(nil), r.SeenBy...),
		CreatedAt:      r.CreatedAt.UTC(),
	}
}
