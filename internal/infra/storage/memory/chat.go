package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainchat "parley/internal/domain/chat"
)

// ChatStore implements the chat store contract in memory with the same
// semantics the durable backends provide, including direct-pair uniqueness.
type ChatStore struct {
	mu            sync.RWMutex
	conversations map[domainchat.ConversationID]*domainchat.Conversation
	byDirectKey   map[string]domainchat.ConversationID
	messages      map[domainchat.ConversationID][]*domainchat.Message
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[domainchat.ConversationID]*domainchat.Conversation),
		byDirectKey:   make(map[string]domainchat.ConversationID),
		messages:      make(map[domainchat.ConversationID][]*domainchat.Message),
	}
}

func (s *ChatStore) CreateConversation(ctx context.Context, conversation *domainchat.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key := conversation.DirectKey(); key != "" {
		if _, ok := s.byDirectKey[key]; ok {
			return domainchat.ErrDirectExists
		}
		s.byDirectKey[key] = conversation.ID
	}
	s.conversations[conversation.ID] = cloneConversation(conversation)
	return nil
}

func (s *ChatStore) ConversationByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv, ok := s.conversations[id]; ok {
		return cloneConversation(conv), nil
	}
	return nil, domainchat.ErrNotFound
}

func (s *ChatStore) FindDirectConversation(ctx context.Context, userA, userB string) (*domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDirectKey[domainchat.DirectKey(userA, userB)]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	if conv, ok := s.conversations[id]; ok {
		return cloneConversation(conv), nil
	}
	return nil, domainchat.ErrNotFound
}

func (s *ChatStore) ListConversations(ctx context.Context, memberID string) ([]domainchat.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domainchat.Summary, 0)
	for _, conv := range s.conversations {
		if !conv.HasMember(memberID) {
			continue
		}
		summary := domainchat.Summary{Conversation: *cloneConversation(conv)}
		if msgs := s.messages[conv.ID]; len(msgs) > 0 {
			summary.LatestMessage = cloneMessage(msgs[len(msgs)-1])
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Conversation.LastMessageAt.After(out[j].Conversation.LastMessageAt)
	})
	return out, nil
}

func (s *ChatStore) AppendMessage(ctx context.Context, message *domainchat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[message.ConversationID]
	if !ok {
		return domainchat.ErrNotFound
	}
	s.messages[conv.ID] = append(s.messages[conv.ID], cloneMessage(message))
	conv.LastMessageAt = message.CreatedAt
	return nil
}

func (s *ChatStore) ListMessages(ctx context.Context, conversationID domainchat.ConversationID, limit int, before time.Time) ([]domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, domainchat.ErrNotFound
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	msgs := s.messages[conversationID]
	out := make([]domainchat.Message, 0, limit)
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if !before.IsZero() && !msgs[i].CreatedAt.Before(before) {
			continue
		}
		out = append(out, *cloneMessage(msgs[i]))
	}
	return out, nil
}

func (s *ChatStore) UnseenMessages(ctx context.Context, conversationID domainchat.ConversationID, userID string) ([]domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, domainchat.ErrNotFound
	}
	out := make([]domainchat.Message, 0)
	for _, msg := range s.messages[conversationID] {
		if msg.SenderID == userID || msg.SeenByUser(userID) {
			continue
		}
		out = append(out, *cloneMessage(msg))
	}
	return out, nil
}

func (s *ChatStore) AddMessageSeen(ctx context.Context, message *domainchat.Message, userID string) (*domainchat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages[message.ConversationID] {
		if msg.ID != message.ID {
			continue
		}
		if !msg.SeenByUser(userID) {
			msg.SeenBy = append(msg.SeenBy, userID)
		}
		return cloneMessage(msg), nil
	}
	return nil, domainchat.ErrMessageNotFound
}

func cloneConversation(c *domainchat.Conversation) *domainchat.Conversation {
	copied := *c
	copied.MemberIDs = append([]string(nil), c.MemberIDs...)
	return &copied
}

func cloneMessage(m *domainchat.Message) *domainchat.Message {
	copied := *m
	copied.SeenBy = append([]string(nil), m.SeenBy...)
	return &copied
}
