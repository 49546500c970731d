package chat

import (
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrMemberRequired = errors.New("chat: member id is required")
	ErrSameUser       = errors.New("chat: direct conversation needs two distinct users")
	ErrNameRequired   = errors.New("chat: group conversation needs a name")
	ErrGroupTooSmall  = errors.New("chat: group conversation needs at least two other members")
	ErrNotFound       = errors.New("chat: conversation not found")
	// ErrDirectExists is the store's conflict signal for the canonical
	// direct-pair key. Callers treat it as "already created" and re-fetch.
	ErrDirectExists = errors.New("chat: direct conversation already exists")
)

type ConversationID string

// Conversation is a direct or group thread. MemberIDs is kept normalized
// (trimmed, de-duplicated, sorted) so member-set comparisons are positional.
type Conversation struct {
	ID            ConversationID
	IsGroup       bool
	Name          string
	MemberIDs     []string
	CreatedAt     time.Time
	LastMessageAt time.Time
}

func (c *Conversation) HasMember(userID string) bool {
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// DirectKey returns the canonical key for an unordered user pair. A unique
// constraint over this key is what makes direct conversations singletons.
func (c *Conversation) DirectKey() string {
	if c.IsGroup || len(c.MemberIDs) != 2 {
		return ""
	}
	return DirectKey(c.MemberIDs[0], c.MemberIDs[1])
}

func NewDirectConversation(id ConversationID, a, b string, now time.Time) (*Conversation, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return nil, ErrMemberRequired
	}
	if a == b {
		return nil, ErrSameUser
	}
	now = normalizeTime(now)
	return &Conversation{
		ID:            id,
		IsGroup:       false,
		MemberIDs:     NormalizeMembers([]string{a, b}),
		CreatedAt:     now,
		LastMessageAt: now,
	}, nil
}

// NewGroupConversation builds a group thread. The creator is force-appended,
// and the member set after de-duplication must contain at least two users
// besides the creator.
func NewGroupConversation(id ConversationID, name, creatorID string, memberIDs []string, now time.Time) (*Conversation, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, ErrMemberRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	members := NormalizeMembers(append(append([]string(nil), memberIDs...), creatorID))
	others := 0
	for _, m := range members {
		if m != creatorID {
			others++
		}
	}
	if others < 2 {
		return nil, ErrGroupTooSmall
	}
	now = normalizeTime(now)
	return &Conversation{
		ID:            id,
		IsGroup:       true,
		Name:          name,
		MemberIDs:     members,
		CreatedAt:     now,
		LastMessageAt: now,
	}, nil
}

// NormalizeMembers trims, drops empties and duplicates, and sorts.
func NormalizeMembers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func DirectKey(a, b string) string {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC()
}
