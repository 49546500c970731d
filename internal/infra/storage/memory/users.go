package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domainuser "parley/internal/domain/user"
)

// UserRepository stores users in memory. Not suitable for production.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[domainuser.ID]*domainuser.User
	byEmail map[string]domainuser.ID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[domainuser.ID]*domainuser.User),
		byEmail: make(map[string]domainuser.ID),
	}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user, ok := r.byID[id]; ok {
		return cloneUser(user), nil
	}
	return nil, domainuser.ErrNotFound
}

func (r *UserRepository) ByIDs(ctx context.Context, ids []domainuser.ID) ([]domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domainuser.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := r.byID[id]; ok {
			out = append(out, *cloneUser(user))
		}
	}
	return out, nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[domainuser.NormalizeEmail(email)]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	if user, ok := r.byID[id]; ok {
		return cloneUser(user), nil
	}
	return nil, domainuser.ErrNotFound
}

func (r *UserRepository) ListOthers(ctx context.Context, except domainuser.ID) ([]domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domainuser.User, 0, len(r.byID))
	for id, user := range r.byID {
		if id == except {
			continue
		}
		out = append(out, *cloneUser(user))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *UserRepository) Save(ctx context.Context, user *domainuser.User) error {
	if user == nil || strings.TrimSpace(string(user.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	emailKey := domainuser.NormalizeEmail(user.Email)
	if emailKey == "" {
		return domainuser.ErrEmailRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byEmail[emailKey]; ok && existing != user.ID {
		return domainuser.ErrEmailAlreadyUsed
	}
	if prev, ok := r.byID[user.ID]; ok {
		prevKey := domainuser.NormalizeEmail(prev.Email)
		if prevKey != emailKey {
			delete(r.byEmail, prevKey)
		}
	}
	r.byID[user.ID] = cloneUser(user)
	r.byEmail[emailKey] = user.ID
	return nil
}

func cloneUser(u *domainuser.User) *domainuser.User {
	copied := *u
	return &copied
}
