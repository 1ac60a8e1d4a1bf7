package member

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/vovakirdan/chanserv/internal/store"
)

const defaultCacheSize = 4096

// UserLookup is the subset of store.UserStore the resolver needs.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
	GetUserByMemberID(ctx context.Context, memberID string) (*store.User, error)
}

// Resolver maps names to identifiers and back.
type Resolver struct {
	users UserLookup
	ids   *lru.Cache // lower(name) -> ID
	names *lru.Cache // ID -> display name
}

// NewResolver builds a resolver with LRU caches of the given size.
// A nil users lookup resolves every name to its offline identifier.
func NewResolver(users UserLookup, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	ids, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create id cache: %w", err)
	}
	names, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create name cache: %w", err)
	}
	return &Resolver{users: users, ids: ids, names: names}, nil
}

// Resolve returns the identifier for name without requiring the player to be
// online. Only a storage failure is reported as an error.
func (r *Resolver) Resolve(ctx context.Context, name string) (ID, error) {
	name = strings.TrimSpace(name)
	key := strings.ToLower(name)
	if v, ok := r.ids.Get(key); ok {
		return v.(ID), nil
	}

	id := OfflineID(name)
	if r.users != nil {
		user, err := r.users.GetUserByUsername(ctx, name)
		switch {
		case err == nil:
			id = ID(user.MemberID)
			name = user.Username
		case errors.Is(err, store.ErrNotFound):
		default:
			return "", fmt.Errorf("resolve %q: %w", name, err)
		}
	}

	r.ids.Add(key, id)
	if _, known := r.names.Get(id); !known {
		r.names.Add(id, name)
	}
	return id, nil
}

// Remember records the current display name of an identity, typically when
// the player connects.
func (r *Resolver) Remember(id ID, name string) {
	r.names.Add(id, name)
	r.ids.Add(strings.ToLower(name), id)
}

// Forget drops a cached name mapping, e.g. after a user registers a name that
// previously resolved offline.
func (r *Resolver) Forget(name string) {
	r.ids.Remove(strings.ToLower(strings.TrimSpace(name)))
}

// DisplayName returns the best known name for id, falling back to the id.
func (r *Resolver) DisplayName(ctx context.Context, id ID) string {
	if v, ok := r.names.Get(id); ok {
		return v.(string)
	}
	if r.users != nil {
		if user, err := r.users.GetUserByMemberID(ctx, string(id)); err == nil {
			r.names.Add(id, user.Username)
			return user.Username
		}
	}
	return string(id)
}
