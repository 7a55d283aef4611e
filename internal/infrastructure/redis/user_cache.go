package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"user-registry/internal/domain/entity"
	"user-registry/internal/domain/repository"
)

// kv is the subset of Client the cache needs
type kv interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Fetch(ctx context.Context, key string) (string, bool, error)
	Drop(ctx context.Context, keys ...string) error
}

// UserCache stores JSON snapshots of single users. IDs are only unique
// within one in-memory store, so each cache writes under its own keyspace
// and never reads entries written by another process.
type UserCache struct {
	client   kv
	keyspace string
}

var _ repository.UserCache = (*UserCache)(nil)

// NewUserCache creates a cache backed by client with a fresh keyspace
func NewUserCache(client *Client) *UserCache {
	return newUserCache(client)
}

func newUserCache(client kv) *UserCache {
	return &UserCache{
		client:   client,
		keyspace: "user-registry:" + uuid.NewString() + ":user:",
	}
}

type cachedUser struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (c *UserCache) key(id entity.UserID) string {
	return c.keyspace + strconv.Itoa(int(id))
}

// Get returns the cached user. A miss is reported as ok == false with a nil
// error.
func (c *UserCache) Get(ctx context.Context, id entity.UserID) (entity.User, bool, error) {
	raw, ok, err := c.client.Fetch(ctx, c.key(id))
	if err != nil || !ok {
		return entity.User{}, false, err
	}

	user, err := decodeUser(raw)
	if err != nil {
		return entity.User{}, false, err
	}
	return user, true, nil
}

// Set caches user for ttl
func (c *UserCache) Set(ctx context.Context, user entity.User, ttl time.Duration) error {
	raw, err := encodeUser(user)
	if err != nil {
		return err
	}
	return c.client.Put(ctx, c.key(user.ID()), raw, ttl)
}

// Invalidate drops the cached copy of id
func (c *UserCache) Invalidate(ctx context.Context, id entity.UserID) error {
	return c.client.Drop(ctx, c.key(id))
}

func encodeUser(user entity.User) (string, error) {
	b, err := json.Marshal(cachedUser{
		ID:    int(user.ID()),
		Name:  user.Name().String(),
		Email: user.Email().String(),
	})
	if err != nil {
		return "", fmt.Errorf("encode cached user: %w", err)
	}
	return string(b), nil
}

func decodeUser(raw string) (entity.User, error) {
	var cu cachedUser
	if err := json.Unmarshal([]byte(raw), &cu); err != nil {
		return entity.User{}, fmt.Errorf("decode cached user: %w", err)
	}
	return entity.RestoreUser(entity.UserID(cu.ID), cu.Name, cu.Email)
}
