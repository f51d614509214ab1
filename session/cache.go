package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/messpass/kv"
)

// ErrCacheCorrupt is returned by Cache.Load when the cached payload could not
// be decoded. The corrupt entries are removed before returning.
var ErrCacheCorrupt = errors.New("cached session corrupt")

// Cache keeps the signed-in session and its user in a kv.Store.
type Cache struct {
	store      kv.Store
	sessionKey string
	userKey    string
}

// NewCache returns a Cache storing under sessionKey and userKey.
func NewCache(store kv.Store, sessionKey, userKey string) *Cache {
	return &Cache{store: store, sessionKey: sessionKey, userKey: userKey}
}

// Load returns the cached session, or nil when nothing is cached.
func (c *Cache) Load(ctx context.Context) (*Session, error) {
	raw, ok, err := c.store.GetString(ctx, c.sessionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	sess, err := Decode([]byte(raw))
	if err != nil {
		if clearErr := c.Clear(ctx); clearErr != nil {
			return nil, errors.Join(fmt.Errorf("%w: %v", ErrCacheCorrupt, err), clearErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	return sess, nil
}

// LoadUser returns the cached user, or nil when nothing is cached.
func (c *Cache) LoadUser(ctx context.Context) (*User, error) {
	raw, ok, err := c.store.GetString(ctx, c.userKey)
	if err != nil || !ok {
		return nil, err
	}
	u, err := DecodeUser([]byte(raw))
	if err != nil {
		_ = c.store.Delete(ctx, c.userKey)
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	return u, nil
}

// Save caches s and its user.
func (c *Cache) Save(ctx context.Context, s *Session) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	userData, err := EncodeUser(&s.User)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, c.sessionKey, string(data)); err != nil {
		return err
	}
	return c.store.Set(ctx, c.userKey, string(userData))
}

// Clear removes the cached session and user.
func (c *Cache) Clear(ctx context.Context) error {
	return errors.Join(
		c.store.Delete(ctx, c.sessionKey),
		c.store.Delete(ctx, c.userKey),
	)
}
