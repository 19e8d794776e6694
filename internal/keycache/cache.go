// Package keycache holds passphrase-derived KEKs in process memory so that
// repeated unwraps within one session skip the key-derivation function.
//
// Entries are never persisted and never logged. There is no expiry timer:
// the owner clears the cache on logout or session switch.
package keycache

import (
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
)

// ErrMiss is returned by Unwrap when no KEK derived from the requested salt
// is cached for the user.
var ErrMiss = errors.New("keycache: no key for user and salt")

// Entry is the cached result of one derivation.
type Entry struct {
	KDFSalt  []byte
	KEK      *cryptox.KEK
	CachedAt time.Time
}

// Cache maps usernames to derived KEKs. It is safe for concurrent use;
// concurrent Set calls for the same user are last-writer-wins.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]Entry
	now      func() time.Time
	teardown func(username string, e Entry)
}

type Option func(*Cache)

// WithClock sets the clock used to stamp Entry.CachedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithTeardown replaces the hook run for every entry that leaves the cache,
// either through Clear, ClearUser or replacement by Set. The default hook
// wipes the KEK.
func WithTeardown(fn func(username string, e Entry)) Option {
	return func(c *Cache) { c.teardown = fn }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]Entry),
		now:      time.Now,
		teardown: wipeEntry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func wipeEntry(_ string, e Entry) {
	e.KEK.Wipe()
}

// Get returns the entry of username. Its KEK is a copy the caller owns;
// wiping it does not affect the cache.
func (c *Cache) Get(username string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[username]
	if ok {
		e.KEK = e.KEK.Clone()
	}
	return e, ok
}

// Set stores e for username, stamping CachedAt from the cache clock. A
// previous entry holding a different KEK is torn down.
func (c *Cache) Set(username string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.CachedAt = c.now()
	if old, ok := c.entries[username]; ok && old.KEK != e.KEK {
		c.teardown(username, old)
	}
	c.entries[username] = e
}

// Lookup returns a copy of the cached KEK for username only if it was
// derived from salt. The caller should wipe the copy.
func (c *Cache) Lookup(username string, salt []byte) (*cryptox.KEK, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.match(username, salt)
	if !ok {
		return nil, false
	}
	return e.KEK.Clone(), true
}

// Unwrap opens wrapped with the cached KEK of username. The key is used under
// the cache lock, so a concurrent ClearUser or Set cannot wipe it mid-use.
func (c *Cache) Unwrap(username string, wrapped *cryptox.WrappedDEK) ([]byte, error) {
	if wrapped == nil {
		return nil, cryptox.ErrUnwrap
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.match(username, wrapped.KDFSalt)
	if !ok {
		return nil, ErrMiss
	}
	return cryptox.UnwrapDEKWithKEK(e.KEK, wrapped)
}

func (c *Cache) match(username string, salt []byte) (Entry, bool) {
	e, ok := c.entries[username]
	if !ok || string(e.KDFSalt) != string(salt) {
		return Entry{}, false
	}
	return e, true
}

// ClearUser evicts a single user's entry.
func (c *Cache) ClearUser(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[username]; ok {
		delete(c.entries, username)
		c.teardown(username, e)
	}
}

// Clear evicts every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for username, e := range c.entries {
		c.teardown(username, e)
	}
	c.entries = make(map[string]Entry)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
