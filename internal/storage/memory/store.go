package memory

import (
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Entry is a stored value and its expiry. A nil Value marks a key that
// exists without a value.
type Entry struct {
	Value     []byte
	ExpiresAt int64 // Unix milliseconds; 0 means no expiry
}

// Expired reports whether the entry has expired at nowMs.
func (e Entry) Expired(nowMs int64) bool {
	return e.ExpiresAt != 0 && nowMs >= e.ExpiresAt
}

// Store maps keys to entries.
type Store struct {
	data *xsync.MapOf[string, Entry]
	now  func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		data: xsync.NewMapOf[string, Entry](),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NowMs returns the store clock in Unix milliseconds.
func (s *Store) NowMs() int64 {
	return s.now().UnixMilli()
}

// Set replaces the entry for key. The store takes ownership of value.
// A nil value keeps the key listed by Keys while Get reads it as absent.
func (s *Store) Set(key string, value []byte, expiresAt int64) {
	s.data.Store(key, Entry{Value: value, ExpiresAt: expiresAt})
}

// Restore inserts an entry loaded from a snapshot.
func (s *Store) Restore(key string, value []byte, expiresAt int64) {
	s.Set(key, value, expiresAt)
}

// Get returns the live value for key. Expired entries read as absent and
// are left in place.
func (s *Store) Get(key string) ([]byte, bool) {
	e, ok := s.data.Load(key)
	if !ok || e.Value == nil || e.Expired(s.NowMs()) {
		return nil, false
	}
	return e.Value, true
}

// Lookup returns the raw entry for key, expired or not.
func (s *Store) Lookup(key string) (Entry, bool) {
	return s.data.Load(key)
}

// Keys returns the live keys in sorted order.
func (s *Store) Keys() []string {
	now := s.NowMs()
	keys := make([]string, 0, s.data.Size())
	s.data.Range(func(key string, e Entry) bool {
		if !e.Expired(now) {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored entries, including expired ones that
// have not been overwritten.
func (s *Store) Len() int {
	return s.data.Size()
}
