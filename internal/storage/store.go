// Package storage keeps timestamped JSON values in a local (persistent) and a
// session (process lifetime) area, the way a page uses browser storage.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"hcext/internal/logging"
)

// Entry is the stored form of a value: {"timestamp": <ms>, "data": ...}.
type Entry struct {
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Time returns the moment the entry was written.
func (e Entry) Time() time.Time { return time.UnixMilli(e.Timestamp) }

// Store owns the local and session backends.
type Store struct {
	local   Backend
	session Backend
	debug   bool
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDebug makes every read miss, so cached data is never served.
func WithDebug(debug bool) StoreOption {
	return func(s *Store) { s.debug = debug }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// New returns a Store over the given backends.
func New(local, session Backend, opts ...StoreOption) *Store {
	s := &Store{local: local, session: session, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Config selects and sizes the backends for Open.
type Config struct {
	// Driver is "memory", "leveldb" or "sqlite" and applies to the local area.
	Driver     string
	Path       string
	LocalMax   int64
	SessionMax int64
	Debug      bool
	Logger     *slog.Logger
}

// Open builds a Store from cfg. The session area is always in memory.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	overflow := logging.NewRateLimited(logger, 5*time.Second)
	session := NewMemory(cfg.SessionMax, overflow)

	var local Backend
	switch cfg.Driver {
	case "", "memory":
		local = NewMemory(cfg.LocalMax, overflow)
	case "leveldb":
		db, err := OpenLevelDB(cfg.Path, cfg.LocalMax, overflow)
		if err != nil {
			return nil, err
		}
		local = db
	case "sqlite":
		db, err := OpenSQLite(cfg.Path, "local")
		if err != nil {
			return nil, err
		}
		local = db
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	return New(local, session, WithDebug(cfg.Debug)), nil
}

// Close closes both backends.
func (s *Store) Close() error {
	return multierr.Combine(s.local.Close(), s.session.Close())
}

// Item returns the value stored under id in the session or local area.
func (s *Store) Item(id string, session bool) (*Item, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	b := s.local
	if session {
		b = s.session
	}
	return &Item{id: id, backend: b, store: s}, nil
}

// Item is a single stored value.
type Item struct {
	id      string
	backend Backend
	store   *Store
}

func (it *Item) ID() string { return it.id }

// Set stores data, stamped with the current time.
func (it *Item) Set(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", it.id, err)
	}
	b, err := json.Marshal(Entry{Timestamp: it.store.now().UnixMilli(), Data: raw})
	if err != nil {
		return fmt.Errorf("encode %s: %w", it.id, err)
	}
	return it.backend.Set(it.id, b)
}

// Entry returns the full stored entry. In debug mode it always misses.
// Entries that fail to decode are reported as missing.
func (it *Item) Entry() (Entry, bool, error) {
	if it.store.debug {
		return Entry{}, false, nil
	}
	b, ok, err := it.backend.Get(it.id)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil || e.Data == nil {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Get decodes the stored data into dst and reports whether there was any.
func (it *Item) Get(dst any) (bool, error) {
	e, ok, err := it.Entry()
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", it.id, err)
	}
	return true, nil
}

// IsValid reports whether the stored entry is younger than ttl.
func (it *Item) IsValid(ttl time.Duration) bool {
	e, ok, err := it.Entry()
	if err != nil || !ok {
		return false
	}
	return it.store.now().UnixMilli()-e.Timestamp < ttl.Milliseconds()
}

// Remove deletes the stored value.
func (it *Item) Remove() error {
	return it.backend.Remove(it.id)
}
