package storage

import "errors"

var (
	// ErrEmptyID is returned when an item is requested without an ID.
	ErrEmptyID = errors.New("storage: an item ID is required")

	// ErrTooLarge is returned when a single value exceeds a backend's quota.
	ErrTooLarge = errors.New("storage: value exceeds quota")

	// ErrClosed is returned by backends used after Close.
	ErrClosed = errors.New("storage: backend closed")
)

// Backend is a string-keyed byte store, the equivalent of one browser
// storage area. Implementations are safe for concurrent use.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
	Close() error
}

// Sizer is implemented by backends that track their stored size.
type Sizer interface {
	TotalSize() int64
	KeyCount() int
}
