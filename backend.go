package mailcapture

import (
	"context"
	"time"
)

// Backend persists records for a Catalog. The Catalog serializes calls, so
// implementations need no locking of their own; other processes may still
// change the underlying storage at any time.
type Backend interface {
	// Write stores a record, replacing any record with the same time and id.
	Write(ctx context.Context, rec *Record) error

	// Scan lists every stored record. When two entries share an id the later
	// one in the returned slice takes precedence.
	Scan(ctx context.Context) ([]Entry, error)

	// Read loads the record an entry refers to.
	Read(ctx context.Context, e Entry) (*Record, error)

	// Remove deletes the record an entry refers to. An error wrapping
	// fs.ErrNotExist means it was already gone.
	Remove(ctx context.Context, e Entry) error
}

// Entry locates one stored record.
type Entry struct {
	ID         string
	CapturedAt time.Time

	// Ref is the backend-specific location: a file path or a Maildir key.
	Ref string
}

// SortKey orders entries the way record file names sort.
func (e Entry) SortKey() string {
	return FormatTime(e.CapturedAt) + "-" + e.ID
}
