package mailcapture

import (
	"context"
	"time"
)

// MessageCatalog provides read and delete access to captured messages.
// Used by inspection tools to browse captured traffic.
type MessageCatalog interface {
	// Count returns the number of captures.
	Count(ctx context.Context) (int, error)

	// List returns at most limit captures, most recent first.
	// Message content is read from storage on every call.
	List(ctx context.Context, limit int) ([]*Capture, error)

	// Get returns a single capture by id.
	// Returns errors.ErrNotFound if no capture has that id.
	Get(ctx context.Context, id string) (*Capture, error)

	// DeleteOne removes a capture. Removing an unknown id is not an error.
	DeleteOne(ctx context.Context, id string) error

	// DeleteAll removes every capture.
	DeleteAll(ctx context.Context) error
}

// Capture is a built message together with its catalog metadata.
type Capture struct {
	// ID is the short identifier derived from the Message-ID header.
	ID string

	// CapturedAt is when the message was written, at second precision.
	CapturedAt time.Time

	*BuiltMessage
}
