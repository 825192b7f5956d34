package mailcapture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	mcerrors "github.com/infodancer/mailcapture/errors"
)

// Catalog implements CaptureStore on top of a Backend.
//
// It keeps an in-memory index of id to storage entry so that reads do not
// rescan storage. The index is absent after construction, rebuilt by the
// first read that needs it and dropped by every write or delete. Only the
// id mapping is cached; message content is read from storage every time.
type Catalog struct {
	backend Backend
	builder Builder
	logger  *slog.Logger
	now     func() time.Time

	mu  sync.Mutex
	idx *index
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithBuilder sets the Builder used by Send. Defaults to NewBuilder().
func WithBuilder(b Builder) Option {
	return func(c *Catalog) {
		if b != nil {
			c.builder = b
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the clock used for capture times.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCatalog creates a Catalog over backend.
func NewCatalog(backend Backend, opts ...Option) *Catalog {
	c := &Catalog{
		backend: backend,
		builder: NewBuilder(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send implements Mailer.
func (c *Catalog) Send(ctx context.Context, msg *Message) error {
	if msg == nil {
		return mcerrors.ErrNilMessage
	}
	built, err := c.builder.Build(ctx, msg)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	return c.capture(ctx, built, c.now())
}

// Deliver implements DeliveryAgent.
func (c *Catalog) Deliver(ctx context.Context, envelope Envelope, message io.Reader) error {
	now := c.now()
	built, err := FromRaw(envelope, message, now)
	if err != nil {
		return err
	}
	return c.capture(ctx, built, now)
}

func (c *Catalog) capture(ctx context.Context, built *BuiltMessage, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	messageID, err := built.MessageID()
	if err != nil {
		return err
	}

	rec := &Record{
		ID:         DeriveID(messageID),
		CapturedAt: now.UTC().Truncate(time.Second),
		Envelope:   built.Envelope(),
		Raw:        built.raw,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.backend.Write(ctx, rec)
	c.idx = nil
	if err != nil {
		return fmt.Errorf("%w: %w", mcerrors.ErrStorageWrite, err)
	}

	c.logger.Debug("captured message",
		slog.String("id", rec.ID),
		slog.String("message_id", messageID),
		slog.Int("recipients", len(rec.Envelope.Recipients)))
	return nil
}

// Count implements MessageCatalog.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.ensureIndex(ctx)
	if err != nil {
		return 0, err
	}
	return len(idx.entries), nil
}

// List implements MessageCatalog.
// Records that cannot be read are skipped; the returned error then joins one
// errors.ErrCorruptRecord failure per skipped record alongside the captures
// that were read.
func (c *Catalog) List(ctx context.Context, limit int) ([]*Capture, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", mcerrors.ErrInvalidLimit, limit)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	entries := idx.head(limit)
	captures := make([]*Capture, 0, len(entries))
	var errs []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return captures, err
		}
		capture, err := c.read(ctx, e)
		if err != nil {
			c.logger.Warn("skipping unreadable capture", slog.String("id", e.ID), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		captures = append(captures, capture)
	}
	return captures, errors.Join(errs...)
}

// Get implements MessageCatalog.
func (c *Catalog) Get(ctx context.Context, id string) (*Capture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	e, ok := idx.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", mcerrors.ErrNotFound, id)
	}
	return c.read(ctx, e)
}

// DeleteOne implements MessageCatalog.
func (c *Catalog) DeleteOne(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.ensureIndex(ctx)
	if err != nil {
		return err
	}
	e, ok := idx.lookup(id)
	if !ok {
		// Assume another actor already removed it.
		return nil
	}

	err = c.backend.Remove(ctx, e)
	c.idx = nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", id, err)
	}

	c.logger.Debug("deleted capture", slog.String("id", id))
	return nil
}

// DeleteAll implements MessageCatalog.
func (c *Catalog) DeleteAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.ensureIndex(ctx)
	if err != nil {
		return err
	}
	defer func() { c.idx = nil }()

	var errs []error
	for _, e := range idx.entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.backend.Remove(ctx, e); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("delete %s: %w", e.ID, err))
		}
	}

	c.logger.Debug("deleted all captures", slog.Int("count", len(idx.entries)), slog.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// Invalidate drops the index so the next read rescans storage.
// Use it when storage is known to have changed behind the Catalog's back.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.idx = nil
	c.mu.Unlock()
}

// ensureIndex returns the index, rebuilding it from a full scan when absent.
// The caller must hold c.mu.
func (c *Catalog) ensureIndex(ctx context.Context) (*index, error) {
	if c.idx != nil {
		return c.idx, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scanned, err := c.backend.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan captures: %w", err)
	}
	c.idx = buildIndex(scanned)
	return c.idx, nil
}

func (c *Catalog) read(ctx context.Context, e Entry) (*Capture, error) {
	rec, err := c.backend.Read(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", mcerrors.ErrCorruptRecord, e.ID, err)
	}
	built, err := newBuiltMessage(rec.Envelope, rec.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", mcerrors.ErrCorruptRecord, e.ID, err)
	}
	return &Capture{
		ID:           e.ID,
		CapturedAt:   e.CapturedAt,
		BuiltMessage: built,
	}, nil
}

// Compile-time interface verification.
var _ CaptureStore = (*Catalog)(nil)
