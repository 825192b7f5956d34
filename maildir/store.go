package maildir

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-maildir"
	"github.com/emersion/go-message/textproto"

	"github.com/infodancer/mailcapture"
	"github.com/infodancer/mailcapture/errors"
)

// Trace fields written ahead of every captured message, in this order.
const (
	HeaderID   = "X-Mailcapture-Id"
	HeaderTime = "X-Mailcapture-Time"
	HeaderFrom = "X-Mailcapture-From"
	HeaderTo   = "X-Mailcapture-To"
)

var traceFields = []string{HeaderID, HeaderTime, HeaderFrom, HeaderTo}

// MaildirStore implements mailcapture.Backend using a single Maildir.
// It uses emersion/go-maildir for low-level maildir operations.
// Entries refer to Maildir keys, which survive flag changes made by
// mail clients.
type MaildirStore struct {
	dir    maildir.Dir
	logger *slog.Logger
}

// NewStore creates a MaildirStore rooted at basePath.
// It does not create the directory; use Init() for that.
func NewStore(basePath string, logger *slog.Logger) *MaildirStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaildirStore{
		dir:    maildir.Dir(basePath),
		logger: logger,
	}
}

// Path returns the Maildir path.
func (s *MaildirStore) Path() string {
	return string(s.dir)
}

// Init creates the Maildir structure (new, cur, tmp) unless it exists.
func (s *MaildirStore) Init() error {
	path := string(s.dir)
	if _, err := os.Stat(filepath.Join(path, "cur")); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return err
	}
	return s.dir.Init()
}

// Write implements mailcapture.Backend.
// The message is written to tmp/ and moved to new/ on Close.
func (s *MaildirStore) Write(ctx context.Context, rec *mailcapture.Record) error {
	delivery, err := maildir.NewDelivery(string(s.dir))
	if err != nil {
		return err
	}

	if _, err := delivery.Write(traceHeader(rec)); err != nil {
		_ = delivery.Abort()
		return err
	}
	if _, err := delivery.Write(rec.Raw); err != nil {
		_ = delivery.Abort()
		return err
	}
	return delivery.Close()
}

// Scan implements mailcapture.Backend.
// Like a mail client, it first moves new/ into cur/. Only the header of each
// message is read. Entries are returned oldest first so the newest of two
// captures sharing an id wins.
func (s *MaildirStore) Scan(ctx context.Context) ([]mailcapture.Entry, error) {
	if _, err := s.dir.Unseen(); err != nil {
		return nil, err
	}
	msgs, err := s.dir.Messages()
	if err != nil {
		return nil, err
	}

	entries := make([]mailcapture.Entry, 0, len(msgs))
	for _, msg := range msgs {
		id, capturedAt, err := readTrace(msg)
		if err != nil {
			s.logger.Warn("ignoring maildir message",
				slog.String("key", msg.Key()),
				slog.Any("error", err))
			continue
		}
		entries = append(entries, mailcapture.Entry{
			ID:         id,
			CapturedAt: capturedAt,
			Ref:        msg.Key(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SortKey() < entries[j].SortKey()
	})
	return entries, nil
}

// Read implements mailcapture.Backend.
func (s *MaildirStore) Read(ctx context.Context, e mailcapture.Entry) (*mailcapture.Record, error) {
	msg, err := s.lookup(e.Ref)
	if err != nil {
		return nil, err
	}
	rc, err := msg.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Ref, err)
	}
	return decode(data)
}

// Remove implements mailcapture.Backend.
func (s *MaildirStore) Remove(ctx context.Context, e mailcapture.Entry) error {
	msg, err := s.lookup(e.Ref)
	if err != nil {
		return err
	}
	return msg.Remove()
}

// lookup resolves a Maildir key. A key matching no file reports
// fs.ErrNotExist.
func (s *MaildirStore) lookup(key string) (*maildir.Message, error) {
	msg, err := s.dir.MessageByKey(key)
	if err != nil {
		var keyErr *maildir.KeyError
		if stderrors.As(err, &keyErr) && keyErr.N == 0 {
			return nil, fmt.Errorf("%w: %s", fs.ErrNotExist, key)
		}
		return nil, err
	}
	return msg, nil
}

func traceHeader(rec *mailcapture.Record) []byte {
	var b bytes.Buffer
	writeTrace(&b, HeaderID, rec.ID)
	writeTrace(&b, HeaderTime, mailcapture.FormatTime(rec.CapturedAt))
	writeTrace(&b, HeaderFrom, rec.Envelope.From)
	writeTrace(&b, HeaderTo, strings.Join(rec.Envelope.Recipients, ", "))
	return b.Bytes()
}

func writeTrace(b *bytes.Buffer, key, value string) {
	value = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, value)
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

// readTrace reads the capture id and time from a message header.
func readTrace(msg *maildir.Message) (string, time.Time, error) {
	rc, err := msg.Open()
	if err != nil {
		return "", time.Time{}, err
	}
	defer func() { _ = rc.Close() }()

	h, err := textproto.ReadHeader(bufio.NewReader(rc))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %w", errors.ErrUnsupportedRecord, err)
	}
	return traceIdentity(h)
}

func traceIdentity(h textproto.Header) (string, time.Time, error) {
	id := h.Get(HeaderID)
	if !mailcapture.IsValidID(id) {
		return "", time.Time{}, fmt.Errorf("%w: missing or invalid %s", errors.ErrUnsupportedRecord, HeaderID)
	}
	capturedAt, err := mailcapture.ParseTime(h.Get(HeaderTime))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %s: %w", errors.ErrUnsupportedRecord, HeaderTime, err)
	}
	return id, capturedAt, nil
}

// decode splits a stored file into its trace fields and the original message.
func decode(data []byte) (*mailcapture.Record, error) {
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrUnsupportedRecord, err)
	}
	id, capturedAt, err := traceIdentity(h)
	if err != nil {
		return nil, err
	}

	raw := stripTrace(data)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty message", errors.ErrUnsupportedRecord)
	}

	var recipients []string
	for _, rcpt := range strings.Split(h.Get(HeaderTo), ",") {
		if rcpt = strings.TrimSpace(rcpt); rcpt != "" {
			recipients = append(recipients, rcpt)
		}
	}

	return &mailcapture.Record{
		ID:         id,
		CapturedAt: capturedAt,
		Envelope: mailcapture.Envelope{
			From:       h.Get(HeaderFrom),
			Recipients: recipients,
		},
		Raw: raw,
	}, nil
}

// stripTrace removes the leading trace lines written by traceHeader and
// returns the original message bytes untouched.
func stripTrace(data []byte) []byte {
	for _, key := range traceFields {
		if !bytes.HasPrefix(data, []byte(key+":")) {
			continue
		}
		i := bytes.Index(data, []byte("\r\n"))
		if i < 0 {
			return nil
		}
		data = data[i+2:]
	}
	return data
}

// Compile-time interface verification.
var _ mailcapture.Backend = (*MaildirStore)(nil)
