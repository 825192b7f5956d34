package mailcapture

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // decode non-UTF-8 captures
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/infodancer/mailcapture/errors"
)

// BuiltMessage is the immutable, fully resolved form of a message: the exact
// bytes that would have been transmitted plus the envelope they were
// addressed with.
type BuiltMessage struct {
	envelope Envelope
	header   mail.Header
	raw      []byte
}

// NewBuiltMessage wraps raw RFC 5322 bytes. The header must parse; the body
// is kept opaque until Parse is called.
func NewBuiltMessage(envelope Envelope, raw []byte) (*BuiltMessage, error) {
	return newBuiltMessage(envelope, bytes.Clone(raw))
}

func newBuiltMessage(envelope Envelope, raw []byte) (*BuiltMessage, error) {
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err)
	}
	header := mail.Header{Header: message.Header{Header: h}}

	if envelope.IsZero() {
		envelope = envelopeFromHeader(header)
	} else {
		envelope.Recipients = append([]string(nil), envelope.Recipients...)
	}

	return &BuiltMessage{
		envelope: envelope,
		header:   header,
		raw:      raw,
	}, nil
}

// Bytes returns a copy of the serialized message.
func (m *BuiltMessage) Bytes() []byte {
	return bytes.Clone(m.raw)
}

// Size returns the length of the serialized message in bytes.
func (m *BuiltMessage) Size() int {
	return len(m.raw)
}

// WriteTo writes the serialized message to w.
func (m *BuiltMessage) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m.raw)
	return int64(n), err
}

// Envelope returns the addressing the message was captured with.
func (m *BuiltMessage) Envelope() Envelope {
	env := m.envelope
	env.Recipients = append([]string(nil), m.envelope.Recipients...)
	return env
}

// Header returns a copy of the message header.
func (m *BuiltMessage) Header() mail.Header {
	return m.header.Copy()
}

// MessageID returns the Message-ID without angle brackets.
// A value that does not parse as a msg-id is returned trimmed, as written.
// It returns errors.ErrMessageIDMissing when the header is absent or blank.
func (m *BuiltMessage) MessageID() (string, error) {
	id, err := m.header.MessageID()
	if err != nil {
		id = rawMessageID(m.header)
	}
	if id == "" {
		return "", errors.ErrMessageIDMissing
	}
	return id, nil
}

func rawMessageID(h mail.Header) string {
	return strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>")
}

// Subject returns the decoded Subject, or the raw field if it cannot be decoded.
func (m *BuiltMessage) Subject() string {
	s, err := m.header.Subject()
	if err != nil {
		return m.header.Get("Subject")
	}
	return s
}

// Date returns the Date header, or the zero time when missing or invalid.
func (m *BuiltMessage) Date() time.Time {
	t, err := m.header.Date()
	if err != nil {
		return time.Time{}
	}
	return t
}

// Parse decodes the message back into structured form. Bcc recipients are
// restored from envelope recipients that appear in neither To nor Cc.
func (m *BuiltMessage) Parse() (*Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(m.raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err)
	}
	defer func() { _ = mr.Close() }()

	out := &Message{}
	if out.From, err = mr.Header.AddressList("From"); err != nil {
		return nil, fmt.Errorf("%w: From: %w", errors.ErrInvalidMessage, err)
	}
	if out.To, err = mr.Header.AddressList("To"); err != nil {
		return nil, fmt.Errorf("%w: To: %w", errors.ErrInvalidMessage, err)
	}
	if out.Cc, err = mr.Header.AddressList("Cc"); err != nil {
		return nil, fmt.Errorf("%w: Cc: %w", errors.ErrInvalidMessage, err)
	}
	if out.ReplyTo, err = mr.Header.AddressList("Reply-To"); err != nil {
		return nil, fmt.Errorf("%w: Reply-To: %w", errors.ErrInvalidMessage, err)
	}
	out.Subject = m.Subject()
	out.Date = m.Date()
	out.MessageID, _ = m.header.MessageID()

	fields := mr.Header.Fields()
	for fields.Next() {
		if !strings.HasPrefix(strings.ToLower(fields.Key()), "x-") {
			continue
		}
		if out.Header == nil {
			out.Header = make(map[string]string)
		}
		out.Header[fields.Key()] = fields.Value()
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err)
		}
		if p == nil {
			return nil, fmt.Errorf("%w: unreadable part", errors.ErrInvalidMessage)
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read part: %w", errors.ErrInvalidMessage, err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, params, _ := h.ContentType()
			switch {
			case contentType == "text/html":
				if out.HTML == "" {
					out.HTML = string(body)
				}
			case contentType == "" || strings.HasPrefix(contentType, "text/"):
				if out.Text == "" {
					out.Text = string(body)
				}
			default:
				out.Attachments = append(out.Attachments, Attachment{
					Filename:    params["name"],
					ContentType: contentType,
					Content:     body,
				})
			}
		case *mail.AttachmentHeader:
			contentType, _, _ := h.ContentType()
			filename, _ := h.Filename()
			out.Attachments = append(out.Attachments, Attachment{
				Filename:    filename,
				ContentType: contentType,
				Content:     body,
			})
		}
	}

	out.Bcc = hiddenRecipients(m.envelope.Recipients, out.To, out.Cc)
	return out, nil
}

func hiddenRecipients(recipients []string, visible ...[]*mail.Address) []*mail.Address {
	shown := make(map[string]bool)
	for _, list := range visible {
		for _, a := range list {
			shown[strings.ToLower(a.Address)] = true
		}
	}
	var hidden []*mail.Address
	for _, r := range recipients {
		if shown[strings.ToLower(r)] {
			continue
		}
		hidden = append(hidden, &mail.Address{Address: r})
	}
	return hidden
}

// envelopeFromHeader derives an envelope from From, To and Cc. Malformed
// address fields are ignored.
func envelopeFromHeader(h mail.Header) Envelope {
	var env Envelope
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		env.From = from[0].Address
	}
	seen := make(map[string]bool)
	for _, key := range []string{"To", "Cc"} {
		addrs, err := h.AddressList(key)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			k := strings.ToLower(a.Address)
			if a.Address == "" || seen[k] {
				continue
			}
			seen[k] = true
			env.Recipients = append(env.Recipients, a.Address)
		}
	}
	return env
}
