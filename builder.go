package mailcapture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/infodancer/mailcapture/errors"
)

// Builder resolves a composed message into its final transmitted form.
// Build must assign every computed header, notably the Message-ID that the
// capture id is derived from, and must not touch storage.
type Builder interface {
	Build(ctx context.Context, msg *Message) (*BuiltMessage, error)
}

// Message describes a message before it is built.
type Message struct {
	From    []*mail.Address
	To      []*mail.Address
	Cc      []*mail.Address
	Bcc     []*mail.Address
	ReplyTo []*mail.Address
	Subject string

	// MessageID is generated by the builder when empty.
	MessageID string

	// Date defaults to the builder's clock when zero.
	Date time.Time

	// Header contains additional header fields, written in key order.
	Header map[string]string

	Text        string
	HTML        string
	Attachments []Attachment
}

// Attachment is a file carried by a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// DefaultBuilder renders messages as RFC 5322 using go-message.
type DefaultBuilder struct {
	// Now supplies the Date header for messages that have none.
	Now func() time.Time
}

// NewBuilder returns a DefaultBuilder using the wall clock.
func NewBuilder() *DefaultBuilder {
	return &DefaultBuilder{Now: time.Now}
}

// Build implements Builder.
func (b *DefaultBuilder) Build(ctx context.Context, msg *Message) (*BuiltMessage, error) {
	if msg == nil {
		return nil, errors.ErrNilMessage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var h mail.Header
	keys := make([]string, 0, len(msg.Header))
	for k := range msg.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Set(k, msg.Header[k])
	}

	date := msg.Date
	if date.IsZero() {
		date = b.now()
	}
	h.SetDate(date)

	setAddressList(&h, "From", msg.From)
	setAddressList(&h, "To", msg.To)
	setAddressList(&h, "Cc", msg.Cc)
	setAddressList(&h, "Reply-To", msg.ReplyTo)
	if msg.Subject != "" {
		h.SetSubject(msg.Subject)
	}

	if id := strings.Trim(strings.TrimSpace(msg.MessageID), "<>"); id != "" {
		h.SetMessageID(id)
	} else if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}
	h.Set("MIME-Version", "1.0")

	var buf bytes.Buffer
	if err := writeBody(&buf, h, msg); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}

	return newBuiltMessage(envelopeFor(msg), buf.Bytes())
}

func (b *DefaultBuilder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

type inlinePart struct {
	contentType string
	body        string
}

// writeBody emits a single-part message when there is one text body and no
// attachments, and multipart/mixed otherwise.
func writeBody(w io.Writer, h mail.Header, msg *Message) error {
	var parts []inlinePart
	if msg.Text != "" {
		parts = append(parts, inlinePart{"text/plain", msg.Text})
	}
	if msg.HTML != "" {
		parts = append(parts, inlinePart{"text/html", msg.HTML})
	}

	if len(msg.Attachments) == 0 && len(parts) <= 1 {
		part := inlinePart{contentType: "text/plain"}
		if len(parts) == 1 {
			part = parts[0]
		}
		h.SetContentType(part.contentType, map[string]string{"charset": "utf-8"})
		bw, err := mail.CreateSingleInlineWriter(w, h)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(bw, part.body); err != nil {
			_ = bw.Close()
			return err
		}
		return bw.Close()
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return err
	}

	if len(parts) > 0 {
		iw, err := mw.CreateInline()
		if err != nil {
			return err
		}
		for _, p := range parts {
			var ph mail.InlineHeader
			ph.SetContentType(p.contentType, map[string]string{"charset": "utf-8"})
			pw, err := iw.CreatePart(ph)
			if err != nil {
				return err
			}
			if _, err := io.WriteString(pw, p.body); err != nil {
				_ = pw.Close()
				return err
			}
			if err := pw.Close(); err != nil {
				return err
			}
		}
		if err := iw.Close(); err != nil {
			return err
		}
	}

	for _, a := range msg.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		var ah mail.AttachmentHeader
		ah.SetContentType(contentType, nil)
		ah.SetFilename(a.Filename)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return err
		}
		if _, err := aw.Write(a.Content); err != nil {
			_ = aw.Close()
			return err
		}
		if err := aw.Close(); err != nil {
			return err
		}
	}

	return mw.Close()
}

func setAddressList(h *mail.Header, key string, addrs []*mail.Address) {
	if len(addrs) == 0 {
		return
	}
	h.SetAddressList(key, addrs)
}

// envelopeFor derives the envelope of a composed message: the first From
// address and every To, Cc and Bcc address without duplicates.
func envelopeFor(msg *Message) Envelope {
	var env Envelope
	if len(msg.From) > 0 && msg.From[0] != nil {
		env.From = msg.From[0].Address
	}
	seen := make(map[string]bool)
	for _, list := range [][]*mail.Address{msg.To, msg.Cc, msg.Bcc} {
		for _, a := range list {
			if a == nil || a.Address == "" {
				continue
			}
			key := strings.ToLower(a.Address)
			if seen[key] {
				continue
			}
			seen[key] = true
			env.Recipients = append(env.Recipients, a.Address)
		}
	}
	return env
}

// Compile-time interface verification.
var _ Builder = (*DefaultBuilder)(nil)
