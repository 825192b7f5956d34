package mailcapture

import (
	"context"
	"io"
)

// Mailer captures composed messages in place of transmitting them.
type Mailer interface {
	// Send builds the message and persists the result as a new capture.
	Send(ctx context.Context, msg *Message) error
}

// DeliveryAgent captures messages that already exist in serialized form.
// The SMTP sink calls Deliver() for every accepted DATA payload.
type DeliveryAgent interface {
	// Deliver stores a raw RFC 5322 message.
	// envelope contains sender and recipient information; when it is empty
	// it is derived from the message headers.
	Deliver(ctx context.Context, envelope Envelope, message io.Reader) error
}

// Envelope contains the transport-level addressing of a captured message.
type Envelope struct {
	// From is the reverse-path (MAIL FROM).
	From string

	// Recipients contains every forward-path, including Bcc recipients
	// that never appear in the message header.
	Recipients []string
}

// IsZero reports whether the envelope carries no addressing at all.
func (e Envelope) IsZero() bool {
	return e.From == "" && len(e.Recipients) == 0
}
