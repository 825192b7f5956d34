package mailcapture

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/infodancer/mailcapture/errors"
)

// FromRaw resolves an already serialized RFC 5322 message into a
// BuiltMessage. Messages lacking a Message-Id or Date get the missing fields
// prepended, the way a submission server would add them; the original bytes
// are otherwise left untouched.
func FromRaw(envelope Envelope, r io.Reader, now time.Time) (*BuiltMessage, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err)
	}
	header := mail.Header{Header: message.Header{Header: h}}

	var missing mail.Header
	switch {
	case !header.Has("Message-Id"):
		if err := missing.GenerateMessageID(); err != nil {
			return nil, fmt.Errorf("generate message id: %w", err)
		}
	case rawMessageID(header) == "":
		return nil, fmt.Errorf("%w: empty Message-Id", errors.ErrInvalidMessage)
	}
	if !header.Has("Date") {
		missing.SetDate(now)
	}

	var prefix bytes.Buffer
	fields := missing.Fields()
	for fields.Next() {
		fmt.Fprintf(&prefix, "%s: %s\r\n", fields.Key(), fields.Value())
	}
	if prefix.Len() > 0 {
		raw = append(prefix.Bytes(), raw...)
	}

	return newBuiltMessage(envelope, raw)
}
