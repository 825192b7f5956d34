package mailcapture

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/infodancer/mailcapture/errors"
)

// RecordVersion is the current on-disk record format.
const RecordVersion = 1

// Record is one persisted capture.
type Record struct {
	ID         string
	CapturedAt time.Time
	Envelope   Envelope
	Raw        []byte
}

// Codec converts records to and from their stored byte form.
type Codec interface {
	Marshal(rec *Record) ([]byte, error)
	Unmarshal(data []byte) (*Record, error)
}

// CBORCodec stores records as integer-keyed CBOR maps.
type CBORCodec struct{}

type cborRecord struct {
	Version    uint     `cbor:"1,keyasint"`
	ID         string   `cbor:"2,keyasint"`
	CapturedAt string   `cbor:"3,keyasint"`
	From       string   `cbor:"4,keyasint,omitempty"`
	Recipients []string `cbor:"5,keyasint,omitempty"`
	Raw        []byte   `cbor:"6,keyasint"`
}

// Marshal implements Codec.
func (CBORCodec) Marshal(rec *Record) ([]byte, error) {
	data, err := cbor.Marshal(cborRecord{
		Version:    RecordVersion,
		ID:         rec.ID,
		CapturedAt: FormatTime(rec.CapturedAt),
		From:       rec.Envelope.From,
		Recipients: rec.Envelope.Recipients,
		Raw:        rec.Raw,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// Unmarshal implements Codec.
func (CBORCodec) Unmarshal(data []byte) (*Record, error) {
	var w cborRecord
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	if w.Version != RecordVersion {
		return nil, fmt.Errorf("%w: version %d", errors.ErrUnsupportedRecord, w.Version)
	}
	if len(w.Raw) == 0 {
		return nil, fmt.Errorf("unmarshal record: empty message")
	}

	capturedAt, err := ParseTime(w.CapturedAt)
	if err != nil {
		return nil, fmt.Errorf("unmarshal record: captured at: %w", err)
	}

	return &Record{
		ID:         w.ID,
		CapturedAt: capturedAt,
		Envelope: Envelope{
			From:       w.From,
			Recipients: w.Recipients,
		},
		Raw: w.Raw,
	}, nil
}

// Compile-time interface verification.
var _ Codec = CBORCodec{}
