package filestore

import (
	"fmt"
	"regexp"
	"time"

	"github.com/infodancer/mailcapture"
	"github.com/infodancer/mailcapture/errors"
)

const (
	// NameLayoutVersion identifies the file naming scheme parsed below.
	NameLayoutVersion = 1

	// Ext is the extension of record files.
	Ext = ".mail"
)

// namePattern matches layout v1: {YYYYMMDDHHMMSS}-{id}.mail
var namePattern = regexp.MustCompile(fmt.Sprintf(`^(\d{14})-([0-9a-f]{%d})\.mail$`, mailcapture.IDLength))

// Name is the metadata encoded in a record file name.
type Name struct {
	CapturedAt time.Time
	ID         string
}

// String returns the file name for n.
func (n Name) String() string {
	return mailcapture.FormatTime(n.CapturedAt) + "-" + n.ID + Ext
}

// FormatName returns the file name for a record.
func FormatName(capturedAt time.Time, id string) (string, error) {
	if !mailcapture.IsValidID(id) {
		return "", fmt.Errorf("%w: invalid id %q", errors.ErrMalformedName, id)
	}
	return Name{CapturedAt: capturedAt, ID: id}.String(), nil
}

// ParseName extracts capture time and id from a file name.
// Names that do not follow the layout return errors.ErrMalformedName.
func ParseName(name string) (Name, error) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return Name{}, fmt.Errorf("%w: %q", errors.ErrMalformedName, name)
	}
	capturedAt, err := mailcapture.ParseTime(m[1])
	if err != nil {
		return Name{}, fmt.Errorf("%w: %q: %w", errors.ErrMalformedName, name, err)
	}
	return Name{CapturedAt: capturedAt, ID: m[2]}, nil
}
