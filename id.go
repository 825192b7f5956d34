package mailcapture

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

const (
	// IDLength is the number of hex characters kept from the Message-ID digest.
	// Six characters give 24 bits of id space; collisions within the same
	// second overwrite each other. Kept for compatibility with existing
	// capture directories.
	IDLength = 6

	// TimeLayout formats CapturedAt as a fixed-width, lexically sortable string.
	TimeLayout = "20060102150405"
)

// DeriveID returns the capture id for a Message-ID header value.
// The digest covers the bracketed form "<local@domain>" whether or not
// messageID carries the brackets.
func DeriveID(messageID string) string {
	id := strings.Trim(strings.TrimSpace(messageID), "<>")
	sum := md5.Sum([]byte("<" + id + ">"))
	return hex.EncodeToString(sum[:])[:IDLength]
}

// IsValidID reports whether s has the shape of a capture id.
func IsValidID(s string) bool {
	if len(s) != IDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// FormatTime renders a capture time using TimeLayout in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout string as UTC.
func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.UTC)
}
