package mailcapture

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/infodancer/mailcapture/errors"
)

func TestFromRaw_Complete(t *testing.T) {
	raw := "From: sender@example.com\r\n" +
		"To: user@example.com\r\n" +
		"Date: Mon, 01 Jan 2024 12:00:00 +0000\r\n" +
		"Message-Id: <abc123@example.com>\r\n" +
		"\r\n" +
		"body\r\n"

	built, err := FromRaw(Envelope{}, strings.NewReader(raw), time.Now())
	if err != nil {
		t.Fatalf("FromRaw failed: %v", err)
	}
	if string(built.Bytes()) != raw {
		t.Errorf("expected bytes unchanged, got %q", built.Bytes())
	}

	// An empty envelope is derived from the header.
	env := built.Envelope()
	if env.From != "sender@example.com" || len(env.Recipients) != 1 || env.Recipients[0] != "user@example.com" {
		t.Errorf("unexpected derived envelope %+v", env)
	}
}

func TestFromRaw_AddsMissingFields(t *testing.T) {
	now := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	raw := "Subject: bare\r\n\r\nbody"

	built, err := FromRaw(Envelope{From: "a@b", Recipients: []string{"c@d"}}, strings.NewReader(raw), now)
	if err != nil {
		t.Fatalf("FromRaw failed: %v", err)
	}

	id, err := built.MessageID()
	if err != nil || id == "" {
		t.Fatalf("expected generated Message-ID, got %q (%v)", id, err)
	}
	if !built.Date().Equal(now) {
		t.Errorf("expected Date %v, got %v", now, built.Date())
	}
	if !strings.HasSuffix(string(built.Bytes()), raw) {
		t.Errorf("expected original bytes preserved after added fields, got %q", built.Bytes())
	}
	if env := built.Envelope(); env.From != "a@b" || env.Recipients[0] != "c@d" {
		t.Errorf("expected explicit envelope kept, got %+v", env)
	}
}

func TestFromRaw_Invalid(t *testing.T) {
	_, err := FromRaw(Envelope{}, strings.NewReader("this is not a header\r\n\r\nbody"), time.Now())
	if !stderrors.Is(err, errors.ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestFromRaw_MalformedMessageIDKept(t *testing.T) {
	raw := "Message-ID: foo@bar\r\nSubject: unbracketed\r\n\r\nbody"

	built, err := FromRaw(Envelope{}, strings.NewReader(raw), time.Now())
	if err != nil {
		t.Fatalf("FromRaw failed: %v", err)
	}
	if n := strings.Count(strings.ToLower(string(built.Bytes())), "message-id:"); n != 1 {
		t.Errorf("expected a single Message-ID field, got %d:\n%s", n, built.Bytes())
	}

	id, err := built.MessageID()
	if err != nil {
		t.Fatalf("MessageID failed: %v", err)
	}
	if id != "foo@bar" {
		t.Errorf("expected the sender's Message-ID, got %q", id)
	}
	if DeriveID(id) != DeriveID("foo@bar") {
		t.Errorf("capture id does not follow the sender's Message-ID")
	}
}

func TestFromRaw_BlankMessageID(t *testing.T) {
	_, err := FromRaw(Envelope{}, strings.NewReader("Message-Id: <>\r\nSubject: x\r\n\r\nbody"), time.Now())
	if !stderrors.Is(err, errors.ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}
