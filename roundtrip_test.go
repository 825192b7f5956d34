package mailcapture_test

// Round-trip tests through mailcapture.Open for every registered backend.
//
// A key scenario is the split-process pattern: an application (or the SMTP
// sink) captures through one Open() call while an inspection tool reads
// through another against the same directory. Tests that verify
// cross-handle visibility use two independent stores opened from the same
// StoreConfig.

import (
	"context"
	stderrors "errors"
	"slices"
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"

	"github.com/infodancer/mailcapture"
	"github.com/infodancer/mailcapture/errors"
)

var backendTypes = []string{"file", "maildir"}

func openStore(t *testing.T, cfg mailcapture.StoreConfig) mailcapture.CaptureStore {
	t.Helper()
	store, err := mailcapture.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func sendMessage(t *testing.T, store mailcapture.Mailer, messageID, subject string) string {
	t.Helper()
	err := store.Send(context.Background(), &mailcapture.Message{
		From:      []*mail.Address{{Address: "sender@example.com"}},
		To:        []*mail.Address{{Address: "user@example.com"}},
		Subject:   subject,
		MessageID: messageID,
		Text:      "Body of " + subject,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	return mailcapture.DeriveID(messageID)
}

func captureIDs(t *testing.T, store mailcapture.MessageCatalog) []string {
	t.Helper()
	list, err := store.List(context.Background(), 100)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestRoundTrip_SplitProcess(t *testing.T) {
	for _, typ := range backendTypes {
		t.Run(typ, func(t *testing.T) {
			cfg := mailcapture.StoreConfig{Type: typ, BasePath: t.TempDir()}
			ctx := context.Background()

			writer := openStore(t, cfg)
			id := sendMessage(t, writer, "abc123@example.com", "Welcome")
			if id != "7e40b4" {
				t.Fatalf("unexpected id %q", id)
			}

			reader := openStore(t, cfg)
			got, err := reader.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Subject() != "Welcome" {
				t.Errorf("expected subject Welcome, got %q", got.Subject())
			}
			if !strings.Contains(string(got.Bytes()), "Body of Welcome") {
				t.Errorf("message body not preserved: %q", got.Bytes())
			}

			parsed, err := got.Parse()
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(parsed.To) != 1 || parsed.To[0].Address != "user@example.com" {
				t.Errorf("unexpected To %v", parsed.To)
			}
		})
	}
}

func TestRoundTrip_IndexRefreshesAfterInvalidate(t *testing.T) {
	for _, typ := range backendTypes {
		t.Run(typ, func(t *testing.T) {
			cfg := mailcapture.StoreConfig{Type: typ, BasePath: t.TempDir()}
			ctx := context.Background()

			writer := openStore(t, cfg)
			reader := openStore(t, cfg)
			first := sendMessage(t, writer, "first@example.com", "First")

			if ids := captureIDs(t, reader); !slices.Equal(ids, []string{first}) {
				t.Fatalf("expected [%s], got %v", first, ids)
			}

			second := sendMessage(t, writer, "second@example.com", "Second")

			// The reader's index is warm; captures written elsewhere appear
			// only once it is dropped.
			if _, err := reader.Get(ctx, second); !stderrors.Is(err, errors.ErrNotFound) {
				t.Fatalf("expected ErrNotFound from warm index, got %v", err)
			}
			reader.(*mailcapture.Catalog).Invalidate()

			n, err := reader.Count(ctx)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if n != 2 {
				t.Errorf("expected 2 captures after Invalidate, got %d", n)
			}
		})
	}
}

func TestRoundTrip_DeleteAcrossHandles(t *testing.T) {
	for _, typ := range backendTypes {
		t.Run(typ, func(t *testing.T) {
			cfg := mailcapture.StoreConfig{Type: typ, BasePath: t.TempDir()}
			ctx := context.Background()

			a := openStore(t, cfg)
			b := openStore(t, cfg)
			gone := sendMessage(t, a, "gone@example.com", "Gone")
			kept := sendMessage(t, a, "kept@example.com", "Kept")

			if n, err := b.Count(ctx); err != nil || n != 2 {
				t.Fatalf("expected 2 captures, got %d (%v)", n, err)
			}

			if err := a.DeleteOne(ctx, gone); err != nil {
				t.Fatalf("DeleteOne: %v", err)
			}
			// b still indexes the removed capture; deleting it again is a no-op.
			if err := b.DeleteOne(ctx, gone); err != nil {
				t.Fatalf("DeleteOne on stale handle: %v", err)
			}

			if ids := captureIDs(t, b); !slices.Equal(ids, []string{kept}) {
				t.Errorf("expected [%s], got %v", kept, ids)
			}

			if err := b.DeleteAll(ctx); err != nil {
				t.Fatalf("DeleteAll: %v", err)
			}
			if ids := captureIDs(t, openStore(t, cfg)); len(ids) != 0 {
				t.Errorf("expected empty store, got %v", ids)
			}
		})
	}
}

func TestRoundTrip_DeliverRaw(t *testing.T) {
	for _, typ := range backendTypes {
		t.Run(typ, func(t *testing.T) {
			cfg := mailcapture.StoreConfig{Type: typ, BasePath: t.TempDir()}
			ctx := context.Background()

			store := openStore(t, cfg)
			env := mailcapture.Envelope{
				From:       "sender@example.com",
				Recipients: []string{"user@example.com", "bcc@example.com"},
			}
			raw := "Message-Id: <order-42@shop.test>\r\nSubject: Receipt\r\n\r\nThanks"
			if err := store.Deliver(ctx, env, strings.NewReader(raw)); err != nil {
				t.Fatalf("Deliver: %v", err)
			}

			got, err := openStore(t, cfg).Get(ctx, "affa6b")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if gotEnv := got.Envelope(); !slices.Equal(gotEnv.Recipients, env.Recipients) {
				t.Errorf("expected recipients %v, got %v", env.Recipients, gotEnv.Recipients)
			}
			if !strings.HasSuffix(string(got.Bytes()), raw) {
				t.Errorf("original bytes not preserved: %q", got.Bytes())
			}
		})
	}
}
