package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type invalidations chan struct{}

func (ch invalidations) Invalidate() {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func TestWatcher_InvalidatesOnNewRecord(t *testing.T) {
	dir := t.TempDir()
	ch := make(invalidations, 1)

	w, err := NewWatcher(dir, ch, discard)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "20240101120000-a1b2c3.mail"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for invalidation")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), make(invalidations, 1), discard); err == nil {
		t.Fatal("expected error watching a missing directory")
	}
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create record", fsnotify.Event{Name: "/d/20240101120000-a1b2c3.mail", Op: fsnotify.Create}, true},
		{"remove record", fsnotify.Event{Name: "/d/20240101120000-a1b2c3.mail", Op: fsnotify.Remove}, true},
		{"rename record", fsnotify.Event{Name: "/d/20240101120000-a1b2c3.mail", Op: fsnotify.Rename}, true},
		{"write record", fsnotify.Event{Name: "/d/20240101120000-a1b2c3.mail", Op: fsnotify.Write}, false},
		{"temp file", fsnotify.Event{Name: "/d/.20240101120000-a1b2c3.mail.42.tmp", Op: fsnotify.Create}, false},
		{"other file", fsnotify.Event{Name: "/d/notes.txt", Op: fsnotify.Remove}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relevant(tt.ev); got != tt.want {
				t.Errorf("relevant(%v) = %v, want %v", tt.ev, got, tt.want)
			}
		})
	}
}
