package filestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/infodancer/mailcapture"
)

// FileStore implements mailcapture.Backend over a flat directory.
type FileStore struct {
	dir    string
	codec  mailcapture.Codec
	logger *slog.Logger
}

// NewStore creates a FileStore for dir. A nil codec stores plain CBOR
// records; a nil logger uses slog.Default().
// It does not create the directory; the registry factory does that.
func NewStore(dir string, codec mailcapture.Codec, logger *slog.Logger) *FileStore {
	if codec == nil {
		codec = mailcapture.CBORCodec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		dir:    dir,
		codec:  codec,
		logger: logger,
	}
}

// Dir returns the capture directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file path a record with the given time and id is stored at.
func (s *FileStore) Path(name Name) string {
	return filepath.Join(s.dir, name.String())
}

// Write implements mailcapture.Backend.
func (s *FileStore) Write(ctx context.Context, rec *mailcapture.Record) error {
	name, err := FormatName(rec.CapturedAt, rec.ID)
	if err != nil {
		return err
	}
	data, err := s.codec.Marshal(rec)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, name), data)
}

// writeFileAtomic writes to a temporary file in the target directory and
// renames it into place, so readers never observe a partial record.
func writeFileAtomic(path string, data []byte) error {
	dir, base := filepath.Split(path)
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := f.Name()

	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, 0o644)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Scan implements mailcapture.Backend.
// Entries come back in lexical file name order, so of two files sharing an
// id the newer one is listed last.
func (s *FileStore) Scan(ctx context.Context) ([]mailcapture.Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var entries []mailcapture.Entry
	for _, de := range dirEntries {
		if !de.Type().IsRegular() || !strings.HasSuffix(de.Name(), Ext) {
			continue
		}
		name, err := ParseName(de.Name())
		if err != nil {
			s.logger.Warn("ignoring malformed capture file",
				slog.String("dir", s.dir),
				slog.String("file", de.Name()),
				slog.Any("error", err))
			continue
		}
		entries = append(entries, mailcapture.Entry{
			ID:         name.ID,
			CapturedAt: name.CapturedAt,
			Ref:        filepath.Join(s.dir, de.Name()),
		})
	}
	return entries, nil
}

// Read implements mailcapture.Backend.
func (s *FileStore) Read(ctx context.Context, e mailcapture.Entry) (*mailcapture.Record, error) {
	data, err := os.ReadFile(e.Ref)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(e.Ref), err)
	}
	rec, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(e.Ref), err)
	}
	return rec, nil
}

// Remove implements mailcapture.Backend.
func (s *FileStore) Remove(ctx context.Context, e mailcapture.Entry) error {
	return os.Remove(e.Ref)
}

// Compile-time interface verification.
var _ mailcapture.Backend = (*FileStore)(nil)
