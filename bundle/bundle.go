// Package bundle packages encoded QR artifacts into zip archives and keeps
// them on disk, one directory per batch id.
package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/qrbatch/encoder"
)

// ArchiveName is the file name of every stored archive.
const ArchiveName = "qrcodes.zip"

// entryTime is stamped on every zip entry so equal inputs give equal bytes.
var entryTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// ErrInvalidID is returned for batch ids that are not UUIDs.
var ErrInvalidID = errors.New("invalid batch id")

// ErrNotFound is returned when no archive exists for a batch id.
var ErrNotFound = errors.New("archive not found")

// Write streams a zip of artifacts to w, one entry per artifact in slice
// order, named by Artifact.Filename.
func Write(w io.Writer, artifacts []*encoder.Artifact) error {
	zw := zip.NewWriter(w)
	for _, a := range artifacts {
		hdr := &zip.FileHeader{
			Name:     a.Filename(),
			Method:   zip.Deflate,
			Modified: entryTime,
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", hdr.Name, err)
		}
		if _, err := fw.Write(a.Data); err != nil {
			return fmt.Errorf("write zip entry %s: %w", hdr.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}

// Store keeps archives under root/<batch id>/qrcodes.zip.
type Store struct {
	root string
}

// NewStore creates root if needed and returns a Store rooted there.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create bundle root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the directory the store writes into.
func (s *Store) Root() string { return s.root }

// Path returns where the archive for id lives (or would live).
func (s *Store) Path(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.root, u.String(), ArchiveName), nil
}

// Save writes the archive for batch id atomically and returns its path.
// Concurrent batches never share a file because every id has its own
// directory.
func (s *Store) Save(id string, artifacts []*encoder.Artifact) (string, error) {
	path, err := s.Path(id)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create batch dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*.zip")
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := Write(tmp, artifacts); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync temp archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp archive: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename archive: %w", err)
	}
	return path, nil
}

// Open returns the stored archive for id. The caller closes it.
func (s *Store) Open(id string) (*os.File, error) {
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return f, nil
}

// Remove deletes the batch directory for id. Missing directories are not
// an error.
func (s *Store) Remove(id string) error {
	path, err := s.Path(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Dir(path)); err != nil {
		return fmt.Errorf("remove batch %s: %w", id, err)
	}
	return nil
}
