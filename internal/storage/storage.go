// Package storage keeps post image files.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var (
	ErrInvalidRef       = errors.New("invalid asset reference")
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrTooLarge         = errors.New("image too large")
)

// AssetStore is a path-addressed blob store.
type AssetStore interface {
	// Put stores the content of r and returns the new reference.
	Put(ctx context.Context, filename string, r io.Reader) (string, error)
	// Delete removes ref. A missing file is not an error.
	Delete(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) (bool, error)
	// URL returns the public URL for ref.
	URL(ref string) string
}

var allowedImages = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// FSStore stores assets under posts/<yyyy>/<mm>/ on an afero file system.
type FSStore struct {
	fs       afero.Fs
	baseURL  string
	maxBytes int64
	now      func() time.Time
}

// NewFSStore returns a store rooted at fs. maxBytes <= 0 disables the size limit.
func NewFSStore(fs afero.Fs, baseURL string, maxBytes int64) *FSStore {
	return &FSStore{fs: fs, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes, now: time.Now}
}

// NewLocalStore roots the store at dir on the local disk.
func NewLocalStore(dir, baseURL string, maxBytes int64) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return NewFSStore(afero.NewBasePathFs(afero.NewOsFs(), dir), baseURL, maxBytes), nil
}

// FS exposes the underlying file system, e.g. for serving /media.
func (s *FSStore) FS() afero.Fs { return s.fs }

func (s *FSStore) Put(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	limited := r
	if s.maxBytes > 0 {
		limited = io.LimitReader(r, s.maxBytes+1)
	}
	data, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImages...) {
		return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedImage, mt.String(), filename)
	}

	now := s.now()
	dir := path.Join("posts", now.Format("2006"), now.Format("01"))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create asset dir: %w", err)
	}
	ref := path.Join(dir, uuid.New().String()+mt.Extension())
	if err := afero.WriteReader(s.fs, ref, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write asset: %w", err)
	}
	return ref, nil
}

func (s *FSStore) Delete(ctx context.Context, ref string) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	if err := s.fs.Remove(ref); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove asset %s: %w", ref, err)
	}
	return nil
}

func (s *FSStore) Exists(ctx context.Context, ref string) (bool, error) {
	if err := checkRef(ref); err != nil {
		return false, err
	}
	return afero.Exists(s.fs, ref)
}

func (s *FSStore) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return s.baseURL + "/" + ref
}

func checkRef(ref string) error {
	if ref == "" || path.IsAbs(ref) || strings.HasPrefix(ref, "\\") {
		return ErrInvalidRef
	}
	if path.Clean(ref) != ref {
		return ErrInvalidRef
	}
	for _, part := range strings.Split(ref, "/") {
		if part == ".." {
			return ErrInvalidRef
		}
	}
	return nil
}
