// Package store persists stamped captures.
package store

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/menta2k/geostamp/internal/utils"
	"github.com/menta2k/geostamp/pkg/codec"
)

// DefaultDir is where captures land when no directory is configured
const DefaultDir = "GPSCamera"

// Store persists an encoded capture and returns where it went
type Store interface {
	Save(img image.Image, name string) (string, error)
}

// CaptureName names a capture after its time, yyyyMMdd_HHmmss.jpg
func CaptureName(t time.Time) string {
	return utils.CaptureFilename(t, string(codec.JPEG))
}

// FileStore writes captures into a directory
type FileStore struct {
	Dir     string
	Format  codec.Format
	Quality int
	codec   *codec.Codec
}

// NewFileStore creates a JPEG store; quality 0 means the codec default
func NewFileStore(dir string, quality int) *FileStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &FileStore{
		Dir:     dir,
		Format:  codec.JPEG,
		Quality: quality,
		codec:   codec.New(),
	}
}

// Save encodes img to a temporary file next to the target and renames it
// into place, so a failed encode never leaves a partial capture. An existing
// capture is never replaced: a taken name gets a _1, _2, ... suffix.
func (s *FileStore) Save(img image.Image, name string) (string, error) {
	if img == nil {
		return "", fmt.Errorf("save capture: nil image")
	}
	name = utils.SanitizeFilename(filepath.Base(name))
	if name == "" {
		return "", fmt.Errorf("save capture: empty file name")
	}
	if err := utils.EnsureDir(s.Dir); err != nil {
		return "", fmt.Errorf("failed to create capture directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".capture-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := s.codec.Encode(tmp, img, codec.Options{Format: s.Format, Quality: s.Quality}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to encode capture: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to set capture permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write capture: %w", err)
	}

	path, err := s.reserve(name)
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to move capture into place: %w", err)
	}
	return path, nil
}

// maxSuffix bounds the search for a free capture name
const maxSuffix = 10000

// reserve claims a free path for name by creating it exclusively
func (s *FileStore) reserve(name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 0; i < maxSuffix; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(s.Dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to reserve capture name: %w", err)
		}
		f.Close()
		return path, nil
	}
	return "", fmt.Errorf("no free capture name for %s", name)
}
