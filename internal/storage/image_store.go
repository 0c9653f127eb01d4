package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kirieshkistudios/park-backend/internal/logging"
	"github.com/kirieshkistudios/park-backend/internal/metrics"
)

const tempSuffix = ".tmp"

var (
	ErrImageNotFound    = errors.New("image not found")
	ErrInvalidImageName = errors.New("invalid image name")
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// ImageStore keeps exactly one current frame per camera in a flat directory.
type ImageStore struct {
	dir    string
	logger zerolog.Logger
}

func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory %s: %w", dir, err)
	}
	return &ImageStore{dir: dir, logger: logging.Component("image_store")}, nil
}

func (s *ImageStore) Dir() string {
	return s.dir
}

// CanonicalName is the file name under which a camera's latest frame lives.
func CanonicalName(cameraID int) string {
	return fmt.Sprintf("camera_%d.jpg", cameraID)
}

// Save replaces the camera's frame. The data is written to a temp file and
// renamed over the canonical name, so readers never see a partial image.
func (s *ImageStore) Save(cameraID int, data []byte) (name string, path string, err error) {
	name = CanonicalName(cameraID)
	path = filepath.Join(s.dir, name)

	tmpPath := filepath.Join(s.dir, fmt.Sprintf(".camera_%d.%s%s", cameraID, uuid.NewString(), tempSuffix))
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(tmpPath)
	}

	if _, err = f.Write(data); err != nil {
		cleanup()
		return "", "", fmt.Errorf("write temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		cleanup()
		return "", "", fmt.Errorf("sync temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("rename into place: %w", err)
	}

	s.logger.Debug().Int("camera_id", cameraID).Int("bytes", len(data)).Str("file", name).Msg("image stored")
	return name, path, nil
}

// Open resolves a stored image name to a path, rejecting anything that is
// not a plain file name with an allowed extension.
func (s *ImageStore) Open(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidImageName
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return "", ErrInvalidImageName
	}

	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrImageNotFound
		}
		return "", fmt.Errorf("stat image: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", ErrImageNotFound
	}
	return path, nil
}

// SweepTempFiles removes temp files left behind by interrupted writes.
func (s *ImageStore) SweepTempFiles(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read image directory: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tempSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("could not remove temp file")
			continue
		}
		removed++
	}
	if removed > 0 {
		metrics.SweptTempFiles.Add(float64(removed))
		s.logger.Info().Int("removed", removed).Msg("swept abandoned temp files")
	}
	return removed, nil
}
