package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirieshkistudios/park-backend/internal/metrics"
)

func newTestStore(t *testing.T) *ImageStore {
	t.Helper()
	store, err := NewImageStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewImageStore: %v", err)
	}
	return store
}

func TestSaveOverwritesPreviousFrame(t *testing.T) {
	store := newTestStore(t)

	if _, _, err := store.Save(42, []byte("first")); err != nil {
		t.Fatalf("first save: %v", err)
	}
	name, path, err := store.Save(42, []byte("second"))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if name != "camera_42.jpg" {
		t.Errorf("name = %q, want camera_42.jpg", name)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stored image: %v", err)
	}
	if !bytes.Equal(got, []byte("second")) {
		t.Errorf("stored image = %q, want second", got)
	}

	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 1 {
		t.Errorf("expected a single file in store, found %d", len(entries))
	}
}

func TestOpenValidatesNames(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.Save(7, []byte("img")); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := store.Open("camera_7.jpg"); err != nil {
		t.Errorf("Open(camera_7.jpg) = %v", err)
	}

	tests := []struct {
		name string
		want error
	}{
		{"../etc/passwd.jpg", ErrInvalidImageName},
		{"camera_7.gif", ErrInvalidImageName},
		{"", ErrInvalidImageName},
		{".camera_7.abc.tmp", ErrInvalidImageName},
		{"camera_8.jpg", ErrImageNotFound},
	}
	for _, tt := range tests {
		if _, err := store.Open(tt.name); !errors.Is(err, tt.want) {
			t.Errorf("Open(%q) error = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestSweepTempFilesRemovesOnlyStaleTemps(t *testing.T) {
	store := newTestStore(t)

	stale := filepath.Join(store.Dir(), ".camera_1.old.tmp")
	fresh := filepath.Join(store.Dir(), ".camera_1.new.tmp")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("partial"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.Save(1, []byte("done")); err != nil {
		t.Fatal(err)
	}

	before := testutil.ToFloat64(metrics.SweptTempFiles)
	removed, err := store.SweepTempFiles(10 * time.Minute)
	if err != nil {
		t.Fatalf("SweepTempFiles: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if got := testutil.ToFloat64(metrics.SweptTempFiles) - before; got != 1 {
		t.Errorf("swept counter advanced by %v, want 1", got)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale temp file should be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh temp file should be kept")
	}
	if _, err := store.Open("camera_1.jpg"); err != nil {
		t.Errorf("canonical image should survive sweep: %v", err)
	}
}
