package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "recordings_"+randomSuffix())

		storage, err := NewLocalStorage(dir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if storage.Dir() != dir {
			t.Errorf("Dir() = %v, want %v", storage.Dir(), dir)
		}

		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage("")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "audioheuristics")
		if storage.Dir() != expected {
			t.Errorf("Dir() = %v, want %v", storage.Dir(), expected)
		}
	})
}

func TestLocalStorage_Delete(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes recording", func(t *testing.T) {
		path := writeRecording(t, storage.Dir(), "take.wav")

		if err := storage.Delete(ctx, path); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("file %s still exists", path)
		}
	})

	t.Run("reports missing recording", func(t *testing.T) {
		err := storage.Delete(ctx, filepath.Join(storage.Dir(), "missing.wav"))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		path := writeRecording(t, storage.Dir(), "kept.wav")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := storage.Delete(ctx, path)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("file should survive a cancelled delete: %v", err)
		}
	})
}

func TestLocalStorage_Archive(t *testing.T) {
	storage := setupTestStorage(t)

	_, err := storage.Archive(context.Background(), "/some/take.wav")
	if !errors.Is(err, ErrS3NotConfigured) {
		t.Errorf("expected ErrS3NotConfigured, got %v", err)
	}
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	storage, err := NewLocalStorage(filepath.Join(t.TempDir(), "recordings"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}

func writeRecording(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("RIFF data"), 0600); err != nil {
		t.Fatalf("failed to write recording: %v", err)
	}
	return path
}

func randomSuffix() string {
	return time.Now().Format("20060102150405.000000000")
}
