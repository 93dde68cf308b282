package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"
)

func setupWriter(t *testing.T, path string) *RotatingWriter {
	t.Helper()
	rw, err := Setup(path)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	t.Cleanup(func() {
		rw.Close()
		log.SetOutput(os.Stderr)
	})
	return rw
}

func backups(t *testing.T, path string) []string {
	t.Helper()
	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	return matches
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	rw := setupWriter(t, path)

	chunk := bytes.Repeat([]byte("x"), 1024*1024)
	for i := 0; i < 3; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	if len(backups(t, path)) != 1 {
		t.Fatalf("expected 1 backup after rotation, got %v", backups(t, path))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat active file: %v", err)
	}
	if info.Size() > maxLogSize {
		t.Fatalf("active file still oversized after rotation: %d bytes", info.Size())
	}
}

func TestSetupArchivesOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")

	oversized := bytes.Repeat([]byte("y"), maxLogSize+1)
	if err := os.WriteFile(path, oversized, 0644); err != nil {
		t.Fatalf("seed oversized file: %v", err)
	}

	setupWriter(t, path)

	if len(backups(t, path)) != 1 {
		t.Fatalf("expected the oversized file archived, got %v", backups(t, path))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat active file: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected a fresh active file, got %d bytes", info.Size())
	}
}
