package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteOpenRemove(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "videos/job-1/out.mp4", []byte("payload"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "videos/job-1/out.mp4" {
		t.Fatalf("canonical key %q", key)
	}

	f, size, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "payload" || size != int64(len("payload")) {
		t.Fatalf("read %q (size %d)", data, size)
	}

	if err := store.Remove(ctx, key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, _, err := store.Open(ctx, key); err == nil {
		t.Fatal("removed file still opens")
	}
	// Removing again is not an error.
	if err := store.Remove(ctx, key); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Write(context.Background(), "a/b.mp4", []byte("x")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "a"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "b.mp4" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"videos/a.mp4", "videos/a.mp4", false},
		{"./videos/a.mp4", "videos/a.mp4", false},
		{"/videos/a.mp4", "videos/a.mp4", false},
		{"videos//a.mp4", "videos/a.mp4", false},
		{"../escape.mp4", "", true},
		{"videos/../../escape.mp4", "", true},
		{"", "", true},
		{"   ", "", true},
		{".", "", true},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.key)
		if tc.wantErr {
			if err == nil {
				t.Errorf("sanitizeKey(%q) should fail, got %q", tc.key, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("sanitizeKey(%q): %v", tc.key, err)
			continue
		}
		if got != tc.want {
			t.Errorf("sanitizeKey(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore("  "); err == nil {
		t.Fatal("empty base path should fail")
	}
}
