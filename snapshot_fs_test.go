package docbase

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSnapshotStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileSnapshotStore(dir)
	if err != nil {
		t.Fatalf("NewFileSnapshotStore failed: %v", err)
	}

	entities := []Entity{{"id": "1", "n": 1.5}}
	if err := store.Save(ctx, "items", entities); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "items")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID() != "1" {
		t.Fatalf("round trip lost data: %v", loaded)
	}

	// No temp files left behind.
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}

	info, err := os.Stat(filepath.Join(dir, "items.json"))
	if err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}
	if info.Mode().Perm() != snapshotFilePerm {
		t.Errorf("file mode = %v, want %o", info.Mode().Perm(), snapshotFilePerm)
	}
}

func TestFileSnapshotStore_MissingFileLoadsEmpty(t *testing.T) {
	store, err := NewFileSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSnapshotStore failed: %v", err)
	}
	loaded, err := store.Load(context.Background(), "never-saved")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty load, got %v", loaded)
	}
}

func TestFileSnapshotStore_CorruptFileFails(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileSnapshotStore(dir)
	if err := os.WriteFile(filepath.Join(dir, "items.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("seed corrupt file failed: %v", err)
	}
	if _, err := store.Load(context.Background(), "items"); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}
