package docbase

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestEncryptedFileSnapshotStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewEncryptedFileSnapshotStore(dir, testKey())
	if err != nil {
		t.Fatalf("NewEncryptedFileSnapshotStore failed: %v", err)
	}

	entities := []Entity{{"id": "1", "secret": "hunter2"}}
	if err := store.Save(ctx, "vault", entities); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "vault")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0]["secret"] != "hunter2" {
		t.Fatalf("round trip lost data: %v", loaded)
	}

	// Plaintext must not appear on disk.
	raw, err := os.ReadFile(filepath.Join(dir, "vault.json.enc"))
	if err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}
	if bytes.Contains(raw, []byte("hunter2")) {
		t.Error("plaintext found in encrypted snapshot")
	}
}

func TestEncryptedFileSnapshotStore_WrongKeyFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, _ := NewEncryptedFileSnapshotStore(dir, testKey())
	if err := store.Save(ctx, "vault", []Entity{{"id": "1"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	otherKey := testKey()
	otherKey[0] ^= 0xff
	other, _ := NewEncryptedFileSnapshotStore(dir, otherKey)
	if _, err := other.Load(ctx, "vault"); err == nil {
		t.Fatal("expected decryption failure with wrong key")
	}
}

func TestEncryptedFileSnapshotStore_KeyLength(t *testing.T) {
	_, err := NewEncryptedFileSnapshotStore(t.TempDir(), []byte("short"))
	if err == nil {
		t.Fatal("expected error for non-32-byte key")
	}
}
