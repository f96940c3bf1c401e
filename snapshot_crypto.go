package docbase

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EncryptedFileSnapshotStore persists each collection as one AES-256-GCM
// encrypted JSON file, {dir}/{collection}.json.enc. Same atomic
// temp-and-rename write discipline as FileSnapshotStore; the nonce is
// random per write and prepended to the ciphertext.
type EncryptedFileSnapshotStore struct {
	dir string
	key []byte // 32 bytes for AES-256
}

// NewEncryptedFileSnapshotStore creates the directory if needed. Key
// must be exactly 32 bytes for AES-256.
func NewEncryptedFileSnapshotStore(dir string, key []byte) (*EncryptedFileSnapshotStore, error) {
	if len(key) != 32 {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"expected_key_length": 32,
			"actual_key_length":   len(key),
			"reason":              "AES-256 requires 32-byte key",
		})
	}
	if err := os.MkdirAll(dir, snapshotDirPerm); err != nil {
		return nil, WithContext(ErrOperation, map[string]interface{}{
			"backend": "encrypted-filesystem",
			"dir":     dir,
			"error":   err.Error(),
		})
	}
	return &EncryptedFileSnapshotStore{dir: dir, key: key}, nil
}

func (s *EncryptedFileSnapshotStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".json.enc")
}

// Load decrypts and decodes the collection's snapshot file. A missing
// file loads empty.
func (s *EncryptedFileSnapshotStore) Load(ctx context.Context, collection string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ciphertext, err := os.ReadFile(s.path(collection))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, WithContext(ErrOperation, map[string]interface{}{
			"backend":    "encrypted-filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	plaintext, err := s.decrypt(ciphertext)
	if err != nil {
		return nil, WithContext(ErrInvalidData, map[string]interface{}{
			"backend":    "encrypted-filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	var entities []Entity
	if err := json.Unmarshal(plaintext, &entities); err != nil {
		return nil, WithContext(ErrInvalidData, map[string]interface{}{
			"backend":    "encrypted-filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	return entities, nil
}

// Save encodes, encrypts and atomically replaces the snapshot file.
func (s *EncryptedFileSnapshotStore) Save(ctx context.Context, collection string, entities []Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	plaintext, err := json.Marshal(entities)
	if err != nil {
		return WithContext(ErrInvalidData, map[string]interface{}{
			"backend":    "encrypted-filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	ciphertext, err := s.encrypt(plaintext)
	if err != nil {
		return WithContext(ErrOperation, map[string]interface{}{
			"backend":    "encrypted-filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}

	tmp, err := os.CreateTemp(s.dir, collection+".*.tmp")
	if err != nil {
		return WithContext(ErrOperation, map[string]interface{}{
			"backend":    "encrypted-filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(ciphertext); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return WithContext(ErrOperation, map[string]interface{}{
			"backend":    "encrypted-filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return WithContext(ErrOperation, map[string]interface{}{
			"backend":    "encrypted-filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	if err := os.Chmod(tmpName, snapshotFilePerm); err != nil {
		os.Remove(tmpName)
		return WithContext(ErrOperation, map[string]interface{}{
			"backend":    "encrypted-filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	if err := os.Rename(tmpName, s.path(collection)); err != nil {
		os.Remove(tmpName)
		return WithContext(ErrOperation, map[string]interface{}{
			"backend":    "encrypted-filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	return nil
}

// encrypt uses AES-256-GCM with a random nonce prepended to the output.
func (s *EncryptedFileSnapshotStore) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *EncryptedFileSnapshotStore) decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, WithContext(ErrInvalidData, map[string]interface{}{
			"reason":     "ciphertext too short",
			"min_length": nonceSize,
			"actual":     len(ciphertext),
		})
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
