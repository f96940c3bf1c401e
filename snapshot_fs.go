package docbase

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	snapshotDirPerm  = 0755
	snapshotFilePerm = 0644
)

// FileSnapshotStore persists each collection as one JSON file,
// {dir}/{collection}.json. Saves write to a temp file in the same
// directory and rename into place, so a crash mid-write never leaves a
// truncated snapshot behind.
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore creates the directory if needed.
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, snapshotDirPerm); err != nil {
		return nil, WithContext(ErrOperation, map[string]interface{}{
			"backend": "filesystem",
			"dir":     dir,
			"error":   err.Error(),
		})
	}
	return &FileSnapshotStore{dir: dir}, nil
}

func (s *FileSnapshotStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// Load reads the collection's snapshot file. A missing file loads empty.
func (s *FileSnapshotStore) Load(ctx context.Context, collection string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path(collection))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, WithContext(ErrOperation, map[string]interface{}{
			"backend":    "filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	var entities []Entity
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, WithContext(ErrInvalidData, map[string]interface{}{
			"backend":    "filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	return entities, nil
}

// Save atomically replaces the collection's snapshot file.
func (s *FileSnapshotStore) Save(ctx context.Context, collection string, entities []Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return WithContext(ErrInvalidData, map[string]interface{}{
			"backend":    "filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}

	tmp, err := os.CreateTemp(s.dir, collection+".*.tmp")
	if err != nil {
		return WithContext(ErrOperation, map[string]interface{}{
			"backend":    "filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return WithContext(ErrOperation, map[string]interface{}{
			"backend":    "filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return WithContext(ErrOperation, map[string]interface{}{
			"backend":    "filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	if err := os.Chmod(tmpName, snapshotFilePerm); err != nil {
		os.Remove(tmpName)
		return WithContext(ErrOperation, map[string]interface{}{
			"backend":    "filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	if err := os.Rename(tmpName, s.path(collection)); err != nil {
		os.Remove(tmpName)
		return WithContext(ErrOperation, map[string]interface{}{
			"backend":    "filesystem",
			"collection": collection,
			"error":      err.Error(),
		})
	}
	return nil
}
