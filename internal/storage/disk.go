package storage

import (
	"os"
	"path/filepath"
)

// DiskStore writes blobs to the local filesystem. Paths are resolved under
// root when one is configured, otherwise used as given.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

func (s *DiskStore) fullPath(path string) string {
	if s.root == "" {
		return path
	}
	return filepath.Join(s.root, path)
}

func (s *DiskStore) Write(path string, data []byte) error {
	fileName := s.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(fileName), 0o755); err != nil {
		return err
	}
	return os.WriteFile(fileName, data, 0o644)
}

func (s *DiskStore) Read(path string) ([]byte, error) {
	return os.ReadFile(s.fullPath(path))
}
