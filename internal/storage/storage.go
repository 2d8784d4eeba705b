package storage

import (
	"fmt"

	"github.com/pkolev/texturevault/internal/config"
)

// BlobStore is the external file collaborator used by image publishing. Write
// replaces the file at path with data; Read returns the file's full contents.
type BlobStore interface {
	Write(path string, data []byte) error
	Read(path string) ([]byte, error)
}

// New builds a BlobStore from config: a local disk store by default, or an S3
// bucket when STORAGE_DRIVER=s3.
func New(cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Driver {
	case "", "disk":
		return NewDiskStore(cfg.DiskRoot), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 storage driver requires a bucket")
		}
		return NewS3Store(cfg.S3Bucket, cfg.S3Region)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
