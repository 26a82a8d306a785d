/*
Package storage reads moderation assets from S3-compatible object storage.
*/
package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when the requested key does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// MaxObjectBytes bounds the size of an object read into memory.
const MaxObjectBytes = 4 << 20

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Enabled reports whether enough is configured to reach a bucket.
func (c ServiceConfig) Enabled() bool {
	return c.S3BucketName != "" && c.S3Endpoint != ""
}

// StorageService defines the public interface for the object storage service.
type StorageService interface {
	// GetObject returns the body of the object at key.
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// NewStorageService is the factory function for StorageService.
// Currently, only S3 compatible implementations are supported.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	return newS3Client(ctx, cfg)
}
