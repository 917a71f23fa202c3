package persistence

import (
	"context"
	"fmt"
	"io"
	"strings"

	"example.com/mapty/internal/config"
	"example.com/mapty/internal/persistence/file"
	"example.com/mapty/internal/persistence/mongo"
	"example.com/mapty/internal/persistence/postgres"
	"example.com/mapty/internal/persistence/s3"
	"example.com/mapty/internal/persistence/sqlite"
)

// Backend is a BlobStore holding connections that must be released.
type Backend interface {
	BlobStore
	io.Closer
}

// Open connects the backend named by cfg.Storage.Backend.
func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "", "file":
		return file.New(cfg.Storage.DataDir)
	case "sqlite":
		return sqlite.Open(cfg.Storage.DataDir)
	case "postgres":
		return postgres.Open(ctx, cfg.Postgres.URL)
	case "mongo":
		return mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	case "s3":
		return s3.New(ctx, s3.Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
