package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/mailmerge/internal/config"
	"github.com/redis/go-redis/v9"
)

// Document keys. The provider key matches the legacy config/email_provider.json file.
const (
	ProviderKey = "email_provider"
	CampaignKey = "campaign"
)

// Backend persists JSON documents by key. Get returns domain.ErrNotFound
// when the key has never been written.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Storage bundles the configured backend with the connections it opened,
// so the dispatch lock can share them.
type Storage struct {
	Backend Backend
	DB      *sql.DB
	Redis   *redis.Client
}

// Open builds the backend selected by cfg.Type.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	switch cfg.Type {
	case "", config.StorageLocal:
		return &Storage{Backend: NewFileBackend(cfg.LocalPath)}, nil

	case config.StoragePostgres:
		db, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b := NewPostgresBackend(db)
		if err := b.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &Storage{Backend: b, DB: db}, nil

	case config.StorageRedis:
		client, err := OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return &Storage{Backend: NewRedisBackend(client), Redis: client}, nil

	case config.StorageS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("storage: s3_bucket is required for s3 storage")
		}
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Storage{Backend: NewS3Backend(newS3Client(awsCfg), cfg.S3Bucket, cfg.S3Prefix)}, nil

	case config.StorageDynamoDB:
		if cfg.DynamoDBTable == "" {
			return nil, fmt.Errorf("storage: dynamodb_table is required for dynamodb storage")
		}
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Storage{Backend: NewDynamoBackend(newDynamoClient(awsCfg), cfg.DynamoDBTable)}, nil

	default:
		return nil, fmt.Errorf("storage: unknown type %q", cfg.Type)
	}
}

// Close releases any connections Open created.
func (s *Storage) Close() error {
	var firstErr error
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			firstErr = err
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
