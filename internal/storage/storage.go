// Package storage persists small settings values (such as the feed blacklist)
// under string keys. Backends cover an in-process map, JSON files on disk,
// Postgres, SQLite, Redis, S3 and DynamoDB; New picks one from configuration.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/feed-aggregator/internal/config"
	"github.com/redis/go-redis/v9"
)

// Store is a key/value settings store. Values are opaque bytes.
type Store interface {
	// Get returns the value for key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// SetIfAbsent stores value only when key does not exist yet.
	// It reports whether this call created the key.
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries already-open connections a backend may reuse.
// Nil AWS clients are built from the storage config.
type Deps struct {
	DB       *sql.DB
	Redis    *redis.Client
	S3       S3API
	DynamoDB DynamoDBAPI
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validTable(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("storage: invalid table name %q", name)
	}
	return nil
}

// New builds the Store selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig, deps Deps) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil

	case "local":
		return NewLocalStore(cfg.LocalPath)

	case "postgres":
		if deps.DB == nil {
			return nil, errors.New("storage: postgres backend needs a database connection")
		}
		return NewPostgresStore(deps.DB, cfg.Table)

	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath, cfg.Table)

	case "redis":
		if deps.Redis == nil {
			return nil, errors.New("storage: redis backend needs redis.url")
		}
		return NewRedisStore(deps.Redis, cfg.RedisPrefix), nil

	case "s3":
		if cfg.S3Bucket == "" {
			return nil, errors.New("storage: s3 backend needs storage.s3_bucket")
		}
		client := deps.S3
		if client == nil {
			awsCfg, err := NewAWSConfig(ctx, cfg)
			if err != nil {
				return nil, err
			}
			client = s3.NewFromConfig(awsCfg)
		}
		return NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix), nil

	case "dynamodb":
		if cfg.DynamoDBTable == "" {
			return nil, errors.New("storage: dynamodb backend needs storage.dynamodb_table")
		}
		client := deps.DynamoDB
		if client == nil {
			awsCfg, err := NewAWSConfig(ctx, cfg)
			if err != nil {
				return nil, err
			}
			client = dynamodb.NewFromConfig(awsCfg)
		}
		return NewDynamoStore(client, cfg.DynamoDBTable), nil

	default:
		return nil, fmt.Errorf("storage: unknown type %q", cfg.Type)
	}
}
