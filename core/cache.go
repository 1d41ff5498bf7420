package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrCacheMiss = errors.New("cache miss")

type (
	// Cache is a string key/value store with expiration.
	Cache interface {
		// Get returns ErrCacheMiss when the key is absent or expired.
		Get(ctx context.Context, key string) (string, error)
		Set(ctx context.Context, key, value string, ttl time.Duration) error
		Delete(ctx context.Context, keys ...string) error
	}

	// TokenBlacklist holds revoked token ids until they expire.
	TokenBlacklist interface {
		Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
		IsRevoked(ctx context.Context, tokenID string) (bool, error)
	}
)
