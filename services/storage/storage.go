package storagesvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

// New returns the object storage selected by conf.Driver.
func New(ctx context.Context, conf core.StorageConfig, logger core.Logger) (core.ObjectStorage, error) {
	switch conf.Driver {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "s3":
		s, err := NewS3Storage(conf, logger)
		if err != nil {
			return nil, err
		}
		if err = s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errors.Errorf("unknown storage driver %q", conf.Driver)
}
