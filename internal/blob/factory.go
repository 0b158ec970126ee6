package blob

import (
	"context"
	"fmt"
	"strings"

	"housingcore/internal/config"
	"housingcore/internal/infra/blob/fs"
	"housingcore/internal/infra/blob/memory"
	"housingcore/internal/infra/blob/s3"
)

// Open selects a Store implementation from the blob section of the
// configuration. An empty driver selects the filesystem.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	driver := Driver(strings.ToLower(strings.TrimSpace(cfg.Driver)))
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		store, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := s3.New(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
