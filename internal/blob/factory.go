package blob

import (
	"context"
	"fmt"

	"inspectcore/internal/config"
	"inspectcore/internal/infra/blob/fs"
	"inspectcore/internal/infra/blob/memory"
	"inspectcore/internal/infra/blob/s3"
)

// Open selects a Store implementation from the blob configuration.
//
//	driver fs (default): files under FSRoot (default ./protocols)
//	driver s3: bucket S3.Bucket; credentials from the default AWS chain
//	driver memory: process memory, lost on exit
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		store, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
