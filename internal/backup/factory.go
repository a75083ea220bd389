package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Driver names.
const (
	DriverFilesystem = "fs"
	DriverS3         = "s3"
)

// OpenTarget selects a Target using environment variables.
//
//	COFFEETIME_BACKUP_DRIVER: fs|s3 (default fs)
//	COFFEETIME_BACKUP_FS_ROOT: directory when driver=fs (default <dataDir>/backups)
//	(S3 variables documented in s3.go)
func OpenTarget(ctx context.Context, dataDir string) (Target, error) {
	driver := os.Getenv("COFFEETIME_BACKUP_DRIVER")
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		root := os.Getenv("COFFEETIME_BACKUP_FS_ROOT")
		if root == "" {
			root = filepath.Join(dataDir, "backups")
		}
		return NewFileTarget(root)
	case DriverS3:
		cfg, err := S3ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return NewS3Target(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown backup driver %s", driver)
	}
}
