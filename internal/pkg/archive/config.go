package archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/EventFox/internal/pkg/env"
)

// Config holds the S3 settings of the ledger archive.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads the archive configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-west-001"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnvBool("S3_ARCHIVE_ENABLED", false),
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the ledger archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the ledger archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the ledger archive is enabled")
		}
	}

	return config, nil
}

func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// SnapshotKey builds the object key of a ledger snapshot.
// Format: ledger/<env>/YYYY/MM/<start>_<end>_<unix>.json
func SnapshotKey(environment string, start, end, takenAt time.Time) string {
	return fmt.Sprintf("ledger/%s/%04d/%02d/%s_%s_%d.json",
		environment,
		takenAt.Year(), int(takenAt.Month()),
		start.Format("2006-01-02"), end.Format("2006-01-02"),
		takenAt.Unix())
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}
