package audit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/platinummonkey/warden/pkg/observability"
)

// ArchiveConfig configures object storage for archived log batches.
type ArchiveConfig struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	BatchSize    int
}

// Archiver moves expired audit entries out of the live table and into
// object storage as NDJSON batches. Upload happens before deletion; a
// failed upload leaves the rows in place for the next sweep.
type Archiver struct {
	store  *Store
	client *s3.Client
	bucket string
	batch  int
	logger *observability.Logger
}

// NewArchiver creates an archiver against the configured bucket.
func NewArchiver(ctx context.Context, store *Store, cfg ArchiveConfig, logger *observability.Logger) (*Archiver, error) {
	var awsConfig aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// Static credentials (for MinIO or AWS with explicit keys)
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)),
		)
	} else {
		// Default credential chain (IAM roles, env vars, etc.)
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 1000
	}

	return &Archiver{
		store:  store,
		client: client,
		bucket: cfg.Bucket,
		batch:  batch,
		logger: logger,
	}, nil
}

// ArchiveBefore uploads all entries older than the cutoff as NDJSON objects
// and then deletes them. It returns the number of entries archived.
func (a *Archiver) ArchiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0

	for {
		entries, err := a.store.ListOlderThan(ctx, cutoff, a.batch)
		if err != nil {
			return total, fmt.Errorf("failed to list expired entries: %w", err)
		}
		if len(entries) == 0 {
			return total, nil
		}

		data, err := exportNDJSON(entries)
		if err != nil {
			return total, fmt.Errorf("failed to encode archive batch: %w", err)
		}

		key := a.objectKey(cutoff, entries)
		if err := a.putObject(ctx, key, data); err != nil {
			return total, err
		}

		lastID := entries[len(entries)-1].ID
		if err := a.store.DeleteUpTo(ctx, cutoff, lastID); err != nil {
			return total, fmt.Errorf("failed to delete archived entries: %w", err)
		}

		total += len(entries)
		a.logger.WithFields(map[string]interface{}{
			"key":   key,
			"count": len(entries),
		}).Info("archived audit log batch")

		if len(entries) < a.batch {
			return total, nil
		}
	}
}

// objectKey builds a date-partitioned key that is stable for a given batch,
// so a retried upload after a failed delete overwrites rather than duplicates.
func (a *Archiver) objectKey(cutoff time.Time, entries []*Entry) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d-%d", entries[0].ID, entries[len(entries)-1].ID)))
	return fmt.Sprintf("audit-logs/%s/batch-%s.ndjson",
		cutoff.UTC().Format("2006/01/02"),
		hex.EncodeToString(hash[:8]))
}

func (a *Archiver) putObject(ctx context.Context, key string, data []byte) error {
	hash := sha256.Sum256(data)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
		Metadata: map[string]string{
			"checksum-sha256": hex.EncodeToString(hash[:]),
		},
	})

	if err != nil {
		return fmt.Errorf("failed to upload archive batch: %w", err)
	}

	return nil
}

// HealthCheck verifies bucket connectivity.
func (a *Archiver) HealthCheck(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})

	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}

	return nil
}
