// Package archive persists batch run reports as JSON objects, for audit and
// for replaying filter test runs.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/locusflow/locusflow/pkg/errors"
	"github.com/locusflow/locusflow/pkg/filter"
)

// S3Config configures the S3 report archive.
type S3Config struct {
	// Bucket is the S3 bucket for storing run archives
	Bucket string

	// Prefix is prepended to all archive keys (e.g., "runs/")
	Prefix string

	// Region is the AWS region
	Region string

	// Endpoint overrides the default S3 endpoint (for S3-compatible services)
	Endpoint string

	// Credentials (optional - uses default chain if not provided)
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// UsePathStyle forces path-style addressing (for MinIO, LocalStack)
	UsePathStyle bool

	// Timeout for S3 operations
	Timeout time.Duration

	// StorageClass for archive objects (default: STANDARD)
	StorageClass types.StorageClass
}

// DefaultS3Config returns sensible defaults.
func DefaultS3Config(bucket string) S3Config {
	return S3Config{
		Bucket:       bucket,
		Prefix:       "runs/",
		Timeout:      30 * time.Second,
		StorageClass: types.StorageClassStandard,
	}
}

// S3Archive stores run records in S3.
type S3Archive struct {
	cfg    S3Config
	client *s3.Client
}

// RunRecord is the archived shape of one batch run.
type RunRecord struct {
	RunID      string           `json:"run_id"`
	FilterName string           `json:"filter_name"`
	StartedAt  time.Time        `json:"started_at"`
	LocusIDs   []int64          `json:"locus_ids"`
	Reports    []*filter.Report `json:"reports"`
	Failures   []string         `json:"failures,omitempty"`
}

// NewS3Archive creates a new S3 archive.
func NewS3Archive(ctx context.Context, cfg S3Config) (*S3Archive, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Archive{
		cfg:    cfg,
		client: s3.NewFromConfig(awsCfg, s3Opts...),
	}, nil
}

// key returns the S3 key for a run ID.
func (a *S3Archive) key(runID string) string {
	return a.cfg.Prefix + runID + ".json"
}

// Store uploads the run record.
func (a *S3Archive) Store(ctx context.Context, record *RunRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, errors.CodeArchiveFailed, "run record encoding failed").
			WithContext("run_id", record.RunID)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(a.cfg.Bucket),
		Key:          aws.String(a.key(record.RunID)),
		Body:         bytes.NewReader(payload),
		ContentType:  aws.String("application/json"),
		StorageClass: a.cfg.StorageClass,
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeArchiveFailed, "run record upload failed").
			WithContext("run_id", record.RunID).
			WithContext("bucket", a.cfg.Bucket)
	}
	return nil
}

// Load fetches an archived run record by ID.
func (a *S3Archive) Load(ctx context.Context, runID string) (*RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.key(runID)),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeArchiveFailed, "run record download failed").
			WithContext("run_id", runID)
	}
	defer out.Body.Close()

	var record RunRecord
	if err := json.NewDecoder(out.Body).Decode(&record); err != nil {
		return nil, errors.Wrap(err, errors.CodeArchiveFailed, "run record decoding failed").
			WithContext("run_id", runID)
	}
	return &record, nil
}
