package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Target stores backups in a single S3 bucket (AWS or MinIO).
type S3Target struct {
	client *s3.Client
	bucket string
}

// S3Config holds explicit construction parameters.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional, e.g. a MinIO URL
	PathStyle bool
}

// Environment variables:
//
//	COFFEETIME_BACKUP_S3_BUCKET=<bucket> (required)
//	COFFEETIME_BACKUP_S3_REGION=<region> (default us-east-1)
//	COFFEETIME_BACKUP_S3_ENDPOINT=<url> (optional)
//	COFFEETIME_BACKUP_S3_PATH_STYLE=true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY (optional, default chain otherwise)

// NewS3Target creates an S3 target from cfg.
func NewS3Target(ctx context.Context, cfg S3Config) (*S3Target, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Target{client: client, bucket: cfg.Bucket}, nil
}

// S3ConfigFromEnv reads the COFFEETIME_BACKUP_S3_* variables.
func S3ConfigFromEnv() (S3Config, error) {
	bucket := os.Getenv("COFFEETIME_BACKUP_S3_BUCKET")
	if bucket == "" {
		return S3Config{}, fmt.Errorf("COFFEETIME_BACKUP_S3_BUCKET required for s3 driver")
	}
	return S3Config{
		Bucket:    bucket,
		Region:    os.Getenv("COFFEETIME_BACKUP_S3_REGION"),
		Endpoint:  os.Getenv("COFFEETIME_BACKUP_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("COFFEETIME_BACKUP_S3_PATH_STYLE"), "true"),
	}, nil
}

func (t *S3Target) Driver() string { return DriverS3 }

func (t *S3Target) Put(ctx context.Context, key string, r io.Reader) (Object, error) {
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &t.bucket,
		Key:         &key,
		Body:        r,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to put %s: %w", key, err)
	}
	head, err := t.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &t.bucket, Key: &key})
	if err != nil {
		return Object{Key: key}, nil
	}
	return Object{Key: key, Size: aws.ToInt64(head.ContentLength), LastModified: aws.ToTime(head.LastModified)}, nil
}

func (t *S3Target) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &t.bucket, Key: &key})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return out.Body, nil
}

func (t *S3Target) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	var token *string
	for {
		out, err := t.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: &t.bucket, Prefix: &prefix, ContinuationToken: token})
		if err != nil {
			return nil, fmt.Errorf("failed to list backups: %w", err)
		}
		for _, obj := range out.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}
