package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const contentTypeJSON = "application/json"

var ErrEmptyBucket = errors.New("s3 bucket must not be empty")

// ObjectAPI is the part of *s3.Client the repository uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config addresses a bucket on AWS or on an S3 compatible server such as MinIO.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Repository keeps each document as one object below an optional key prefix.
type S3Repository struct {
	api    ObjectAPI
	bucket string
	prefix string
}

func NewS3Repository(api ObjectAPI, bucket, prefix string) (*S3Repository, error) {
	if bucket == "" {
		return nil, ErrEmptyBucket
	}

	return &S3Repository{api: api, bucket: bucket, prefix: prefix}, nil
}

// NewS3Client builds a client from cfg. Static credentials are used when given, the default
// AWS credential chain otherwise. A custom endpoint switches to path-style addressing.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (r *S3Repository) Load(ctx context.Context, name string) (*Node, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	out, err := r.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(name)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
		}
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}

	return Decode(data)
}

func (r *S3Repository) Save(ctx context.Context, name string, doc *Node) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	data, err := Encode(doc)
	if err != nil {
		return err
	}

	_, err = r.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeJSON),
	})

	return err
}

func (r *S3Repository) key(name string) string {
	if r.prefix == "" {
		return name
	}

	return path.Join(r.prefix, name)
}

var _ Repository = (*S3Repository)(nil)
