package deltalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// S3 error codes that mean the caller was rejected regardless of HTTP status.
var s3AuthCodes = map[string]bool{
	"AccessDenied":          true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
}

// S3Storage serves s3:// locations.
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Storage creates a storage over bucket/prefix with an existing client.
func NewS3Storage(client *s3.Client, bucket, prefix string) *S3Storage {
	return &S3Storage{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// NewS3StorageFromLocation parses s3://bucket/prefix and builds a client from caps,
// loading the default AWS configuration when caps carries none.
func NewS3StorageFromLocation(ctx context.Context, location string, caps Capabilities) (*S3Storage, error) {
	bucket, prefix, err := bucketAndPrefix(location)
	if err != nil {
		return nil, err
	}

	var cfg aws.Config

	if caps.AWSConfig != nil {
		cfg = caps.AWSConfig.Copy()
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if caps.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(caps.S3Endpoint)
		}

		o.UsePathStyle = caps.S3PathStyle
	})

	return NewS3Storage(client, bucket, prefix), nil
}

// List implements Storage.
func (s *S3Storage) List(ctx context.Context, dir string) ([]Object, error) {
	fullPrefix := joinKey(s.prefix, dir) + "/"

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(fullPrefix),
		Delimiter: aws.String("/"),
	})

	var objects []Object

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.classify(fullPrefix, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, fullPrefix)

			if name == "" || strings.Contains(name, "/") {
				continue
			}

			objects = append(objects, Object{
				Name:    name,
				Path:    joinKey(dir, name),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	if len(objects) == 0 {
		return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, fullPrefix, ErrNotFound)
	}

	return objects, nil
}

// Open implements Storage.
func (s *S3Storage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	key := joinKey(s.prefix, path)

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.classify(key, err)
	}

	return output.Body, nil
}

func (s *S3Storage) classify(key string, err error) error {
	target := fmt.Sprintf("s3://%s/%s", s.bucket, key)

	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket

	if errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return fmt.Errorf("access %s: %w: %w", target, ErrNotFound, err)
	}

	status := 0

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && s3AuthCodes[apiErr.ErrorCode()] {
		return newAuthError(providerAWS, target, status, err)
	}

	if isAuthStatus(status) {
		return newAuthError(providerAWS, target, status, err)
	}

	return fmt.Errorf("access %s: %w", target, err)
}
