package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"code-analyzer/internal/shared/errkind"
	"code-analyzer/internal/shared/storage/object"
)

type api interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store implements ContentStore on Amazon S3. The container is the bucket name.
type Store struct {
	client   api
	kmsKeyID string
	maxBytes int64
}

// New creates a new S3-backed content store. Fetches read at most maxBytes+1
// bytes of any object.
func New(ctx context.Context, region, kmsKeyID string, maxBytes int64) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newWithClient(s3.NewFromConfig(cfg), kmsKeyID, maxBytes), nil
}

func newWithClient(client api, kmsKeyID string, maxBytes int64) *Store {
	return &Store{
		client:   client,
		kmsKeyID: strings.TrimSpace(kmsKeyID),
		maxBytes: maxBytes,
	}
}

// Fetch downloads an object.
func (s *Store) Fetch(ctx context.Context, bucket, key string) (object.Content, error) {
	op := fmt.Sprintf("s3 get object bucket=%s key=%s", bucket, key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return object.Content{}, classifyError(op, err)
	}
	defer out.Body.Close()

	data, err := object.ReadLimited(out.Body, s.maxBytes)
	if err != nil {
		if ctxErr := object.ContextError(op, err); ctxErr != nil {
			return object.Content{}, ctxErr
		}
		return object.Content{}, errkind.New(errkind.Transient, op, fmt.Errorf("read body: %w", err))
	}

	size := int64(len(data))
	if reported := aws.ToInt64(out.ContentLength); reported > size {
		size = reported
	}
	contentType := aws.ToString(out.ContentType)
	if contentType == "" || contentType == "binary/octet-stream" {
		contentType = object.SniffContentType(data)
	}

	return object.Content{
		Bytes:        data,
		SizeBytes:    size,
		ContentType:  contentType,
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// Put uploads data under the exact key and returns it.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte, opts object.PutOptions) (string, error) {
	op := fmt.Sprintf("s3 put object bucket=%s key=%s", bucket, key)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(opts.ContentType),
		Metadata:      opts.Metadata,
	}
	if s.kmsKeyID != "" {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(s.kmsKeyID)
	} else {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", classifyError(op, err)
	}
	return key, nil
}

func classifyError(op string, err error) error {
	if ctxErr := object.ContextError(op, err); ctxErr != nil {
		return ctxErr
	}

	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return errkind.New(errkind.NotFound, op, err)
	}
	var noSuchBucket *s3types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return errkind.New(errkind.NotFound, op, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return errkind.New(errkind.NotFound, op, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled", "AccountProblem":
			return errkind.New(errkind.AccessDenied, op, err)
		}
	}
	return errkind.New(errkind.Transient, op, err)
}

var _ object.ContentStore = (*Store)(nil)
