// Package archive copies completed uploads to an S3-compatible bucket.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/stableftp/internal/cryptox"
	"github.com/dmitrijs2005/stableftp/internal/logging"
)

// KeyPrefix is prepended to every object key.
const KeyPrefix = "uploads/"

// DigestMetadataKey names the object metadata entry holding the BLAKE2b-256
// digest of the uploaded file.
const DigestMetadataKey = "blake2b-256"

// Settings describe the target bucket. Endpoint may be empty for AWS itself;
// set it for MinIO and friends.
type Settings struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	client objectPutter
	bucket string
	logger logging.Logger
}

// NewS3Archiver builds an S3 client with static credentials. No request is
// made until the first Archive call.
func NewS3Archiver(ctx context.Context, s Settings, l logging.Logger) (*S3Archiver, error) {
	if s.Bucket == "" {
		return nil, errors.New("s3 bucket is not set")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(s.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newArchiver(client, s.Bucket, l), nil
}

func newArchiver(client objectPutter, bucket string, l logging.Logger) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, logger: l.With("module", "archive")}
}

// Key returns the object key a file named name is stored under.
func Key(name string) string {
	return KeyPrefix + name
}

// Archive uploads the file at path as Key(name). The object carries the
// file digest in its metadata.
func (a *S3Archiver) Archive(ctx context.Context, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	digest, err := cryptox.FileDigest(f)
	if err != nil {
		return fmt.Errorf("digest %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind %s: %w", path, err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(Key(name)),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
		Metadata:      map[string]string{DigestMetadataKey: digest},
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, Key(name), err)
	}

	a.logger.Debug(ctx, "object stored", "bucket", a.bucket, "key", Key(name), "size", st.Size())
	return nil
}
