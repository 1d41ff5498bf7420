package storagesvc

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

const defaultPresignExpiration = 15 * time.Minute

// S3Storage stores objects in an S3-compatible bucket (AWS S3, MinIO, ...).
type S3Storage struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	presignExpiration time.Duration
	logger            core.Logger
}

var _ core.ObjectStorage = (*S3Storage)(nil)

func NewS3Storage(conf core.StorageConfig, logger core.Logger) (*S3Storage, error) {
	if conf.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if conf.AccessKey == "" || conf.SecretKey == "" {
		return nil, errors.New("storage credentials are required")
	}

	region := conf.Region
	if region == "" {
		region = "us-east-1"
	}
	awsConf, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, "")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}

	endpoint := conf.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if conf.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	client := s3.NewFromConfig(awsConf, func(o *s3.Options) {
		o.UsePathStyle = conf.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	expiration := conf.PresignExpiration
	if expiration <= 0 {
		expiration = defaultPresignExpiration
	}
	return &S3Storage{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            conf.Bucket,
		presignExpiration: expiration,
		logger:            logger,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return errors.Wrap(err, "checking bucket")
	}

	s.logger.Info(fmt.Sprintf("creating storage bucket %q", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return errors.Wrap(err, "creating bucket")
	}
	return nil
}

func (s *S3Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	return errors.Wrapf(err, "putting object %s", key)
}

func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, core.ErrObjectNotFound
		}
		return nil, errors.Wrapf(err, "getting object %s", key)
	}
	return out.Body, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return errors.Wrapf(err, "deleting object %s", key)
}

func (s *S3Storage) DownloadURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = s.presignExpiration
	}
	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if filename != "" {
		in.ResponseContentDisposition = aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	req, err := s.presignClient.PresignGetObject(ctx, in, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", errors.Wrapf(err, "presigning object %s", key)
	}
	return req.URL, nil
}
