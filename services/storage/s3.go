// Package storagesvc publishes uploaded files to an S3 compatible bucket.
package storagesvc

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/fundamentals"
)

// objectPutter is the part of the S3 client the store uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Store struct {
	client objectPutter
	bucket string
	conf   core.StorageConfig
}

var _ fundamentals.ObjectStore = (*S3Store)(nil)

func NewS3Store(ctx context.Context, conf core.StorageConfig) (*S3Store, error) {
	if conf.Bucket == "" {
		return nil, errors.New("storage bucket required")
	}
	if conf.Region == "" {
		conf.Region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(conf.Region)}
	if conf.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AccessKeyID, conf.SecretKey, ""),
		))
	}
	awsConf, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	client := s3.NewFromConfig(awsConf, func(o *s3.Options) {
		o.UsePathStyle = conf.UsePathStyle
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
		}
	})
	return &S3Store{client: client, bucket: conf.Bucket, conf: conf}, nil
}

// Put uploads a publicly readable object and returns its URL.
func (s *S3Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", &core.UpstreamError{Service: "s3", Status: http.StatusBadGateway, Message: "file storage unavailable"}
	}
	return s.URL(key), nil
}

// URL is the public address of an object.
func (s *S3Store) URL(key string) string {
	switch {
	case s.conf.PublicURL != "":
		return s.conf.PublicURL + "/" + key
	case s.conf.Endpoint != "" || s.conf.UsePathStyle:
		endpoint := strings.TrimSuffix(s.conf.Endpoint, "/")
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", s.conf.Region)
		}
		return fmt.Sprintf("%s/%s/%s", endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.conf.Region, key)
}
