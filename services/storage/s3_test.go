package storagesvc

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/askante/core"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestURL(t *testing.T) {
	tests := []struct {
		name string
		conf core.StorageConfig
		want string
	}{
		{
			name: "virtual hosted",
			conf: core.StorageConfig{Bucket: "media", Region: "af-south-1"},
			want: "https://media.s3.af-south-1.amazonaws.com/sys/a.png",
		},
		{
			name: "custom endpoint",
			conf: core.StorageConfig{Bucket: "media", Region: "us-east-1", Endpoint: "http://minio:9000/", UsePathStyle: true},
			want: "http://minio:9000/media/sys/a.png",
		},
		{
			name: "path style on aws",
			conf: core.StorageConfig{Bucket: "media", Region: "eu-west-1", UsePathStyle: true},
			want: "https://s3.eu-west-1.amazonaws.com/media/sys/a.png",
		},
		{
			name: "cdn",
			conf: core.StorageConfig{Bucket: "media", Region: "eu-west-1", PublicURL: "https://cdn.askante.net"},
			want: "https://cdn.askante.net/sys/a.png",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &S3Store{bucket: tc.conf.Bucket, conf: tc.conf}
			assert.Equal(t, tc.want, s.URL("sys/a.png"))
		})
	}
}

func TestPut(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{}
	conf := core.StorageConfig{Bucket: "media", Region: "af-south-1"}
	s := &S3Store{client: fake, bucket: conf.Bucket, conf: conf}

	url, err := s.Put(ctx, "sys/a.png", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "https://media.s3.af-south-1.amazonaws.com/sys/a.png", url)
	assert.Equal(t, "media", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "sys/a.png", aws.ToString(fake.in.Key))
	assert.Equal(t, "image/png", aws.ToString(fake.in.ContentType))
	assert.Equal(t, types.ObjectCannedACLPublicRead, fake.in.ACL)
	assert.Equal(t, []byte("png"), fake.body)

	fake.err = errors.New("boom")
	_, err = s.Put(ctx, "sys/b.png", "image/png", nil)
	var uerr *core.UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, 502, uerr.Status)
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), core.StorageConfig{})
	assert.Error(t, err)
}
