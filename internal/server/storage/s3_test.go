package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    map[string]string
	deletes []string
	pages   [][]types.Object
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, _ := io.ReadAll(in.Body)
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[aws.ToString(in.Key)] = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	idx := 0
	if in.ContinuationToken != nil {
		idx = int(aws.ToString(in.ContinuationToken)[0] - '0')
	}
	out := &s3.ListObjectsV2Output{Contents: f.pages[idx]}
	if idx+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(string(rune('0' + idx + 1)))
	}
	return out, nil
}

// onlyReader hides Seek from the wrapped reader.
type onlyReader struct{ io.Reader }

func TestS3Store_Put(t *testing.T) {
	f := &fakeS3{}
	s := &S3Store{client: f, bucket: "b", prefix: "donations/"}

	n, err := s.Put(context.Background(), "01A.jpg", "image/jpeg", onlyReader{strings.NewReader("hello")})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", f.puts["donations/01A.jpg"])

	_, err = s.Put(context.Background(), "../x", "", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestS3Store_PutError(t *testing.T) {
	s := &S3Store{client: &fakeS3{putErr: errors.New("503")}, bucket: "b"}
	_, err := s.Put(context.Background(), "01A.jpg", "", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put object")
}

func TestS3Store_Delete(t *testing.T) {
	f := &fakeS3{}
	s := &S3Store{client: f, bucket: "b", prefix: "p/"}
	require.NoError(t, s.Delete(context.Background(), "01A.jpg"))
	assert.Equal(t, []string{"p/01A.jpg"}, f.deletes)
}

func TestS3Store_ListPaginates(t *testing.T) {
	now := time.Now()
	f := &fakeS3{pages: [][]types.Object{
		{{Key: aws.String("p/a.jpg"), LastModified: &now}},
		{{Key: aws.String("p/b.png"), LastModified: &now}, {Key: aws.String("p/nested/c.png")}},
	}}
	s := &S3Store{client: f, bucket: "b", prefix: "p/"}

	objs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "a.jpg", objs[0].Name)
	assert.Equal(t, "b.png", objs[1].Name)
	assert.Equal(t, now, objs[1].ModTime)
}

func TestNewS3Store_AppliesOptions(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-west-1", lo.Region)
		return aws.Config{}, nil
	}
	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &fakeS3{}
	}

	s, err := NewS3Store(context.Background(), S3Options{Region: "eu-west-1", Endpoint: "http://minio:9000", Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", s.bucket)
	assert.Equal(t, "http://minio:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Store_ConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := NewS3Store(context.Background(), S3Options{})
	require.Error(t, err)
}
