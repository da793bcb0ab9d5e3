package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/commercebi/config"
	"github.com/jordanlanch/commercebi/pkg/domain"
)

func TestLocalSink(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	sink, err := NewLocalSink(dir)
	require.NoError(t, err)

	t.Run("Success - put fully replaces", func(t *testing.T) {
		require.NoError(t, sink.Put(ctx, "sales_marketing.csv", []byte("order_id,campaign_name\n1,A\n2,B\n"), "text/csv"))
		require.NoError(t, sink.Put(ctx, "sales_marketing.csv", []byte("order_id,campaign_name\n3,C\n"), "text/csv"))

		got, err := sink.Get(ctx, "sales_marketing.csv")
		require.NoError(t, err)
		assert.Equal(t, "order_id,campaign_name\n3,C\n", string(got))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temp files left behind")
		assert.Equal(t, filepath.Join(dir, "sales_marketing.csv"), sink.Location("sales_marketing.csv"))
	})

	t.Run("Missing object is a missing source", func(t *testing.T) {
		_, err := sink.Get(ctx, "absent.csv")
		assert.True(t, domain.IsMissingSource(err))
	})

	t.Run("Keys cannot escape the directory", func(t *testing.T) {
		err := sink.Put(ctx, "../escape.csv", []byte("x"), "text/csv")
		assert.True(t, domain.IsValidation(err))
	})
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Sink(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	sink := NewS3SinkWithClient(fake, "bi-bucket", "commercebi/")

	require.NoError(t, sink.Put(ctx, "sales_marketing.csv", []byte("v1"), "text/csv"))
	require.NoError(t, sink.Put(ctx, "sales_marketing.csv", []byte("v2"), "text/csv"))

	got, err := sink.Get(ctx, "sales_marketing.csv")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
	assert.Equal(t, "text/csv", fake.types["commercebi/sales_marketing.csv"])
	assert.Equal(t, "s3://bi-bucket/commercebi/sales_marketing.csv", sink.Location("sales_marketing.csv"))

	_, err = sink.Get(ctx, "missing.csv")
	assert.True(t, domain.IsMissingSource(err))
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{StorageType: "local", StorageLocalPath: filepath.Join(t.TempDir(), "published")}
	sink, err := New(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalSink{}, sink)

	_, err = New(ctx, &config.Config{StorageType: "s3"})
	assert.True(t, domain.IsValidation(err))

	_, err = New(ctx, &config.Config{StorageType: "ftp"})
	assert.Error(t, err)
}
