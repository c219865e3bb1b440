package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-chat/pkg/logger"
)

type object struct {
	data     []byte
	modified time.Time
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
	putErr  error
	lastPfx string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]object)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = object{data: data, modified: time.Now()}
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, aws.ToString(in.Key))
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPfx = aws.ToString(in.Prefix)
	out := &s3.ListObjectsV2Output{}
	for key, obj := range f.objects {
		if !strings.HasPrefix(key, f.lastPfx) {
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			LastModified: aws.Time(obj.modified),
		})
	}
	return out, nil
}

func TestS3Storage_StoreGetDelete(t *testing.T) {
	client := newFakeS3()
	s := NewWithClient(client, "bucket", "uploads/", logger.NewTestLogger())
	ctx := context.Background()

	key, err := s.Store(ctx, strings.NewReader("payload"), "uploads/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "uploads/doc.pdf", key)

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.Error(t, err)
}

func TestS3Storage_StoreError(t *testing.T) {
	client := newFakeS3()
	client.putErr = errors.New("denied")
	log := logger.NewTestLogger()
	s := NewWithClient(client, "bucket", "", log)

	_, err := s.Store(context.Background(), strings.NewReader("x"), "k")
	assert.ErrorIs(t, err, client.putErr)
	assert.True(t, log.Has("ERROR", "Failed to store file"))
}

func TestS3Storage_CleanupBefore(t *testing.T) {
	client := newFakeS3()
	now := time.Now()
	client.objects["uploads/old.png"] = object{modified: now.Add(-2 * time.Hour)}
	client.objects["uploads/new.png"] = object{modified: now}
	client.objects["other/old.png"] = object{modified: now.Add(-2 * time.Hour)}

	s := NewWithClient(client, "bucket", "uploads/", logger.NewTestLogger())
	require.NoError(t, s.CleanupBefore(context.Background(), now.Add(-time.Hour)))

	assert.Equal(t, "uploads/", client.lastPfx)
	assert.NotContains(t, client.objects, "uploads/old.png")
	assert.Contains(t, client.objects, "uploads/new.png")
	assert.Contains(t, client.objects, "other/old.png")
}
