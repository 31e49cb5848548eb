package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

// fakeDownloader is a minimal in-memory downloaderAPI serving ranged
// reads out of a byte slice, standing in for a real S3 object.
type fakeDownloader struct {
	body     []byte
	headErr  error
	getErr   error
	gotRange string
}

func (f *fakeDownloader) HeadObject(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(f.body)))}, nil
}

func (f *fakeDownloader) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.gotRange = aws.ToString(in.Range)

	var start, end int
	if _, err := fmt.Sscanf(f.gotRange, "bytes=%d-%d", &start, &end); err != nil {
		return nil, err
	}
	if end >= len(f.body) {
		end = len(f.body) - 1
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body[start : end+1]))}, nil
}

func TestSourceReadAtReturnsExactRange(t *testing.T) {
	fake := &fakeDownloader{body: []byte("the quick brown fox jumps over the lazy dog")}
	src, err := openSourceWithClient(context.Background(), Config{Bucket: "b", Key: "k"}, fake)
	require.NoError(t, err)
	require.Equal(t, int64(len(fake.body)), src.Size())

	buf := make([]byte, 5)
	n, err := src.ReadAt(buf, 4)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "quick", string(buf))
	require.Equal(t, "bytes=4-8", fake.gotRange)
}

func TestSourceReadAtPastEndReturnsEOF(t *testing.T) {
	fake := &fakeDownloader{body: []byte("short")}
	src, err := openSourceWithClient(context.Background(), Config{Bucket: "b", Key: "k"}, fake)
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = src.ReadAt(buf, int64(len(fake.body)))
	require.ErrorIs(t, err, io.EOF)
}

func TestSourceReadAtTruncatedNearEndReturnsEOF(t *testing.T) {
	fake := &fakeDownloader{body: []byte("short")}
	src, err := openSourceWithClient(context.Background(), Config{Bucket: "b", Key: "k"}, fake)
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := src.ReadAt(buf, 2)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 3, n) // "ort"
}

func TestOpenSourceWithClientPropagatesHeadError(t *testing.T) {
	fake := &fakeDownloader{headErr: errors.New("no such object")}
	_, err := openSourceWithClient(context.Background(), Config{Bucket: "b", Key: "k"}, fake)
	require.Error(t, err)
}
