package cloud

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// downloaderAPI is the narrow slice of *s3.Client Source calls, mirroring
// uploaderAPI's seam over Sink's client so a fake can stand in for tests.
type downloaderAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Source adapts an S3 object to zipflow.Source via ranged GET requests,
// so the reader front-end can open archives without downloading them
// in full first. It mirrors the context-aware ReaderAt split the
// teacher's in-memory archive assembler uses for HTTP range serving,
// pointed at a single remote object instead of joined in-memory parts.
type Source struct {
	ctx    context.Context
	client downloaderAPI
	bucket string
	key    string
	size   int64
}

// OpenSource HEADs the object to learn its size and returns a Source
// ready for ranged reads.
func OpenSource(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("cloud: bucket and key are required")
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("cloud: loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return openSourceWithClient(ctx, cfg, client)
}

// openSourceWithClient builds a Source around an already-resolved
// downloaderAPI, split out from OpenSource so tests can inject a fake
// client without going through AWS credential/config resolution.
func openSourceWithClient(ctx context.Context, cfg Config, client downloaderAPI) (*Source, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(cfg.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("cloud: HEAD %s/%s: %w", cfg.Bucket, cfg.Key, err)
	}

	return &Source{ctx: ctx, client: client, bucket: cfg.Bucket, key: cfg.Key, size: aws.ToInt64(head.ContentLength)}, nil
}

// Size returns the object's length in bytes, as observed at Open time.
func (s *Source) Size() int64 { return s.size }

// ReadAt issues a ranged GET covering [off, off+len(p)) and fills p,
// matching io.ReaderAt semantics (full read or an error; p is only
// partially filled on io.EOF when the range runs past the object end).
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= s.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end >= s.size {
		end = s.size - 1
	}

	out, err := s.client.GetObject(s.ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return 0, fmt.Errorf("cloud: ranged GET %s/%s [%d-%d]: %w", s.bucket, s.key, off, end, err)
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, p[:end-off+1])
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, err
	}
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}
