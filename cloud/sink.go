package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/zipflow/zipflow"
)

const maxUploadRetries = 5

// uploaderAPI is the narrow slice of *s3.Client the upload worker
// actually calls, so tests can supply a fake in place of a real S3
// client (in the style of buildbarn-bb-storage's BlobAccess seam over
// its storage backends).
type uploaderAPI interface {
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type uploadChunkCmd struct {
	partNumber int32
	data       []byte
}

type finalizeCmd struct {
	final   []byte
	resultC chan finalizeResult
}

type finalizeResult struct {
	location string
	err      error
}

// wrapCloudError translates cloud's own sentinel/wrapper errors into the
// root package's unified *zipflow.Error taxonomy (§7), so a caller doing
// zipflow.Is(err, zipflow.KindChannelClosed) or KindUploadFailed gets a
// real answer for a cloud failure instead of always false.
func wrapCloudError(err error) error {
	if err == nil {
		return nil
	}
	var uploadErr *UploadError
	if errors.As(err, &uploadErr) {
		return &zipflow.Error{Kind: zipflow.KindUploadFailed, Detail: uploadErr.Error(), Err: err}
	}
	if errors.Is(err, ErrChannelClosed) {
		return &zipflow.Error{Kind: zipflow.KindChannelClosed, Detail: "cloud: upload worker channel closed", Err: err}
	}
	return &zipflow.Error{Kind: zipflow.KindUploadFailed, Detail: "cloud: multipart upload failed", Err: err}
}

// Sink is an append-only, position-reporting Sink (§4.7) backed by an
// S3 multipart upload. Exactly one goroutine is expected to call Write
// and Shutdown; a single background worker goroutine owns the upload
// lifecycle and is fed through a bounded command channel.
type Sink struct {
	ctx    context.Context
	client uploaderAPI
	cfg    Config

	buf        []byte
	partNumber int32
	position   int64

	cmdCh      chan interface{}
	workerDone chan struct{}

	shutdownOnce sync.Once
	shutdownLoc  string
	shutdownErr  error
}

// NewSink validates cfg, resolves an S3 client from the default AWS
// credential chain (optionally overridden by cfg.Endpoint/cfg.Region),
// and starts the background upload worker (§4.7).
func NewSink(ctx context.Context, cfg Config) (*Sink, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
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

	return newSinkWithClient(ctx, cfg, client), nil
}

// newSinkWithClient builds a Sink around an already-resolved uploaderAPI,
// split out from NewSink so tests can inject a fake client without
// going through AWS credential/config resolution.
func newSinkWithClient(ctx context.Context, cfg Config, client uploaderAPI) *Sink {
	s := &Sink{
		ctx:        ctx,
		client:     client,
		cfg:        cfg,
		cmdCh:      make(chan interface{}, cfg.MaxConcurrentUploads),
		workerDone: make(chan struct{}),
	}
	go s.run()
	return s
}

// Position reports the virtual offset: the sum of all bytes submitted
// to Write so far (§4.7 "logical seek to current position").
func (s *Sink) Position() int64 { return s.position }

// Write buffers p, dispatching full parts to the upload worker as the
// buffer crosses cfg.PartSize (§4.7).
func (s *Sink) Write(p []byte) (int, error) {
	select {
	case <-s.workerDone:
		return 0, wrapCloudError(ErrChannelClosed)
	default:
	}

	s.buf = append(s.buf, p...)
	s.position += int64(len(p))

	for int64(len(s.buf)) >= s.cfg.PartSize {
		chunk := s.buf[:s.cfg.PartSize]
		rest := make([]byte, len(s.buf)-int(s.cfg.PartSize))
		copy(rest, s.buf[s.cfg.PartSize:])
		s.buf = rest

		s.partNumber++
		select {
		case s.cmdCh <- uploadChunkCmd{partNumber: s.partNumber, data: chunk}:
		case <-s.workerDone:
			return len(p), wrapCloudError(ErrChannelClosed)
		}
	}
	return len(p), nil
}

// Shutdown sends the final part (if any) and a Finalize command
// exactly once, waits for the worker to complete the multipart upload,
// and returns its result (§4.7 "shutdown"). Re-entry after the first
// call returns the same result.
func (s *Sink) Shutdown() (string, error) {
	s.shutdownOnce.Do(func() {
		resultC := make(chan finalizeResult, 1)
		final := s.buf
		s.buf = nil
		select {
		case s.cmdCh <- finalizeCmd{final: final, resultC: resultC}:
		case <-s.workerDone:
			s.shutdownLoc, s.shutdownErr = "", wrapCloudError(ErrChannelClosed)
			return
		}
		res := <-resultC
		s.shutdownLoc, s.shutdownErr = res.location, wrapCloudError(res.err)
	})
	return s.shutdownLoc, s.shutdownErr
}

// run is the single background worker: it lazily opens the multipart
// upload on the first part, dispatches uploads bounded by
// cfg.MaxConcurrentUploads, and completes the upload once Finalize
// arrives (§4.7 "Internally").
func (s *Sink) run() {
	defer close(s.workerDone)

	var uploadID string
	var mu sync.Mutex
	etags := make(map[int32]string)
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.MaxConcurrentUploads)
	var firstErr error
	var errOnce sync.Once
	recordErr := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	ensureUpload := func() error {
		if uploadID != "" {
			return nil
		}
		out, err := s.client.CreateMultipartUpload(s.ctx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(s.cfg.Key),
		})
		if err != nil {
			return fmt.Errorf("cloud: creating multipart upload: %w", err)
		}
		uploadID = aws.ToString(out.UploadId)
		return nil
	}

	uploadPart := func(partNumber int32, data []byte) {
		defer wg.Done()
		defer func() { <-sem }()
		slog.Debug("cloud: dispatching part", "bucket", s.cfg.Bucket, "key", s.cfg.Key, "part_number", partNumber, "bytes", len(data))
		etag, err := s.uploadPartWithRetry(uploadID, partNumber, data)
		if err != nil {
			recordErr(&UploadError{PartNumber: partNumber, Err: err})
			return
		}
		mu.Lock()
		etags[partNumber] = etag
		mu.Unlock()
	}

loop:
	for cmd := range s.cmdCh {
		switch c := cmd.(type) {
		case uploadChunkCmd:
			if firstErr != nil {
				continue
			}
			if err := ensureUpload(); err != nil {
				recordErr(err)
				continue
			}
			wg.Add(1)
			sem <- struct{}{}
			go uploadPart(c.partNumber, c.data)

		case finalizeCmd:
			if len(c.final) > 0 && firstErr == nil {
				if err := ensureUpload(); err != nil {
					recordErr(err)
				} else {
					s.partNumber++
					wg.Add(1)
					sem <- struct{}{}
					go uploadPart(s.partNumber, c.final)
				}
			}
			wg.Wait()

			if firstErr != nil {
				s.abortBestEffort(uploadID)
				c.resultC <- finalizeResult{err: firstErr}
				break loop
			}

			if uploadID == "" {
				// Nothing was ever written: an empty archive.
				if _, err := s.client.PutObject(s.ctx, &s3.PutObjectInput{
					Bucket: aws.String(s.cfg.Bucket),
					Key:    aws.String(s.cfg.Key),
					Body:   bytes.NewReader(nil),
				}); err != nil {
					c.resultC <- finalizeResult{err: fmt.Errorf("cloud: putting empty object: %w", err)}
					break loop
				}
				c.resultC <- finalizeResult{location: s.cfg.Key}
				break loop
			}

			loc, err := s.complete(uploadID, etags)
			if err == nil {
				slog.Info("cloud: multipart upload completed", "bucket", s.cfg.Bucket, "key", s.cfg.Key, "location", loc, "parts", len(etags))
			}
			c.resultC <- finalizeResult{location: loc, err: err}
			break loop
		}
	}
}

func (s *Sink) complete(uploadID string, etags map[int32]string) (string, error) {
	numbers := make([]int32, 0, len(etags))
	for n := range etags {
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	parts := make([]types.CompletedPart, len(numbers))
	for i, n := range numbers {
		parts[i] = types.CompletedPart{PartNumber: aws.Int32(n), ETag: aws.String(etags[n])}
	}

	out, err := s.client.CompleteMultipartUpload(s.ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.cfg.Bucket),
		Key:             aws.String(s.cfg.Key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return "", fmt.Errorf("cloud: completing multipart upload: %w", err)
	}
	return aws.ToString(out.Location), nil
}

func (s *Sink) abortBestEffort(uploadID string) {
	if uploadID == "" {
		return
	}
	slog.Warn("cloud: aborting multipart upload after failure", "bucket", s.cfg.Bucket, "key", s.cfg.Key, "upload_id", uploadID)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.cfg.Bucket),
		Key:      aws.String(s.cfg.Key),
		UploadId: aws.String(uploadID),
	})
}

// uploadPartWithRetry retries idempotent part uploads with exponential
// backoff (100ms, 200ms, 400ms, ...) up to maxUploadRetries (§7).
func (s *Sink) uploadPartWithRetry(uploadID string, partNumber int32, data []byte) (string, error) {
	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxUploadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-s.ctx.Done():
				return "", s.ctx.Err()
			}
			backoff *= 2
		}
		out, err := s.client.UploadPart(s.ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.cfg.Bucket),
			Key:        aws.String(s.cfg.Key),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(data),
		})
		if err == nil {
			return aws.ToString(out.ETag), nil
		}
		lastErr = err
		slog.Warn("cloud: upload part failed, retrying", "bucket", s.cfg.Bucket, "key", s.cfg.Key, "part_number", partNumber, "attempt", attempt+1, "error", err)
	}
	return "", lastErr
}
