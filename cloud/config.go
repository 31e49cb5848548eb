// Package cloud adapts a writer-owned append-only Sink and a
// random-read Source onto S3 multipart upload and ranged GET,
// letting the core archive pipeline stream to and from cloud storage
// without ever seeking backward (§4.7 component I).
package cloud

import (
	"fmt"

	"github.com/zipflow/zipflow"
)

const minPartSize = 5 << 20 // 5 MiB, the S3 multipart minimum for non-final parts.

// Config describes the multipart upload destination (§6.2 "Cloud
// sink: constructed with {endpoint?, region?, bucket, key,
// part_size≥5MiB, max_concurrent_uploads≥1}").
type Config struct {
	// Endpoint overrides the default AWS endpoint resolution; useful
	// for S3-compatible providers. Optional.
	Endpoint string
	// Region is the AWS region to sign requests for. Optional; falls
	// back to the SDK's default credential chain resolution.
	Region string
	Bucket string
	Key    string
	// PartSize is the buffered size at which a part is dispatched for
	// upload. Must be >= 5 MiB (S3's non-final-part minimum).
	PartSize int64
	// MaxConcurrentUploads bounds how many parts may be in flight to
	// S3 at once.
	MaxConcurrentUploads int

	// AccessKeyID/SecretAccessKey provide static credentials instead
	// of the SDK's default credential chain (environment, shared
	// config, instance profile). Leave both empty to use the default
	// chain.
	AccessKeyID     string
	SecretAccessKey string
}

func (c Config) validate() error {
	if c.Bucket == "" {
		return &zipflow.Error{Kind: zipflow.KindBadConfig, Detail: "cloud: bucket is required"}
	}
	if c.Key == "" {
		return &zipflow.Error{Kind: zipflow.KindBadConfig, Detail: "cloud: key is required"}
	}
	if c.PartSize < minPartSize {
		return &zipflow.Error{Kind: zipflow.KindBadConfig, Detail: fmt.Sprintf("cloud: part_size %d below minimum %d", c.PartSize, minPartSize)}
	}
	if c.MaxConcurrentUploads < 1 {
		return &zipflow.Error{Kind: zipflow.KindBadConfig, Detail: "cloud: max_concurrent_uploads must be >= 1"}
	}
	return nil
}
