package pipeline

import "github.com/zipflow/zipflow/internal/codec"

// Config carries the per-entry knobs fixed at Start time: the
// compression method/level chosen for this entry, an optional
// encryption password, and an optional size hint driving the staging
// buffer's adaptive capacity (§4.2).
type Config struct {
	Method        codec.Method
	Level         int
	Password      string
	SizeHintBytes int64
	HasSizeHint   bool
}
