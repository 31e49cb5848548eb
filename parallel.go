package zipflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/zipflow/zipflow/internal/pipeline"
	"github.com/zipflow/zipflow/internal/zipfmt"
)

// ParallelEntry is one member of a parallel batch: a name and the byte
// source to compress independently (§4.8).
type ParallelEntry struct {
	Name   string
	Source io.Reader
}

// ParallelConfig configures WriteEntriesParallel (§4.8).
type ParallelConfig struct {
	// MaxConcurrent bounds the counting semaphore guarding compression
	// workers; must be in [1, 16].
	MaxConcurrent     int
	CompressionMethod CompressionMethod
	CompressionLevel  int
}

type parallelResult struct {
	buf *bytes.Buffer
	dir zipfmt.DirEntry
	err error
}

// WriteEntriesParallel compresses entries concurrently under a
// counting semaphore of cfg.MaxConcurrent permits, then emits the
// results to w in the original caller order regardless of completion
// order (§4.8, P6). Each worker runs a full entry pipeline against a
// private in-memory sink so the byte sequence it produces is identical
// to what the sequential pipeline would produce for the same input;
// only the splice into w's real sink, and the local header offset
// recorded in the central directory, happen at emission time.
func (w *Writer) WriteEntriesParallel(entries []ParallelEntry, cfg ParallelConfig) error {
	if w.cur != nil {
		return newError(KindWrongState, "WriteEntriesParallel while an entry is open", nil)
	}
	if cfg.MaxConcurrent < 1 || cfg.MaxConcurrent > 16 {
		return newError(KindBadConfig, "MaxConcurrent must be in [1,16]", nil)
	}

	slog.Debug("zipflow: starting parallel entry batch", "entries", len(entries), "max_concurrent", cfg.MaxConcurrent)
	sem := semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	ctx := context.Background()
	results := make([]parallelResult, len(entries))

	type job struct {
		idx   int
		entry ParallelEntry
	}
	done := make(chan job, len(entries))

	for i, pe := range entries {
		if err := sem.Acquire(ctx, 1); err != nil {
			return newError(KindIO, "acquiring parallel semaphore", err)
		}
		go func(i int, pe ParallelEntry) {
			defer sem.Release(1)
			results[i] = compressOne(pe, cfg)
			done <- job{idx: i}
		}(i, pe)
	}
	for range entries {
		<-done
	}

	for i, res := range results {
		if res.err != nil {
			return newError(KindIO, fmt.Sprintf("compressing entry %q", entries[i].Name), res.err)
		}
		offset := uint64(w.pos)
		n, err := w.sink.Write(res.buf.Bytes())
		w.pos += int64(n)
		if err != nil {
			return newError(KindIO, fmt.Sprintf("emitting entry %q", entries[i].Name), err)
		}
		dir := res.dir
		dir.LocalHeaderOffset = offset
		w.entries = append(w.entries, dir)
		slog.Debug("zipflow: emitted parallel entry", "name", entries[i].Name, "compressed_bytes", n, "offset", offset)
	}
	return nil
}

func compressOne(pe ParallelEntry, cfg ParallelConfig) parallelResult {
	var buf bytes.Buffer
	pcfg := pipeline.Config{
		Method: cfg.CompressionMethod.internal(),
		Level:  cfg.CompressionLevel,
	}
	entry, _, err := pipeline.Start(&buf, pe.Name, 0, pcfg)
	if err != nil {
		return parallelResult{err: err}
	}

	chunk := make([]byte, 32*1024)
	for {
		n, rerr := pe.Source.Read(chunk)
		if n > 0 {
			if _, werr := entry.Write(chunk[:n]); werr != nil {
				return parallelResult{err: werr}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return parallelResult{err: rerr}
		}
	}

	sealed, err := entry.Finish()
	if err != nil {
		return parallelResult{err: err}
	}
	return parallelResult{buf: &buf, dir: sealed.Dir}
}
