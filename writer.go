package zipflow

import (
	"fmt"

	"github.com/zipflow/zipflow/internal/pipeline"
	"github.com/zipflow/zipflow/internal/zipfmt"
)

// Writer is the blocking writer front-end (§4.5 component G): it owns
// a Sink for its lifetime, drives one Entry at a time through the
// pipeline state machine, and assembles the central directory and
// trailer at Finish.
type Writer struct {
	sink    Sink
	pos     int64
	entries []zipfmt.DirEntry
	cur     *pipeline.Entry
	opts    Options
	pw      string // active password; "" disables encryption for new entries
	done    bool
}

// NewWriter takes ownership of sink and returns a Writer configured by
// opts (§4.5 "new_on_sink").
func NewWriter(sink Sink, opts Options) *Writer {
	return &Writer{sink: sink, opts: opts, pw: opts.Password}
}

// SetPassword enables AE-2 encryption for every entry started after
// this call, until ClearPassword is called.
func (w *Writer) SetPassword(password string) { w.pw = password }

// ClearPassword disables encryption for subsequent entries.
func (w *Writer) ClearPassword() { w.pw = "" }

// StartEntry opens a new archive member named name, implicitly
// finalizing any currently open entry first (§4.2 "start_entry", data
// model invariant I6). sizeHint, when > 0, tunes the staging buffer's
// adaptive capacity (§4.2 "Adaptive buffering"); 0 means no hint.
func (w *Writer) StartEntry(name string, sizeHint int64) error {
	if w.done {
		return newError(KindWrongState, "StartEntry after Finish", nil)
	}
	if w.cur != nil {
		if err := w.FinishEntry(); err != nil {
			return err
		}
	}
	cfg := pipeline.Config{
		Method:   w.opts.CompressionMethod.internal(),
		Level:    w.opts.CompressionLevel,
		Password: w.pw,
	}
	if sizeHint > 0 {
		cfg.HasSizeHint = true
		cfg.SizeHintBytes = sizeHint
	}
	e, n, err := pipeline.Start(w.sink, name, uint64(w.pos), cfg)
	if err != nil {
		return newError(KindIO, fmt.Sprintf("starting entry %q", name), err)
	}
	w.pos += n
	w.cur = e
	return nil
}

// WriteData feeds plaintext bytes into the currently open entry
// (§4.2 "write_data").
func (w *Writer) WriteData(p []byte) (int, error) {
	if w.cur == nil {
		return 0, newError(KindWrongState, "WriteData with no open entry", nil)
	}
	n, err := w.cur.Write(p)
	w.pos += n
	if err != nil {
		return len(p), newError(KindIO, "writing entry data", err)
	}
	return len(p), nil
}

// FinishEntry finalizes the currently open entry, recording it for the
// central directory (§4.2 "finish_entry").
func (w *Writer) FinishEntry() error {
	if w.cur == nil {
		return newError(KindWrongState, "FinishEntry with no open entry", nil)
	}
	sealed, err := w.cur.Finish()
	w.cur = nil
	if err != nil {
		return newError(KindIO, "finishing entry", err)
	}
	w.pos += sealed.TotalBytesWritten
	w.entries = append(w.entries, sealed.Dir)
	return nil
}

// Finish finalizes any open entry, writes the central directory and
// trailer (with ZIP64 structures when needed), and returns the sink
// (§4.5 "finish").
func (w *Writer) Finish() (Sink, error) {
	if w.done {
		return nil, newError(KindWrongState, "Finish called twice", nil)
	}
	if w.cur != nil {
		if err := w.FinishEntry(); err != nil {
			return nil, err
		}
	}
	n, err := zipfmt.WriteTrailer(w.sink, zipfmt.EOCDInput{
		Entries:          w.entries,
		CentralDirOffset: uint64(w.pos),
	})
	if err != nil {
		return nil, newError(KindIO, "writing trailer", err)
	}
	w.pos += n
	w.done = true
	return w.sink, nil
}
