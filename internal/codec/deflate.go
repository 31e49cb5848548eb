package codec

import (
	"compress/flate"
	"io"
)

type deflateEncoder struct {
	w *flate.Writer
}

func newDeflateEncoder(dst io.Writer, level int) (Encoder, error) {
	w, err := flate.NewWriter(dst, level)
	if err != nil {
		return nil, err
	}
	return &deflateEncoder{w: w}, nil
}

func (d *deflateEncoder) Write(p []byte) (int, error) { return d.w.Write(p) }
func (d *deflateEncoder) Flush() error                 { return d.w.Flush() }
func (d *deflateEncoder) Close() error                 { return d.w.Close() }

func newDeflateDecoder(src io.Reader) Decoder {
	return flate.NewReader(src)
}
