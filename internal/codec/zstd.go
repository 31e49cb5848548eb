package codec

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

type zstdEncoder struct {
	w *zstd.Encoder
}

func newZstdEncoder(dst io.Writer, level int) (Encoder, error) {
	w, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, err
	}
	return &zstdEncoder{w: w}, nil
}

func (z *zstdEncoder) Write(p []byte) (int, error) { return z.w.Write(p) }
func (z *zstdEncoder) Flush() error                 { return z.w.Flush() }
func (z *zstdEncoder) Close() error                 { return z.w.Close() }

type zstdDecoder struct {
	d *zstd.Decoder
}

func newZstdDecoder(src io.Reader) (Decoder, error) {
	d, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}
	return &zstdDecoder{d: d}, nil
}

func (z *zstdDecoder) Read(p []byte) (int, error) { return z.d.Read(p) }

func (z *zstdDecoder) Close() error {
	z.d.Close()
	return nil
}
