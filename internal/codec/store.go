package codec

import "io"

// storeEncoder passes bytes through unmodified (ZIP method 0).
type storeEncoder struct {
	dst io.Writer
}

func (s storeEncoder) Write(p []byte) (int, error) { return s.dst.Write(p) }
func (s storeEncoder) Flush() error                { return nil }
func (s storeEncoder) Close() error                { return nil }

type storeDecoder struct {
	io.ReadCloser
}
