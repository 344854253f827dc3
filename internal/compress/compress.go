// Package compress implements the optional zlib frame-body compression
// layer: frame bodies below a threshold travel uncompressed behind a
// zero length marker; bodies at or above it are deflated behind their
// uncompressed length.
package compress

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/carlosrabelo/mcproxy/internal/wire"
)

// Compressor encodes and decodes frame bodies once compression has been
// negotiated on a connection. A nil *Compressor means compression is
// disabled; callers check for that before reaching here.
type Compressor struct {
	threshold int32
}

// New returns a Compressor that deflates bodies of length >= threshold.
func New(threshold int32) *Compressor {
	return &Compressor{threshold: threshold}
}

// Threshold returns the configured compression threshold.
func (c *Compressor) Threshold() int32 {
	return c.threshold
}

// Encode compresses p (the packet-codec output, pre frame-codec) per
// §4.3: bodies under the threshold are passed through behind a varint(0)
// marker; bodies at or above it are zlib-deflated behind their
// uncompressed length.
func (c *Compressor) Encode(p []byte) ([]byte, error) {
	if len(p) < int(c.threshold) {
		out := make([]byte, 0, 1+len(p))
		out = append(out, wire.WriteVarInt(0)...)
		out = append(out, p...)
		return out, nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(p); err != nil {
		return nil, fmt.Errorf("compress: deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress: deflate close: %w", err)
	}
	out := make([]byte, 0, wire.MaxVarIntBytes+buf.Len())
	out = append(out, wire.WriteVarInt(int32(len(p)))...)
	out = append(out, buf.Bytes()...)
	return out, nil
}

// Decode reverses Encode: it reads the leading var-int; zero means the
// remainder is already uncompressed, otherwise the remainder is
// zlib-inflated and its length is checked against the declared value.
func Decode(frameBody []byte) ([]byte, error) {
	r := wire.NewReader(frameBody)
	uncompressedLen, err := r.ReadVarInt()
	if err != nil {
		return nil, fmt.Errorf("compress: reading length prefix: %w", err)
	}
	rest := r.Bytes()
	if uncompressedLen == 0 {
		return rest, nil
	}
	if uncompressedLen < 0 {
		return nil, fmt.Errorf("compress: negative uncompressed length %d", uncompressedLen)
	}
	zr, err := zlib.NewReader(bytes.NewReader(rest))
	if err != nil {
		return nil, fmt.Errorf("compress: inflate init: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("compress: inflate: %w", err)
	}
	if int32(len(out)) != uncompressedLen {
		return nil, fmt.Errorf("compress: inflated length %d does not match declared %d", len(out), uncompressedLen)
	}
	return out, nil
}
