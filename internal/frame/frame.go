// Package frame splits a byte stream into length-prefixed frames and
// emits length-prefixed frames for the write side of a connection.
package frame

import (
	"fmt"

	"github.com/carlosrabelo/mcproxy/internal/wire"
)

// ErrNeedMore indicates the accumulator does not yet hold a complete
// frame; the caller should read more bytes from the socket and retry.
var ErrNeedMore = fmt.Errorf("frame: need more data")

// Decode attempts to split one frame off the front of acc. It peeks the
// frame length as a var-int of at most three bytes (21-bit max, so a
// frame body is at most 2^21-1 bytes). It returns the frame body, the
// number of bytes of acc consumed (length prefix + body), and an error.
// ErrNeedMore means "call again once more bytes have arrived"; any other
// error is a hard framing error and the connection must be closed.
func Decode(acc []byte) (body []byte, consumed int, err error) {
	length, lenSize, err := peekLength(acc)
	if err != nil {
		return nil, 0, err
	}
	if lenSize == 0 {
		return nil, 0, ErrNeedMore
	}
	total := lenSize + length
	if len(acc) < total {
		return nil, 0, ErrNeedMore
	}
	return acc[lenSize:total], total, nil
}

// peekLength reads a 21-bit var-int frame length from the front of acc
// without requiring the body to be present yet. It returns (length,
// bytesUsedByTheLengthPrefix, error). bytesUsedByTheLengthPrefix is 0
// when acc does not yet hold a complete length var-int ("need more").
func peekLength(acc []byte) (length int, lenSize int, err error) {
	var result uint32
	for i := 0; i < wire.MaxFrameVarIntBytes; i++ {
		if i >= len(acc) {
			return 0, 0, nil
		}
		b := acc[i]
		result |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int(result), i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("frame: length var-int longer than %d bytes", wire.MaxFrameVarIntBytes)
}

// Encode prepends payload with its length as a var-int. payload must be
// at most wire.MaxFrameBodyLen bytes.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > wire.MaxFrameBodyLen {
		return nil, fmt.Errorf("frame: body of %d bytes exceeds max %d", len(payload), wire.MaxFrameBodyLen)
	}
	prefix := wire.WriteVarInt(int32(len(payload)))
	out := make([]byte, 0, len(prefix)+len(payload))
	out = append(out, prefix...)
	out = append(out, payload...)
	return out, nil
}
