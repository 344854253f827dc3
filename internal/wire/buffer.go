// Package wire implements the primitive read/write operations used to
// encode and decode values on the Minecraft-style wire protocol: fixed
// width big-endian integers, var-ints, length-prefixed byte arrays and
// strings, and UUIDs carried as their hyphenated string form.
package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxVarIntBytes is the longest encoding of a 32-bit var-int.
const MaxVarIntBytes = 5

// MaxFrameVarIntBytes bounds the var-int used for frame lengths to 21
// bits (3 bytes), capping a frame body at 2^21-1 bytes.
const MaxFrameVarIntBytes = 3

const maxFrameBodyLen = 1<<21 - 1

// Reader consumes primitives from an in-memory byte slice, advancing an
// internal cursor. It never reads past the slice it was given.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports how many bytes are left unread.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Bytes returns the unread tail of the buffer without consuming it.
func (r *Reader) Bytes() []byte {
	return r.buf[r.pos:]
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("wire: short read: need %d bytes, have %d", n, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadVarInt reads a standard (up to 5-byte) var-int.
func (r *Reader) ReadVarInt() (int32, error) {
	return r.readVarInt(MaxVarIntBytes)
}

func (r *Reader) readVarInt(maxBytes int) (int32, error) {
	var result uint32
	for i := 0; i < maxBytes; i++ {
		b, err := r.ReadUint8()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int32(result), nil
		}
	}
	return 0, fmt.Errorf("wire: var-int longer than %d bytes", maxBytes)
}

// ReadByteArray reads a var-int length prefix followed by that many bytes.
func (r *Reader) ReadByteArray() ([]byte, error) {
	n, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("wire: negative length-prefixed array length %d", n)
	}
	return r.take(int(n))
}

// ReadString reads a length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadByteArray()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("wire: invalid UTF-8 in string")
	}
	return string(b), nil
}

// ReadUUID reads a UUID carried as its canonical hyphenated string
// form, validating it with google/uuid and returning the canonical
// rendering (so an upstream sending non-canonical hex case still round-trips
// predictably).
func (r *Reader) ReadUUID() (string, error) {
	s, err := r.ReadString()
	if err != nil {
		return "", err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("wire: invalid UUID string %q: %w", s, err)
	}
	return id.String(), nil
}

// Writer accumulates primitives into an in-memory byte slice.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteUint16 appends a big-endian uint16.
func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteUint64 appends a big-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteVarInt appends the standard (up to 5-byte) var-int encoding of v.
func WriteVarInt(v int32) []byte {
	u := uint32(v)
	out := make([]byte, 0, MaxVarIntBytes)
	for {
		b := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

// VarIntSize returns the number of bytes WriteVarInt(v) would produce.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u>>=7; u != 0; u >>= 7 {
		n++
	}
	return n
}

// WriteVarInt appends the var-int encoding of v.
func (w *Writer) WriteVarInt(v int32) {
	w.buf = append(w.buf, WriteVarInt(v)...)
}

// WriteByteArray appends a var-int length prefix followed by b.
func (w *Writer) WriteByteArray(b []byte) {
	w.WriteVarInt(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteString appends a length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) {
	w.WriteByteArray([]byte(s))
}

// WriteUUID appends a UUID as a length-prefixed string, exactly as given;
// it does not validate or canonicalize it.
func (w *Writer) WriteUUID(uuid string) {
	w.WriteString(uuid)
}

// MaxFrameBodyLen is the largest frame body the 21-bit frame length
// var-int can represent.
const MaxFrameBodyLen = maxFrameBodyLen
