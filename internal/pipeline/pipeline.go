// Package pipeline implements the per-connection byte<->packet pipeline
// described in the spec: a single logical object, reconfigurable at
// runtime at packet boundaries, whose read half turns bytes into
// packets (frame -> decompress? -> decode) and whose write half turns
// packets into bytes (encode -> compress? -> frame).
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/carlosrabelo/mcproxy/internal/compress"
	"github.com/carlosrabelo/mcproxy/internal/frame"
	"github.com/carlosrabelo/mcproxy/internal/protocol"
)

// ErrNeedMore is returned by TryPoll when the accumulator does not yet
// hold a complete frame.
var ErrNeedMore = frame.ErrNeedMore

// Pipeline holds the mutable, runtime-reconfigurable state of one
// connection: its current sub-protocol, optional compressor, and the
// inbound byte accumulator. Mutations (SetProtocol, EnableCompression)
// and the read/write operations all take the same mutex; callers are
// responsible for invoking them at a correct packet boundary (see
// SPEC_FULL.md §4.5, §9).
type Pipeline struct {
	mu sync.Mutex

	readDir  protocol.Direction
	writeDir protocol.Direction

	currentProtocol protocol.Protocol
	compressor      *compress.Compressor

	acc []byte
}

// New returns a pipeline for a connection whose inbound bytes travel in
// readDir; the outbound direction is always the opposite.
func New(readDir protocol.Direction) *Pipeline {
	return &Pipeline{
		readDir:         readDir,
		writeDir:        readDir.Opposite(),
		currentProtocol: protocol.Handshake,
	}
}

// Protocol returns the pipeline's current sub-protocol.
func (p *Pipeline) Protocol() protocol.Protocol {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentProtocol
}

// SetProtocol updates the pipeline's current sub-protocol. The caller
// must invoke this between receiving and sending the next packet of the
// new sub-protocol (invariant 1, §3).
func (p *Pipeline) SetProtocol(proto protocol.Protocol) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentProtocol = proto
}

// EnableCompression installs a compressor with the given threshold. A
// negative threshold disables compression.
func (p *Pipeline) EnableCompression(threshold int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if threshold < 0 {
		p.compressor = nil
		return
	}
	p.compressor = compress.New(threshold)
}

// CompressionEnabled reports whether a compressor is currently installed.
func (p *Pipeline) CompressionEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.compressor != nil
}

// PushBytes appends freshly read socket bytes to the inbound accumulator.
func (p *Pipeline) PushBytes(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acc = append(p.acc, b...)
}

// TryPoll attempts to decode one packet from the accumulator. It
// returns (nil, ErrNeedMore) if a full frame is not yet available, or
// (nil, err) on a hard protocol error the caller must treat as fatal
// for the connection.
func (p *Pipeline) TryPoll() (protocol.Packet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	body, consumed, err := frame.Decode(p.acc)
	if errors.Is(err, frame.ErrNeedMore) {
		return nil, ErrNeedMore
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: framing: %w", err)
	}

	// Copy the body out before advancing acc, since decompression may
	// retain slices into it.
	frameBody := append([]byte(nil), body...)
	p.acc = append([]byte(nil), p.acc[consumed:]...)

	if p.compressor != nil {
		frameBody, err = compress.Decode(frameBody)
		if err != nil {
			return nil, fmt.Errorf("pipeline: decompressing: %w", err)
		}
	}

	pkt, err := protocol.DecodeBody(p.currentProtocol, p.readDir, frameBody)
	if err != nil {
		return nil, fmt.Errorf("pipeline: decoding packet: %w", err)
	}
	return pkt, nil
}

// Encode runs the outbound stages (packet encode -> compress? ->
// frame) and returns the bytes ready to write to the socket.
func (p *Pipeline) Encode(pkt protocol.Packet) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	body, err := protocol.EncodeBody(p.currentProtocol, p.writeDir, pkt)
	if err != nil {
		return nil, fmt.Errorf("pipeline: encoding packet: %w", err)
	}
	if p.compressor != nil {
		body, err = p.compressor.Encode(body)
		if err != nil {
			return nil, fmt.Errorf("pipeline: compressing: %w", err)
		}
	}
	framed, err := frame.Encode(body)
	if err != nil {
		return nil, fmt.Errorf("pipeline: framing: %w", err)
	}
	return framed, nil
}
