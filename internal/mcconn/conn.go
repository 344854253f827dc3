// Package mcconn owns one TCP socket plus its pipeline: it exposes
// packet-level send/receive, setProtocol/enableCompression, and close,
// producing an inbound packet stream for its session handler.
package mcconn

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carlosrabelo/mcproxy/internal/pipeline"
	"github.com/carlosrabelo/mcproxy/internal/protocol"
	appErrors "github.com/carlosrabelo/mcproxy/pkg/errors"
)

// defaultReadBufSize and defaultWriteBufSize size the bufio wrappers
// around the raw socket; socketReadChunk is the size of each socket read.
// All three are fixed; no configuration setting changes them.
const (
	defaultReadBufSize  = 4096
	defaultWriteBufSize = 4096
	socketReadChunk     = 4096
)

// Conn wraps one net.Conn together with the pipeline that turns its
// bytes into packets and back. readDir is the direction bytes read from
// the socket travel in; the write direction is always the opposite.
type Conn struct {
	c  net.Conn
	br *bufio.Reader
	bw *bufio.Writer

	pipe *pipeline.Pipeline

	writeMu sync.Mutex
	closed  atomic.Bool
}

// New wraps c for packet-level I/O. readDir is ServerBound for a
// client-facing connection (bytes from the player travel client->proxy)
// and ClientBound for an upstream-facing connection (bytes from the
// server travel server->proxy).
func New(c net.Conn, readDir protocol.Direction) *Conn {
	return &Conn{
		c:    c,
		br:   bufio.NewReaderSize(c, defaultReadBufSize),
		bw:   bufio.NewWriterSize(c, defaultWriteBufSize),
		pipe: pipeline.New(readDir),
	}
}

// RemoteAddr returns the underlying socket's remote address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.c.RemoteAddr()
}

// SetProtocol updates the pipeline's current sub-protocol. Must be
// called between receiving and sending the next packet of the new
// sub-protocol.
func (c *Conn) SetProtocol(p protocol.Protocol) {
	c.pipe.SetProtocol(p)
}

// Protocol returns the pipeline's current sub-protocol.
func (c *Conn) Protocol() protocol.Protocol {
	return c.pipe.Protocol()
}

// EnableCompression installs the compressor with the given threshold; a
// negative threshold disables compression.
func (c *Conn) EnableCompression(threshold int32) {
	c.pipe.EnableCompression(threshold)
}

// SetDeadline forwards to the underlying socket; used to bound the
// handshake/status phases (SPEC_FULL.md §5 Timeouts).
func (c *Conn) SetDeadline(t time.Time) error {
	return c.c.SetDeadline(t)
}

// ReadPacket blocks until one full packet has been decoded from the
// socket, reading more bytes as needed.
func (c *Conn) ReadPacket() (protocol.Packet, error) {
	for {
		pkt, err := c.pipe.TryPoll()
		if err == nil {
			return pkt, nil
		}
		if err != pipeline.ErrNeedMore {
			return nil, appErrors.Protocol("decoding packet", err)
		}

		buf := make([]byte, socketReadChunk)
		n, rerr := c.br.Read(buf)
		if n > 0 {
			c.pipe.PushBytes(buf[:n])
		}
		if rerr != nil {
			return nil, appErrors.IO("reading socket", rerr)
		}
	}
}

// WritePacket encodes pkt through the pipeline and writes it to the
// socket, flushing immediately.
func (c *Conn) WritePacket(pkt protocol.Packet) error {
	out, err := c.pipe.Encode(pkt)
	if err != nil {
		return appErrors.Protocol("encoding packet", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.bw.Write(out); err != nil {
		return appErrors.IO("writing socket", err)
	}
	if err := c.bw.Flush(); err != nil {
		return appErrors.IO("flushing socket", err)
	}
	return nil
}

// Close closes the underlying socket. Safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.c.Close()
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// String is for log lines: remote addr and current protocol.
func (c *Conn) String() string {
	return fmt.Sprintf("%s[%s]", c.c.RemoteAddr(), c.pipe.Protocol())
}
