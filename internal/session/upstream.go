package session

import (
	"context"
	"net"

	"github.com/carlosrabelo/mcproxy/internal/mcconn"
	"github.com/carlosrabelo/mcproxy/internal/metrics"
	"github.com/carlosrabelo/mcproxy/internal/protocol"
	appErrors "github.com/carlosrabelo/mcproxy/pkg/errors"
	"github.com/carlosrabelo/mcproxy/pkg/logger"
)

// UpstreamSession owns the socket to an upstream Minecraft server on
// behalf of exactly one ClientSession (SPEC_FULL.md §4.7). It never
// holds a reference back to its owner beyond the mailbox it was given:
// all notifications to the client session travel as messages, never as
// direct method calls, so the two sessions can tear down independently.
type UpstreamSession struct {
	conn     *mcconn.Conn
	clientMB *mailbox
	inbox    *mailbox
	metrics  *metrics.Collector
	log      *logger.Logger
}

// newUpstreamSession wraps an already-dialed connection to the
// upstream server. clientMB is the owning ClientSession's mailbox,
// used to deliver forwarded packets and close notifications.
func newUpstreamSession(conn net.Conn, clientMB *mailbox, m *metrics.Collector, log *logger.Logger) *UpstreamSession {
	return &UpstreamSession{
		conn:     mcconn.New(conn, protocol.ClientBound),
		clientMB: clientMB,
		inbox:    newMailbox(),
		metrics:  m,
		log:      log,
	}
}

// sendToUpstream delivers a client-originated Raw packet for writing to
// the upstream socket. Safe to call from the owning ClientSession's
// goroutine even after this session has begun tearing down.
func (us *UpstreamSession) sendToUpstream(pkt protocol.Packet) {
	us.inbox.send(msgForwardToUpstream{pkt: pkt})
}

// notifyClientClosed tells the upstream session its client peer is
// gone, so it should close its socket and stop.
func (us *UpstreamSession) notifyClientClosed() {
	us.inbox.send(msgClientClosed{})
}

// run drives the upstream session's single-threaded actor loop until
// the socket closes or the client peer tears down.
func (us *UpstreamSession) run(ctx context.Context) {
	us.metrics.IncrementUpstreamSessions()
	defer us.metrics.DecrementUpstreamSessions()
	defer us.teardown()

	packets := make(chan protocol.Packet)
	handled := make(chan struct{})
	readErrs := make(chan error, 1)
	go us.readLoop(packets, handled, readErrs)

	for {
		select {
		case pkt := <-packets:
			us.handlePacket(pkt)
			handled <- struct{}{}

		case err := <-readErrs:
			if appErr, ok := err.(*appErrors.AppError); ok {
				us.metrics.RecordErrorCode(appErr.Code)
			}
			us.clientMB.send(msgUpstreamClosed{})
			return

		case raw := <-us.inbox.ch:
			switch msg := raw.(type) {
			case msgForwardToUpstream:
				if err := us.conn.WritePacket(msg.pkt); err != nil {
					us.log.Debug("upstream write failed: %v", err)
					us.clientMB.send(msgUpstreamClosed{})
					return
				}
				us.metrics.FramesOut.Add(1)
			case msgClientClosed:
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// readLoop waits until run has handled each packet before decoding the
// next one, so SetCompression and LoginSuccess take effect on it.
func (us *UpstreamSession) readLoop(packets chan<- protocol.Packet, handled <-chan struct{}, errs chan<- error) {
	for {
		pkt, err := us.conn.ReadPacket()
		if err != nil {
			errs <- err
			return
		}
		packets <- pkt
		<-handled
	}
}

// handlePacket applies the ordering rules from SPEC_FULL.md §4.7: the
// pipeline-affecting side effect happens before the notification is
// handed to the client session, which itself must apply the matching
// effect before it sends the next frame.
func (us *UpstreamSession) handlePacket(pkt protocol.Packet) {
	us.metrics.FramesIn.Add(1)
	switch p := pkt.(type) {
	case protocol.SetCompression:
		us.conn.EnableCompression(p.Threshold)
		us.clientMB.send(msgEnableClientCompression{pkt: p, threshold: p.Threshold})

	case protocol.LoginSuccess:
		us.conn.SetProtocol(protocol.Play)
		us.clientMB.send(msgSwitchClientToPlay{pkt: p})

	case protocol.Disconnect:
		us.clientMB.send(msgForwardToClient{pkt: p})

	case protocol.Raw:
		us.clientMB.send(msgForwardToClient{pkt: p})

	default:
		us.log.Debug("upstream: unexpected packet %T, dropping", p)
	}
}

func (us *UpstreamSession) teardown() {
	us.inbox.closeRecipient()
	_ = us.conn.Close()
}
