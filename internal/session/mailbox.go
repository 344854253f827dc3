package session

import "github.com/carlosrabelo/mcproxy/internal/protocol"

// mailbox is the non-owning, message-passing handle a session uses to
// notify its peer. Sending never blocks indefinitely and never panics
// on a peer that has already torn down: once the recipient closes
// done, further sends are silently dropped.
type mailbox struct {
	ch   chan any
	done chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		ch:   make(chan any, 8),
		done: make(chan struct{}),
	}
}

// send delivers msg unless the recipient has already torn down.
func (m *mailbox) send(msg any) {
	select {
	case m.ch <- msg:
	case <-m.done:
	}
}

// closeRecipient marks the mailbox's owner as gone; safe to call more
// than once.
func (m *mailbox) closeRecipient() {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

// Messages delivered to a ClientSession's mailbox, originating from the
// UpstreamSession it owns.
type msgForwardToClient struct {
	pkt protocol.Packet
}

// msgEnableClientCompression carries a forwarded SetCompression packet;
// the client session must write it, then enable compression on its own
// pipeline, in that order.
type msgEnableClientCompression struct {
	pkt       protocol.Packet
	threshold int32
}

// msgSwitchClientToPlay carries a forwarded LoginSuccess packet; the
// client session must write it first, while its own pipeline is still
// on Login (the codec only accepts LoginSuccess as (Login,
// ClientBound)), and only then switch its pipeline to Play.
type msgSwitchClientToPlay struct {
	pkt protocol.Packet
}

// msgUpstreamClosed notifies the client session that its upstream peer
// has torn down.
type msgUpstreamClosed struct{}

// Messages delivered to an UpstreamSession's mailbox, originating from
// the ClientSession that owns it.
type msgForwardToUpstream struct {
	pkt protocol.Packet
}

// msgClientClosed notifies the upstream session that its client peer
// has torn down.
type msgClientClosed struct{}
