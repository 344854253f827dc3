// Package session implements the two connection-handling state
// machines described in SPEC_FULL.md §4.6-§4.8: ClientSession (one per
// player connection) and UpstreamSession (one per upstream server
// connection, owned by exactly one ClientSession during Login/Play).
package session

import (
	"context"
	"net"
	"time"

	"github.com/carlosrabelo/mcproxy/internal/egress"
	"github.com/carlosrabelo/mcproxy/internal/mcconn"
	"github.com/carlosrabelo/mcproxy/internal/metrics"
	"github.com/carlosrabelo/mcproxy/internal/protocol"
	"github.com/carlosrabelo/mcproxy/internal/routing"
	appErrors "github.com/carlosrabelo/mcproxy/pkg/errors"
	"github.com/carlosrabelo/mcproxy/pkg/logger"
)

// clientState is the ClientSession state machine of SPEC_FULL.md §4.6.
type clientState int

const (
	stateAwaitHandshake clientState = iota
	stateAwaitStatus
	stateAwaitLogin
	stateForwarding
	stateClosed
)

func (s clientState) String() string {
	switch s {
	case stateAwaitHandshake:
		return "AwaitHandshake"
	case stateAwaitStatus:
		return "AwaitStatus"
	case stateAwaitLogin:
		return "AwaitLogin"
	case stateForwarding:
		return "Forwarding"
	case stateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ClientSession drives one player connection end to end: handshake,
// status or login, then transparent forwarding once an upstream
// session has been established. It owns the UpstreamSession it creates
// and is the only session that calls its methods directly; all traffic
// in the other direction arrives through cs.inbox.
type ClientSession struct {
	conn    *mcconn.Conn
	router  *routing.Router
	dialer  *egress.Dialer
	metrics *metrics.Collector
	log     *logger.Logger

	inbox *mailbox

	// handshakeTimeout bounds AwaitHandshake and AwaitStatus (SPEC_FULL.md
	// §5 Timeouts); zero disables it. Cleared once the session leaves
	// those two states.
	handshakeTimeout time.Duration

	state      clientState
	handshake  *protocol.Handshake
	route      *routing.Route
	playerName string
	upstream   *UpstreamSession
}

// New creates a ClientSession wrapping an accepted player connection.
// handshakeTimeout bounds the pre-Login phases; pass 0 to disable it.
func New(conn net.Conn, router *routing.Router, dialer *egress.Dialer, m *metrics.Collector, log *logger.Logger, handshakeTimeout time.Duration) *ClientSession {
	return &ClientSession{
		conn:             mcconn.New(conn, protocol.ServerBound),
		router:           router,
		dialer:           dialer,
		metrics:          m,
		log:              log,
		inbox:            newMailbox(),
		handshakeTimeout: handshakeTimeout,
		state:            stateAwaitHandshake,
	}
}

// Run drives the session's actor loop until the connection closes,
// either because of a socket/protocol error or because ctx is
// cancelled (proxy shutdown).
func (cs *ClientSession) Run(ctx context.Context) {
	cs.metrics.IncrementClientSessions()
	defer cs.metrics.DecrementClientSessions()
	defer cs.teardown()

	if cs.handshakeTimeout > 0 {
		_ = cs.conn.SetDeadline(time.Now().Add(cs.handshakeTimeout))
	}

	packets := make(chan protocol.Packet)
	handled := make(chan struct{})
	readErrs := make(chan error, 1)
	go cs.readLoop(packets, handled, readErrs)

	for {
		select {
		case pkt := <-packets:
			ok := cs.handlePacket(ctx, pkt)
			handled <- struct{}{}
			if !ok {
				return
			}

		case err := <-readErrs:
			if appErr, ok := err.(*appErrors.AppError); ok {
				cs.metrics.RecordErrorCode(appErr.Code)
			}
			cs.log.Debug("client %s read error: %v", cs.conn.RemoteAddr(), err)
			return

		case raw := <-cs.inbox.ch:
			if !cs.handleMailbox(raw) {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// readLoop waits until Run has handled each packet before decoding the
// next one, so a protocol switch made by the handler applies to it.
func (cs *ClientSession) readLoop(packets chan<- protocol.Packet, handled <-chan struct{}, errs chan<- error) {
	for {
		pkt, err := cs.conn.ReadPacket()
		if err != nil {
			errs <- err
			return
		}
		packets <- pkt
		<-handled
	}
}

// handlePacket dispatches an inbound client packet by current state.
// Returns false when the session should terminate.
func (cs *ClientSession) handlePacket(ctx context.Context, pkt protocol.Packet) bool {
	cs.metrics.FramesIn.Add(1)

	switch cs.state {
	case stateAwaitHandshake:
		return cs.handleHandshake(pkt)

	case stateAwaitStatus:
		return cs.handleStatusPacket(ctx, pkt)

	case stateAwaitLogin:
		return cs.handleLoginPacket(ctx, pkt)

	case stateForwarding:
		return cs.handleForwardingPacket(pkt)

	default:
		return false
	}
}

func (cs *ClientSession) handleHandshake(pkt protocol.Packet) bool {
	hs, ok := pkt.(protocol.Handshake)
	if !ok {
		cs.log.Debug("client %s: expected Handshake, got %T", cs.conn.RemoteAddr(), pkt)
		return false
	}

	route, err := cs.router.Resolve(hs.ServerAddress)
	if err != nil {
		cs.metrics.RecordErrorCode(appErrors.CodeRouting)
		cs.log.Debug("client %s: %v", cs.conn.RemoteAddr(), err)
		return false
	}

	cs.handshake = &hs
	cs.route = route
	cs.conn.SetProtocol(hs.NextProtocol)

	switch hs.NextProtocol {
	case protocol.Status:
		cs.state = stateAwaitStatus
	case protocol.Login:
		cs.state = stateAwaitLogin
		if cs.handshakeTimeout > 0 {
			_ = cs.conn.SetDeadline(time.Time{})
		}
	default:
		return false
	}
	return true
}

func (cs *ClientSession) handleStatusPacket(ctx context.Context, pkt protocol.Packet) bool {
	switch p := pkt.(type) {
	case protocol.StatusRequest:
		go cs.runProbe(ctx)
		return true

	case protocol.Ping:
		if err := cs.conn.WritePacket(protocol.Pong{Payload: p.Payload}); err != nil {
			return false
		}
		cs.metrics.FramesOut.Add(1)
		return true

	default:
		return false
	}
}

func (cs *ClientSession) runProbe(ctx context.Context) {
	status, err := runStatusProbe(ctx, cs.dialer, cs.route.Addr.String())
	cs.inbox.send(probeResult{status: status, err: err})
}

func (cs *ClientSession) handleLoginPacket(ctx context.Context, pkt protocol.Packet) bool {
	start, ok := pkt.(protocol.LoginStart)
	if !ok {
		return false
	}

	cs.playerName = start.Name
	cs.route.AddPlayer(cs.playerName)

	upConn, err := cs.dialer.DialContext(ctx, cs.route.Addr.String())
	if err != nil {
		cs.metrics.RecordErrorCode(appErrors.CodeIO)
		cs.log.Debug("client %s: dial upstream %s: %v", cs.conn.RemoteAddr(), cs.route.Addr, err)
		return false
	}

	upstream := newUpstreamSession(upConn, cs.inbox, cs.metrics, cs.log)
	upHandshake := protocol.Handshake{
		ProtocolVersion: cs.handshake.ProtocolVersion,
		ServerAddress:   cs.handshake.ServerAddress,
		ServerPort:      cs.handshake.ServerPort,
		NextProtocol:    protocol.Login,
	}
	if err := upstream.conn.WritePacket(upHandshake); err != nil {
		_ = upConn.Close()
		return false
	}
	upstream.conn.SetProtocol(protocol.Login)
	if err := upstream.conn.WritePacket(start); err != nil {
		_ = upConn.Close()
		return false
	}

	cs.upstream = upstream
	cs.metrics.LoginsTotal.Add(1)
	go upstream.run(ctx)

	cs.state = stateForwarding
	return true
}

func (cs *ClientSession) handleForwardingPacket(pkt protocol.Packet) bool {
	if cs.upstream == nil {
		return false
	}
	cs.upstream.sendToUpstream(pkt)
	return true
}

// handleMailbox processes a message from the upstream session this
// client owns, or a status-probe result. Returns false when the
// session should terminate.
func (cs *ClientSession) handleMailbox(raw any) bool {
	switch msg := raw.(type) {
	case probeResult:
		if msg.err != nil {
			cs.metrics.StatusProbesFailed.Add(1)
			cs.log.Debug("client %s: status probe failed: %v", cs.conn.RemoteAddr(), msg.err)
			return false
		}
		cs.metrics.StatusProbesOK.Add(1)
		if err := cs.conn.WritePacket(protocol.StatusResponse{Status: msg.status}); err != nil {
			return false
		}
		cs.metrics.FramesOut.Add(1)
		return true

	case msgForwardToClient:
		if err := cs.conn.WritePacket(msg.pkt); err != nil {
			return false
		}
		cs.metrics.FramesOut.Add(1)
		return true

	case msgEnableClientCompression:
		if err := cs.conn.WritePacket(msg.pkt); err != nil {
			return false
		}
		cs.conn.EnableCompression(msg.threshold)
		cs.metrics.FramesOut.Add(1)
		return true

	case msgSwitchClientToPlay:
		if err := cs.conn.WritePacket(msg.pkt); err != nil {
			return false
		}
		cs.conn.SetProtocol(protocol.Play)
		cs.metrics.FramesOut.Add(1)
		return true

	case msgUpstreamClosed:
		return false

	default:
		return true
	}
}

// teardown runs exactly once, from Run's single goroutine, regardless
// of which path triggered it: socket error, protocol error, peer
// close, or shutdown. That single call site is what makes the
// player-list removal idempotent-by-construction.
func (cs *ClientSession) teardown() {
	cs.state = stateClosed
	cs.inbox.closeRecipient()
	_ = cs.conn.Close()

	if cs.route != nil && cs.playerName != "" {
		cs.route.RemovePlayer(cs.playerName)
	}
	if cs.upstream != nil {
		cs.upstream.notifyClientClosed()
	}
}
