package session

import (
	"context"
	"time"

	"github.com/carlosrabelo/mcproxy/internal/egress"
	"github.com/carlosrabelo/mcproxy/internal/mcconn"
	"github.com/carlosrabelo/mcproxy/internal/protocol"
)

// Legacy handshake fields the probe sends upstream on every server's
// behalf; a real client's values never reach the probe, so they are
// fixed constants (SPEC_FULL.md §4.8).
const (
	probeProtocolVersion int32  = 57
	probeServerAddress   string = "127.0.0.1"
	probeServerPort      uint16 = 25565
	probeTimeout                = 5 * time.Second
)

// probeResult is the single-shot outcome of a status probe, delivered
// to the requesting ClientSession's mailbox.
type probeResult struct {
	status string
	err    error
}

// runStatusProbe opens a short-lived connection to addr, performs the
// synthetic Status handshake, and returns the server's status string.
// It never forwards anything other than the one StatusResponse it is
// looking for; Pong and any unexpected packet are ignored.
func runStatusProbe(ctx context.Context, dialer *egress.Dialer, addr string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	conn, err := dialer.DialContext(ctx, addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	mc := mcconn.New(conn, protocol.ClientBound)

	hs := protocol.Handshake{
		ProtocolVersion: probeProtocolVersion,
		ServerAddress:   probeServerAddress,
		ServerPort:      probeServerPort,
		NextProtocol:    protocol.Status,
	}
	if err := mc.WritePacket(hs); err != nil {
		return "", err
	}
	mc.SetProtocol(protocol.Status)
	if err := mc.WritePacket(protocol.StatusRequest{}); err != nil {
		return "", err
	}

	for {
		pkt, err := mc.ReadPacket()
		if err != nil {
			return "", err
		}
		switch p := pkt.(type) {
		case protocol.StatusResponse:
			return p.Status, nil
		case protocol.Pong:
			continue
		default:
			continue
		}
	}
}
