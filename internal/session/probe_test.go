package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/carlosrabelo/mcproxy/internal/egress"
	"github.com/carlosrabelo/mcproxy/internal/mcconn"
	"github.com/carlosrabelo/mcproxy/internal/protocol"
)

func newDirectDialer(t *testing.T) *egress.Dialer {
	t.Helper()
	d, err := egress.New(&egress.Config{})
	if err != nil {
		t.Fatalf("egress.New: %v", err)
	}
	return d
}

func TestRunStatusProbeReturnsStatus(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		mc := mcconn.New(conn, protocol.ServerBound)
		pkt, err := mc.ReadPacket() // Handshake
		if err != nil {
			return
		}
		hs := pkt.(protocol.Handshake)
		mc.SetProtocol(hs.NextProtocol)
		if _, err := mc.ReadPacket(); err != nil { // StatusRequest
			return
		}
		_ = mc.WritePacket(protocol.Pong{Payload: 1}) // noise the probe must ignore
		_ = mc.WritePacket(protocol.StatusResponse{Status: `{"ok":true}`})
	}()

	status, err := runStatusProbe(context.Background(), newDirectDialer(t), ln.Addr().String())
	if err != nil {
		t.Fatalf("runStatusProbe: %v", err)
	}
	if status != `{"ok":true}` {
		t.Errorf("status = %q, want {\"ok\":true}", status)
	}
}

func TestRunStatusProbeFailsOnUnreachableHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := runStatusProbe(ctx, newDirectDialer(t), "192.0.2.1:25565"); err == nil {
		t.Error("expected an error dialing an unreachable address")
	}
}

func TestRunStatusProbeFailsWhenPeerClosesWithoutResponse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close() // drop immediately without answering
	}()

	if _, err := runStatusProbe(context.Background(), newDirectDialer(t), ln.Addr().String()); err == nil {
		t.Error("expected an error when the peer closes without a status response")
	}
}
