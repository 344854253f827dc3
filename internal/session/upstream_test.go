package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/carlosrabelo/mcproxy/internal/mcconn"
	"github.com/carlosrabelo/mcproxy/internal/metrics"
	"github.com/carlosrabelo/mcproxy/internal/protocol"
	"github.com/carlosrabelo/mcproxy/pkg/logger"
)

func newUpstreamUnderTest(t *testing.T) (*UpstreamSession, *mailbox, net.Conn) {
	t.Helper()
	serverSide, upstreamSideConn := net.Pipe()
	clientMB := newMailbox()
	us := newUpstreamSession(upstreamSideConn, clientMB, metrics.NewCollector(), logger.Default)
	return us, clientMB, serverSide
}

func TestUpstreamForwardsRawToClientMailbox(t *testing.T) {
	us, clientMB, serverSide := newUpstreamUnderTest(t)
	defer serverSide.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go us.run(ctx)

	srv := mcconn.New(serverSide, protocol.ServerBound)
	srv.SetProtocol(protocol.Play)
	payload := protocol.Raw{ID: 0x20, Data: []byte("play data")}
	if err := srv.WritePacket(payload); err != nil {
		t.Fatalf("write raw: %v", err)
	}

	select {
	case raw := <-clientMB.ch:
		msg, ok := raw.(msgForwardToClient)
		if !ok {
			t.Fatalf("got %T, want msgForwardToClient", raw)
		}
		got, ok := msg.pkt.(protocol.Raw)
		if !ok || got.ID != payload.ID || string(got.Data) != string(payload.Data) {
			t.Errorf("got %+v, want %+v", msg.pkt, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered to client mailbox")
	}
}

func TestUpstreamSetCompressionOrdering(t *testing.T) {
	us, clientMB, serverSide := newUpstreamUnderTest(t)
	defer serverSide.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go us.run(ctx)

	srv := mcconn.New(serverSide, protocol.ServerBound)
	srv.SetProtocol(protocol.Login)
	if err := srv.WritePacket(protocol.SetCompression{Threshold: 128}); err != nil {
		t.Fatalf("write SetCompression: %v", err)
	}

	select {
	case raw := <-clientMB.ch:
		msg, ok := raw.(msgEnableClientCompression)
		if !ok {
			t.Fatalf("got %T, want msgEnableClientCompression", raw)
		}
		if msg.threshold != 128 {
			t.Errorf("threshold = %d, want 128", msg.threshold)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered to client mailbox")
	}

	// The upstream side's own pipeline must already have compression
	// enabled by the time the notification was sent: verify by writing the
	// next Login packet through a compressing pipeline and checking that
	// the upstream session still decodes it. SetCompression does not
	// change the sub-protocol, so both sides stay on Login.
	srv.EnableCompression(128)
	if err := srv.WritePacket(protocol.Disconnect{Reason: "after compression"}); err != nil {
		t.Fatalf("write after enabling compression: %v", err)
	}
	select {
	case raw := <-clientMB.ch:
		msg, ok := raw.(msgForwardToClient)
		if !ok {
			t.Fatalf("got %T, want msgForwardToClient", raw)
		}
		got, ok := msg.pkt.(protocol.Disconnect)
		if !ok || got.Reason != "after compression" {
			t.Errorf("got %+v", msg.pkt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered after compression was enabled")
	}
}

func TestUpstreamLoginSuccessSwitchesOwnProtocolBeforeNotifying(t *testing.T) {
	us, clientMB, serverSide := newUpstreamUnderTest(t)
	defer serverSide.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go us.run(ctx)

	srv := mcconn.New(serverSide, protocol.ServerBound)
	srv.SetProtocol(protocol.Login)
	success := protocol.LoginSuccess{UUID: "069a79f4-44e9-4726-a5be-fca90e38aaf5", Name: "Steve"}
	if err := srv.WritePacket(success); err != nil {
		t.Fatalf("write LoginSuccess: %v", err)
	}

	select {
	case raw := <-clientMB.ch:
		msg, ok := raw.(msgSwitchClientToPlay)
		if !ok {
			t.Fatalf("got %T, want msgSwitchClientToPlay", raw)
		}
		got, ok := msg.pkt.(protocol.LoginSuccess)
		if !ok || got != success {
			t.Errorf("got %+v, want %+v", msg.pkt, success)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered to client mailbox")
	}

	// By the time the notification was sent, us.conn must already be on
	// Play: a subsequent Raw write from the real server must decode fine
	// without another SetProtocol call on this side.
	srv.SetProtocol(protocol.Play)
	if err := srv.WritePacket(protocol.Raw{ID: 5, Data: []byte("play!")}); err != nil {
		t.Fatalf("write play packet: %v", err)
	}
	select {
	case raw := <-clientMB.ch:
		if _, ok := raw.(msgForwardToClient); !ok {
			t.Fatalf("got %T, want msgForwardToClient", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered after switching to Play")
	}
}

func TestUpstreamForwardsClientPacketsToSocket(t *testing.T) {
	us, _, serverSide := newUpstreamUnderTest(t)
	defer serverSide.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go us.run(ctx)

	srv := mcconn.New(serverSide, protocol.ServerBound)
	srv.SetProtocol(protocol.Play)

	us.sendToUpstream(protocol.Raw{ID: 7, Data: []byte("hi server")})

	_ = serverSide.SetDeadline(time.Now().Add(2 * time.Second))
	pkt, err := srv.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	raw, ok := pkt.(protocol.Raw)
	if !ok || raw.ID != 7 || string(raw.Data) != "hi server" {
		t.Errorf("got %+v", pkt)
	}
}

func TestUpstreamNotifyClientClosedStopsRun(t *testing.T) {
	us, _, serverSide := newUpstreamUnderTest(t)
	defer serverSide.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		us.run(ctx)
		close(runDone)
	}()

	us.notifyClientClosed()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not exit after notifyClientClosed")
	}
}
