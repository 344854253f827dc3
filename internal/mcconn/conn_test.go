package mcconn

import (
	"net"
	"testing"
	"time"

	"github.com/carlosrabelo/mcproxy/internal/protocol"
)

func TestWriteReadPacketRoundTrip(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	// clientSide writes ServerBound bytes (Handshake, LoginStart, ...),
	// so its Conn reads ClientBound; serverSide reads ServerBound.
	client := New(clientSide, protocol.ClientBound)
	server := New(serverSide, protocol.ServerBound)

	hs := protocol.Handshake{ProtocolVersion: 757, ServerAddress: "play.example.com", ServerPort: 25565, NextProtocol: protocol.Login}
	done := make(chan error, 1)
	go func() { done <- client.WritePacket(hs) }()

	pkt, err := server.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if pkt != protocol.Packet(hs) {
		t.Errorf("got %+v, want %+v", pkt, hs)
	}
}

func TestReadPacketAcrossMultipleSocketReads(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	client := New(clientSide, protocol.ClientBound)
	server := New(serverSide, protocol.ServerBound)
	client.SetProtocol(protocol.Login)
	server.SetProtocol(protocol.Login)

	start := protocol.LoginStart{Name: "Steve"}
	encoded, err := client.pipe.Encode(start)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Deliver the frame in two separate socket writes, so ReadPacket has
	// to read from the socket more than once before the packet decodes.
	done := make(chan error, 1)
	go func() {
		if _, err := clientSide.Write(encoded[:2]); err != nil {
			done <- err
			return
		}
		_, err := clientSide.Write(encoded[2:])
		done <- err
	}()

	pkt, err := server.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Write: %v", err)
	}
	if pkt != protocol.Packet(start) {
		t.Errorf("got %+v, want %+v", pkt, start)
	}
}

func TestSetProtocolAndEnableCompression(t *testing.T) {
	clientSide, _ := net.Pipe()
	defer clientSide.Close()
	c := New(clientSide, protocol.ClientBound)

	if c.Protocol() != protocol.Handshake {
		t.Fatalf("initial Protocol() = %v, want Handshake", c.Protocol())
	}
	c.SetProtocol(protocol.Play)
	if c.Protocol() != protocol.Play {
		t.Errorf("Protocol() = %v, want Play", c.Protocol())
	}
	c.EnableCompression(64) // should not panic; no direct getter to assert on
}

func TestCloseIsIdempotent(t *testing.T) {
	clientSide, _ := net.Pipe()
	c := New(clientSide, protocol.ClientBound)
	if c.Closed() {
		t.Fatal("expected not closed initially")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !c.Closed() {
		t.Error("expected Closed() true after Close")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestReadPacketErrorsAfterPeerCloses(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	server := New(serverSide, protocol.ServerBound)
	_ = clientSide.Close()

	if _, err := server.ReadPacket(); err == nil {
		t.Error("expected an error reading from a closed peer")
	}
}

func TestSetDeadline(t *testing.T) {
	clientSide, _ := net.Pipe()
	defer clientSide.Close()
	c := New(clientSide, protocol.ClientBound)
	if err := c.SetDeadline(time.Now().Add(time.Second)); err != nil {
		t.Errorf("SetDeadline: %v", err)
	}
}
