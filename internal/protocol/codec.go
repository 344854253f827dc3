package protocol

import (
	"fmt"

	"github.com/carlosrabelo/mcproxy/internal/wire"
)

// Decode turns a packet-id byte plus body into a typed Packet, given the
// sub-protocol and the direction the bytes travelled. Play never fails:
// unknown or unneeded ids simply become Raw. Every other (protocol,
// direction, id) combination not in the table below is a decode error.
func Decode(proto Protocol, dir Direction, id byte, body []byte) (Packet, error) {
	if proto == Play {
		return Raw{ID: id, Data: append([]byte(nil), body...)}, nil
	}

	r := wire.NewReader(body)

	switch {
	case proto == Handshake && dir == ServerBound && id == 0:
		return decodeHandshake(r)

	case proto == Status && dir == ServerBound && id == 0:
		return StatusRequest{}, nil
	case proto == Status && dir == ServerBound && id == 1:
		v, err := r.ReadUint64()
		if err != nil {
			return nil, fmt.Errorf("protocol: decoding Ping: %w", err)
		}
		return Ping{Payload: v}, nil
	case proto == Status && dir == ClientBound && id == 0:
		s, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("protocol: decoding StatusResponse: %w", err)
		}
		return StatusResponse{Status: s}, nil
	case proto == Status && dir == ClientBound && id == 1:
		v, err := r.ReadUint64()
		if err != nil {
			return nil, fmt.Errorf("protocol: decoding Pong: %w", err)
		}
		return Pong{Payload: v}, nil

	case proto == Login && dir == ServerBound && id == 0:
		name, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("protocol: decoding LoginStart: %w", err)
		}
		return LoginStart{Name: name}, nil
	case proto == Login && dir == ClientBound && id == 0:
		reason, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("protocol: decoding Disconnect: %w", err)
		}
		return Disconnect{Reason: reason}, nil
	case proto == Login && dir == ClientBound && id == 2:
		return decodeLoginSuccess(r)
	case proto == Login && dir == ClientBound && id == 3:
		threshold, err := r.ReadVarInt()
		if err != nil {
			return nil, fmt.Errorf("protocol: decoding SetCompression: %w", err)
		}
		return SetCompression{Threshold: threshold}, nil
	}

	return nil, fmt.Errorf("protocol: unknown packet (%s, %s, id=%d)", proto, dir, id)
}

func decodeHandshake(r *wire.Reader) (Packet, error) {
	version, err := r.ReadVarInt()
	if err != nil {
		return nil, fmt.Errorf("protocol: decoding Handshake.ProtocolVersion: %w", err)
	}
	addr, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("protocol: decoding Handshake.ServerAddress: %w", err)
	}
	port, err := r.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("protocol: decoding Handshake.ServerPort: %w", err)
	}
	nextRaw, err := r.ReadVarInt()
	if err != nil {
		return nil, fmt.Errorf("protocol: decoding Handshake.NextProtocol: %w", err)
	}
	next, err := ProtocolFromInt(nextRaw)
	if err != nil {
		return nil, fmt.Errorf("protocol: decoding Handshake: %w", err)
	}
	return Handshake{
		ProtocolVersion: version,
		ServerAddress:   addr,
		ServerPort:      port,
		NextProtocol:    next,
	}, nil
}

// EncodeBody encodes p into a single frame body: the packet-id byte
// followed by its encoded fields.
func EncodeBody(proto Protocol, dir Direction, p Packet) ([]byte, error) {
	id, body, err := Encode(proto, dir, p)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(body))
	out = append(out, id)
	out = append(out, body...)
	return out, nil
}

// DecodeBody splits a frame body into its packet-id byte and remaining
// bytes, then decodes it per the (proto, dir) table.
func DecodeBody(proto Protocol, dir Direction, frameBody []byte) (Packet, error) {
	if len(frameBody) == 0 {
		return nil, fmt.Errorf("protocol: empty frame body, missing packet id")
	}
	return Decode(proto, dir, frameBody[0], frameBody[1:])
}

func decodeLoginSuccess(r *wire.Reader) (Packet, error) {
	uuid, err := r.ReadUUID()
	if err != nil {
		return nil, fmt.Errorf("protocol: decoding LoginSuccess.UUID: %w", err)
	}
	name, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("protocol: decoding LoginSuccess.Name: %w", err)
	}
	return LoginSuccess{UUID: uuid, Name: name}, nil
}

// Encode turns a typed Packet into (id, body) for the given sub-protocol
// and direction. Encoding a Raw packet writes its id and bytes verbatim
// regardless of proto/dir, matching the decode side.
func Encode(proto Protocol, dir Direction, p Packet) (id byte, body []byte, err error) {
	if raw, ok := p.(Raw); ok {
		return raw.ID, raw.Data, nil
	}

	w := wire.NewWriter()
	switch v := p.(type) {
	case Handshake:
		if proto != Handshake || dir != ServerBound {
			return 0, nil, fmt.Errorf("protocol: Handshake is only valid as (Handshake, ServerBound)")
		}
		w.WriteVarInt(v.ProtocolVersion)
		w.WriteString(v.ServerAddress)
		w.WriteUint16(v.ServerPort)
		w.WriteVarInt(v.NextProtocol.ToInt())
		return 0, w.Bytes(), nil

	case StatusRequest:
		if proto != Status || dir != ServerBound {
			return 0, nil, fmt.Errorf("protocol: StatusRequest is only valid as (Status, ServerBound)")
		}
		return 0, nil, nil

	case Ping:
		if proto != Status || dir != ServerBound {
			return 0, nil, fmt.Errorf("protocol: Ping is only valid as (Status, ServerBound)")
		}
		w.WriteUint64(v.Payload)
		return 1, w.Bytes(), nil

	case StatusResponse:
		if proto != Status || dir != ClientBound {
			return 0, nil, fmt.Errorf("protocol: StatusResponse is only valid as (Status, ClientBound)")
		}
		w.WriteString(v.Status)
		return 0, w.Bytes(), nil

	case Pong:
		if proto != Status || dir != ClientBound {
			return 0, nil, fmt.Errorf("protocol: Pong is only valid as (Status, ClientBound)")
		}
		w.WriteUint64(v.Payload)
		return 1, w.Bytes(), nil

	case LoginStart:
		if proto != Login || dir != ServerBound {
			return 0, nil, fmt.Errorf("protocol: LoginStart is only valid as (Login, ServerBound)")
		}
		w.WriteString(v.Name)
		return 0, w.Bytes(), nil

	case Disconnect:
		if proto != Login || dir != ClientBound {
			return 0, nil, fmt.Errorf("protocol: Disconnect is only valid as (Login, ClientBound)")
		}
		w.WriteString(v.Reason)
		return 0, w.Bytes(), nil

	case LoginSuccess:
		if proto != Login || dir != ClientBound {
			return 0, nil, fmt.Errorf("protocol: LoginSuccess is only valid as (Login, ClientBound)")
		}
		w.WriteUUID(v.UUID)
		w.WriteString(v.Name)
		return 2, w.Bytes(), nil

	case SetCompression:
		if proto != Login || dir != ClientBound {
			return 0, nil, fmt.Errorf("protocol: SetCompression is only valid as (Login, ClientBound)")
		}
		w.WriteVarInt(v.Threshold)
		return 3, w.Bytes(), nil

	default:
		return 0, nil, fmt.Errorf("protocol: unencodable packet type %T", p)
	}
}
