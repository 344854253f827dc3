package protocol

// Packet is implemented by every value the packet codec can produce or
// consume. It carries no behavior; it exists purely to constrain what a
// session handler may receive.
type Packet interface {
	isPacket()
}

// Handshake is the only packet the Handshake sub-protocol admits.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextProtocol    Protocol
}

func (Handshake) isPacket() {}

// StatusRequest asks the server to describe itself.
type StatusRequest struct{}

func (StatusRequest) isPacket() {}

// StatusResponse carries the server's status as opaque JSON text.
type StatusResponse struct {
	Status string
}

func (StatusResponse) isPacket() {}

// Ping carries an opaque payload the server must echo back as a Pong.
type Ping struct {
	Payload uint64
}

func (Ping) isPacket() {}

// Pong echoes a Ping's payload.
type Pong struct {
	Payload uint64
}

func (Pong) isPacket() {}

// LoginStart is the client's declared player name.
type LoginStart struct {
	Name string
}

func (LoginStart) isPacket() {}

// LoginSuccess completes login with the server-assigned UUID.
type LoginSuccess struct {
	UUID string
	Name string
}

func (LoginSuccess) isPacket() {}

// Disconnect carries a human-readable (JSON) reason.
type Disconnect struct {
	Reason string
}

func (Disconnect) isPacket() {}

// SetCompression announces the compression threshold to use from this
// point on; a negative Threshold disables compression.
type SetCompression struct {
	Threshold int32
}

func (SetCompression) isPacket() {}

// Raw is an opaque Play-phase packet: the codec never fails to decode
// Play traffic, it just hands back the id and the remaining bytes.
type Raw struct {
	ID   byte
	Data []byte
}

func (Raw) isPacket() {}
