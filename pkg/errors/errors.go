package errors

import "fmt"

// Distinguished error codes the proxy's core reasons about. Each maps
// to one of the error kinds in SPEC_FULL.md §7; all of them close the
// affected connection and, where a peer session exists, notify it via
// Disconnect rather than propagating further.
const (
	CodeProtocol    = "protocol"
	CodeIO          = "io"
	CodeRouting     = "routing"
	CodeCompression = "compression"
	CodePeerGone    = "peer_gone"
)

// AppError represents an application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

// IsCode reports whether e carries the given Code.
func (e *AppError) IsCode(code string) bool {
	return e != nil && e.Code == code
}

// Protocol wraps err as a ProtocolError.
func Protocol(message string, err error) *AppError {
	return Wrap(CodeProtocol, message, err)
}

// IO wraps err as an IoError.
func IO(message string, err error) *AppError {
	return Wrap(CodeIO, message, err)
}

// Routing wraps err as a RoutingError.
func Routing(message string) *AppError {
	return New(CodeRouting, message)
}

// Compression wraps err as a CompressionError.
func Compression(message string, err error) *AppError {
	return Wrap(CodeCompression, message, err)
}

// PeerGone reports that the peer session has ended.
func PeerGone(message string) *AppError {
	return New(CodePeerGone, message)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping another error
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
