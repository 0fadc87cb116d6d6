package contracts

import "errors"

// Errors returned by sessions, codecs and transports. They are always
// wrapped, so compare with errors.Is.
var (
	ErrDeviceUnavailable  = errors.New("device unavailable")
	ErrTransportWrite     = errors.New("transport write error")
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnsupportedMessage = errors.New("unsupported message")
	ErrTimedOut           = errors.New("request timed out")
	ErrSessionClosed      = errors.New("session closed")
	ErrInvalidAddress     = errors.New("invalid parameter address")
	ErrInvalidValue       = errors.New("invalid parameter value")
	ErrUnsupportedOS      = errors.New("unsupported operating system")
	ErrUnknownBackend     = errors.New("unknown MIDI backend")
)
