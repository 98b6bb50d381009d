package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these standard errors.
var (
	// General
	ErrConfigurationError = errors.New("invalid or missing configuration")
	ErrTimeout            = errors.New("operation timed out")
	ErrShutdown           = errors.New("session is shutting down")

	// Transport / session
	ErrConnectFailed     = errors.New("failed to connect to the terminal")
	ErrChannelUnhealthy  = errors.New("channel is not connected")
	ErrNoMessage         = errors.New("no message available")
	ErrBusy              = errors.New("transport temporarily unable to accept message")
	ErrTransportClosed   = errors.New("transport already closed")
	ErrUnsupportedSocket = errors.New("operation not supported by this socket kind")

	// Historical acquisition
	ErrPayloadMalformed  = errors.New("payload could not be parsed")
	ErrNotAvailable      = errors.New("symbol or timeframe not available on the terminal")
	ErrTimeframeMismatch = errors.New("payload timeframe does not match request")

	// Persistence
	ErrStoreFailed = errors.New("series persistence failed")
)
