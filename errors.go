package chatstream

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrTransport indicates the chunk source ended abnormally.
	ErrTransport = errors.New("transport failure")

	// ErrProtocol indicates the chunk sequence violates the stream contract:
	// an output index out of range, a changing output count, or a stream
	// position moving backwards.
	ErrProtocol = errors.New("protocol inconsistency")

	// ErrUnknownFinishReason indicates a finish reason name is not recognized.
	ErrUnknownFinishReason = errors.New("unknown finish reason")

	// ErrSourceClosed indicates Next was called on a closed Source.
	ErrSourceClosed = errors.New("source closed")
)
