package coordinator

import "errors"

// Sentinel errors for coordinator operations. Routing failures come from
// the terminal package (terminal.ErrNoTerminalRegistered,
// terminal.ErrUnknownTerminal).
var (
	ErrAckTimeout          = errors.New("no acknowledgment before deadline")
	ErrTransport           = errors.New("transport publish failed")
	ErrStopped             = errors.New("coordinator is stopped")
	ErrInvalidRegistration = errors.New("invalid registration")
)
