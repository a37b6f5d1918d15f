package iccom

import "errors"

// Error kinds from spec.md §7. Protocol-level faults (ProtocolFault,
// Duplicate) are fully recovered internally and never returned from the
// consumer API; nothing in this package returns ErrResourceExhausted,
// ErrProtocolFault or ErrDuplicate, and the error-rate governor tracks
// those faults by ErrorKind instead.
var (
	ErrResourceExhausted = errors.New("iccom: resource exhausted")
	ErrTransportFault    = errors.New("iccom: transport fault")
	ErrProtocolFault     = errors.New("iccom: protocol fault")
	ErrDuplicate         = errors.New("iccom: duplicate package")
	ErrInvalidChannel    = errors.New("iccom: invalid channel")
	ErrInvalidArgument   = errors.New("iccom: invalid argument")
	ErrClosing           = errors.New("iccom: engine is closing")

	ErrMessageNotFound  = errors.New("iccom: message not found")
	ErrMessageFinalized = errors.New("iccom: message already finalized")
	ErrFrameTooSmall    = errors.New("iccom: frame size too small for package overhead")
	ErrTruncatedPacket  = errors.New("iccom: truncated packet")
)
