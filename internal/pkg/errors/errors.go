package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a duplicate-key insert, e.g. two appends racing
	// for the same (session_id, msg_index) slot.
	ErrConflict = errors.New("conflict")
	// ErrEncode signals an entity that failed validation before encoding.
	ErrEncode = errors.New("encode failed")
	// ErrDecode signals malformed cache bytes. Readers treat it as a miss.
	ErrDecode = errors.New("decode failed")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnavailable signals an unreachable backing store.
	ErrUnavailable = errors.New("store unavailable")
)
