package vio

import (
	"errors"
	"fmt"
)

// Status is the result code carried by every VIO response. It implements
// error so that node implementations can return statuses directly and
// connections can translate arbitrary errors back into wire codes.
type Status uint32

const (
	// StatusOK - Success
	StatusOK Status = 0

	// StatusIO - Generic backing failure
	StatusIO Status = 1

	// StatusInvalidArgs - Malformed or contradictory arguments
	StatusInvalidArgs Status = 2

	// StatusNotSupported - Operation not supported by this node or connection
	StatusNotSupported Status = 3

	// StatusAccessDenied - Connection rights do not permit the operation
	StatusAccessDenied Status = 4

	// StatusNotFound - No entry with the given name
	StatusNotFound Status = 5

	// StatusAlreadyExists - An entry with the given name already exists
	StatusAlreadyExists Status = 6

	// StatusNotFile - A file was required but the target is not one
	StatusNotFile Status = 7

	// StatusNotDir - A directory was required but the target is not one
	StatusNotDir Status = 8

	// StatusBadPath - The path is malformed
	StatusBadPath Status = 9

	// StatusOutOfRange - Offset or count outside the representable range
	StatusOutOfRange Status = 10

	// StatusBadHandle - The connection cannot perform the operation at all
	// (missing right, or a node reference asked to do I/O)
	StatusBadHandle Status = 11

	// StatusBufferTooSmall - The supplied budget cannot hold even one record
	StatusBufferTooSmall Status = 12

	// StatusNoSpace - The backing entry cannot grow any further
	StatusNoSpace Status = 13
)

// Error implements the error interface. StatusOK is a valid error value but
// should never be returned as one.
func (s Status) Error() string {
	return s.String()
}

// String returns the canonical name of the status code, suitable for logs.
// Unknown codes are rendered as "STATUS_<code>".
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusIO:
		return "IO"
	case StatusInvalidArgs:
		return "INVALID_ARGS"
	case StatusNotSupported:
		return "NOT_SUPPORTED"
	case StatusAccessDenied:
		return "ACCESS_DENIED"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusAlreadyExists:
		return "ALREADY_EXISTS"
	case StatusNotFile:
		return "NOT_FILE"
	case StatusNotDir:
		return "NOT_DIR"
	case StatusBadPath:
		return "BAD_PATH"
	case StatusOutOfRange:
		return "OUT_OF_RANGE"
	case StatusBadHandle:
		return "BAD_HANDLE"
	case StatusBufferTooSmall:
		return "BUFFER_TOO_SMALL"
	case StatusNoSpace:
		return "NO_SPACE"
	default:
		return fmt.Sprintf("STATUS_%d", uint32(s))
	}
}

// StatusOf maps an error to the status code reported on the wire. A nil error
// is StatusOK, a Status (possibly wrapped) passes through unchanged, and any
// foreign error collapses to StatusIO.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return StatusIO
}
