package minidump

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a minidump parsing error, per spec.md §7.
type Kind int

const (
	// KindBadSignature means the first four bytes were not "MDMP".
	KindBadSignature Kind = iota
	// KindTruncated means a length field pointed past the end of the file.
	KindTruncated
	// KindStreamOverrun means a stream's declared size exceeded the slice
	// available for it.
	KindStreamOverrun
	// KindBadStreamVersion means a stream's version field was unrecognized.
	KindBadStreamVersion
	// KindMissingStream means a caller explicitly requested a stream that
	// is not present in the directory.
	KindMissingStream
	// KindUnknownArchitecture means the SystemInfo processor architecture,
	// or a context record's size, did not match any supported CpuContext
	// variant.
	KindUnknownArchitecture
)

func (k Kind) String() string {
	switch k {
	case KindBadSignature:
		return "bad_signature"
	case KindTruncated:
		return "truncated"
	case KindStreamOverrun:
		return "stream_overrun"
	case KindBadStreamVersion:
		return "bad_stream_version"
	case KindMissingStream:
		return "missing_stream"
	case KindUnknownArchitecture:
		return "unknown_architecture"
	default:
		return "unknown"
	}
}

// Error is the error type returned by Reader parsing operations.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("minidump: %s: %s", e.Kind, e.Msg)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is, or wraps, a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var me *Error
	return errors.As(err, &me) && me.Kind == kind
}
