// Package breakpad implements the Symbol Supplier and Resolver components
// (spec.md §4.3): a pluggable lookup of debug-symbol bytes, a textual
// symbol-file parser, and a postfix CFI expression evaluator used by
// pkg/stackwalk's CFI unwind strategy.
package breakpad

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a Resolver/evaluator error, per
// spec.md §7's per-module and per-frame error kinds.
type Kind int

const (
	// KindNotFound means the Supplier reported NotFound for a module.
	KindNotFound Kind = iota
	// KindInterrupted means the Supplier reported Interrupt or
	// InterruptAndRetry.
	KindInterrupted
	// KindCorruptSymbols means a module's symbol file failed to parse
	// (missing MODULE header or a malformed mandatory field).
	KindCorruptSymbols
	// KindEvaluationFailed means a CFI expression referenced unreadable
	// memory, divided by zero, or an unknown identifier.
	KindEvaluationFailed
	// KindExpressionStackOverflow means a postfix expression's operand
	// stack exceeded its depth limit.
	KindExpressionStackOverflow
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInterrupted:
		return "interrupted"
	case KindCorruptSymbols:
		return "corrupt_symbols"
	case KindEvaluationFailed:
		return "evaluation_failed"
	case KindExpressionStackOverflow:
		return "expression_stack_overflow"
	default:
		return "unknown"
	}
}

// Error is the error type every breakpad operation returns.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("breakpad: %s: %s", e.Kind, e.Msg)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
