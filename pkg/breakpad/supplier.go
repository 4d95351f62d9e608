package breakpad

import "context"

// LookupResult is the outcome of a Supplier lookup (spec.md §4.3).
type LookupResult int

const (
	// NotFound means no symbol file exists for the requested module.
	NotFound LookupResult = iota
	// Interrupt means the caller should abort the in-progress walk
	// cooperatively; the Resolver propagates this as KindInterrupted.
	Interrupt
	// Found carries the symbol file's bytes via LookupOutcome.Data.
	Found
	// InterruptAndRetry is handled exactly like Interrupt: the Resolver
	// reports KindInterrupted and, as for every result other than Found,
	// caches nothing, so a later walk may retry the same module.
	InterruptAndRetry
)

// LookupOutcome is a Supplier's full answer: the result tag plus, for
// Found, the symbol file's raw bytes.
type LookupOutcome struct {
	Result LookupResult
	Data   []byte
}

// Supplier is the external interface the core never bypasses: the
// Resolver always goes through a Supplier instead of touching the
// filesystem directly (spec.md §4.3), so it can be backed by a URL
// downloader, a directory scan, or a test fixture with identical core
// behavior.
type Supplier interface {
	Locate(ctx context.Context, debugFile, debugIdentifier string) (LookupOutcome, error)
}

// SupplierFunc adapts a plain function to the Supplier interface, the
// same "func as interface" pattern breakpad's own Go port of its
// DebuginfodClient interface uses for swapping HTTP/test implementations.
type SupplierFunc func(ctx context.Context, debugFile, debugIdentifier string) (LookupOutcome, error)

// Locate implements Supplier.
func (f SupplierFunc) Locate(ctx context.Context, debugFile, debugIdentifier string) (LookupOutcome, error) {
	return f(ctx, debugFile, debugIdentifier)
}

// NullSupplier always reports NotFound, mirroring the teacher's
// NullDebugInfoStore nil-object: a safe default when no real symbol
// source has been configured.
type NullSupplier struct{}

// Locate implements Supplier.
func (NullSupplier) Locate(context.Context, string, string) (LookupOutcome, error) {
	return LookupOutcome{Result: NotFound}, nil
}
