package stackwalk

import "errors"

// ErrInterrupted is returned by Walk when the Symbol Supplier aborted a
// lookup cooperatively (spec.md §5: "Interrupt" is the walk's only
// suspension point). The CallStack already accumulated is still valid and
// is returned alongside this error; the frame whose module lookup was
// interrupted is never appended.
var ErrInterrupted = errors.New("stackwalk: symbol lookup interrupted")
