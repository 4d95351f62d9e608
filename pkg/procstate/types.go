// Package procstate assembles the final crash report (spec.md §4.5): crash
// context selection, per-thread stack walks, crash-reason lookup, and
// module/symbol bookkeeping, combined into one ProcessState value.
package procstate

import (
	"github.com/grafana/crashproc/pkg/minidump"
	"github.com/grafana/crashproc/pkg/stackwalk"
)

// Status mirrors spec.md §7's enumerated ProcessState.status strings.
// StatusCorruptDump is never produced by Assemble itself — minidump.New
// already rejects a dump that can't even yield a header and directory,
// before a ProcessState can exist — it is reserved for a caller that
// wants to surface that earlier failure using the same enum.
type Status string

const (
	StatusCrashed        Status = "crashed"
	StatusNoCrashContext Status = "no crash context"
	StatusInterrupted    Status = "interrupted"
	StatusCorruptDump    Status = "corrupt_dump"
)

// ThreadState pairs one ThreadList entry's identity with its recovered
// call stack.
type ThreadState struct {
	ThreadID uint32
	Stack    stackwalk.CallStack
}

// ProcessState is the Process State Assembler's output (spec.md §3).
type ProcessState struct {
	OS     string
	CPU    string
	Status Status

	Crashed               bool
	CrashReason           string
	CrashAddress          uint64
	RequestingThreadIndex int // -1 when no thread is designated

	Threads []ThreadState
	Modules []minidump.Module

	ModulesWithoutSymbols     []minidump.Module
	ModulesWithCorruptSymbols []minidump.Module
}
