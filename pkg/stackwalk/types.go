// Package stackwalk implements the per-architecture Stackwalker (spec.md
// §4.4): a single generic walk engine dispatching to architecture-specific
// behavior through minidump.Arch's register profile and a small per-arch
// behavior table, rather than eleven duplicated class hierarchies — the
// "tagged variant plus capability set" design spec.md §9 calls for.
package stackwalk

import (
	"github.com/grafana/crashproc/pkg/minidump"
)

// TrustLevel records how a Frame's register values were recovered
// (spec.md §8: exactly one frame per walk may claim Context).
type TrustLevel int

const (
	// TrustContext is frame-0: copied directly from the crash context.
	TrustContext TrustLevel = iota
	// TrustCFI means CFI rules (or, on x86, a STACK WIN record without a
	// program string) recovered this frame.
	TrustCFI
	// TrustFramePointer means a conventional frame-pointer chain
	// recovered this frame.
	TrustFramePointer
	// TrustScan means a heuristic stack scan recovered this frame.
	TrustScan
	// TrustInlineExpansion marks a synthetic frame produced by inline
	// expansion of a physical frame; it shares that frame's SP.
	TrustInlineExpansion
)

func (t TrustLevel) String() string {
	switch t {
	case TrustContext:
		return "context"
	case TrustCFI:
		return "cfi"
	case TrustFramePointer:
		return "frame_pointer"
	case TrustScan:
		return "scan"
	case TrustInlineExpansion:
		return "inline_expansion"
	default:
		return "unknown"
	}
}

// Frame is one entry in a CallStack: a recovered register context plus
// whatever symbol information the Resolver supplied for its instruction
// address.
type Frame struct {
	Context          minidump.CpuContext
	Trust            TrustLevel
	InstructionAddr  uint64
	Module           *minidump.Module
	Function         string
	SourceFile       string
	SourceLine       uint32
	CfiEvaluationErr error // non-interrupt error from resolving this frame's symbols; CFI failures are not recorded
}

// CallStack is an ordered sequence of Frames, innermost first (spec.md
// §4.4); see Walker.Walk for when it is empty.
type CallStack []Frame

// ModuleLookup is the subset of pkg/modreg.Registry the walker needs.
type ModuleLookup interface {
	ModuleAtAddress(addr uint64) (minidump.Module, bool)
}

// MemoryReader is the subset of minidump.Reader the walker needs to read
// stack and heap bytes during unwinding.
type MemoryReader interface {
	ReadMemoryAt(address uint64, dst []byte) error
	ReadWordAt(address uint64, wordSize int) (uint64, error)
}

// Options configures one walk (spec.md §9's "ProcessorOptions",
// replacing the source's process-wide mutable configuration with an
// explicit struct threaded through the call).
type Options struct {
	// AllowScan permits the stack-scan strategy; false disables strategy
	// 4 entirely regardless of architecture.
	AllowScan bool
	// MaxFrames bounds the walk; 0 means the spec's default of 1024.
	MaxFrames int
	// AMD64UseFramePointer opts into the amd64 frame-pointer strategy,
	// which spec.md §9 leaves disabled by default.
	AMD64UseFramePointer bool
	// MaxInlineDepth bounds inline expansion per physical frame; 0 means
	// the spec's recommended default of 16.
	MaxInlineDepth int
	// EntryPointSentinels marks PC values that terminate a walk even
	// though they resolve to a plausible caller (spec.md §4.4 condition c).
	EntryPointSentinels map[uint64]bool
}

const (
	defaultMaxFrames           = 1024
	defaultMaxInlineDepth      = 16
	defaultScanWordsFirstFrame = 30
	defaultScanWordsLater      = 1024
)

func (o Options) maxFrames() int {
	if o.MaxFrames > 0 {
		return o.MaxFrames
	}
	return defaultMaxFrames
}

func (o Options) maxInlineDepth() int {
	if o.MaxInlineDepth > 0 {
		return o.MaxInlineDepth
	}
	return defaultMaxInlineDepth
}

func (o Options) isEntrySentinel(pc uint64) bool {
	return o.EntryPointSentinels != nil && o.EntryPointSentinels[pc]
}
