package stackwalk

import (
	"context"

	"github.com/grafana/crashproc/pkg/breakpad"
	"github.com/grafana/crashproc/pkg/minidump"
)

// Walker recovers a CallStack from an initial crash context, per spec.md
// §4.4. Each Walk stores the architecture behavior for that walk on the
// Walker, so a Walker runs one walk at a time; it is reused sequentially
// across every thread of a ProcessState.
type Walker struct {
	Modules  ModuleLookup
	Memory   MemoryReader
	Symbols  SymbolSource
	Options  Options
	Metrics  *Metrics
	behavior behavior
}

// NewWalker builds a Walker over the given module registry, memory
// accessor, and symbol resolver. A nil metrics defaults to NewNullMetrics().
func NewWalker(modules ModuleLookup, memory MemoryReader, symbols SymbolSource, opts Options, metrics *Metrics) *Walker {
	if metrics == nil {
		metrics = NewNullMetrics()
	}
	return &Walker{Modules: modules, Memory: memory, Symbols: symbols, Options: opts, Metrics: metrics}
}

// Walk recovers the call stack starting from initial, which must be the
// thread's (or exception's) crash-time register context. Frame 0 reflects
// initial, even when every subsequent strategy fails. The returned CallStack
// is empty when initial has no valid PC or when resolving frame 0's symbols
// is interrupted (the error is then ErrInterrupted).
func (w *Walker) Walk(ctx context.Context, initial minidump.CpuContext) (CallStack, error) {
	profile, err := minidump.Profile(initial.Arch)
	if err != nil {
		return nil, err
	}
	w.behavior = behaviorFor(initial.Arch)

	var stack CallStack
	current := initial.Clone()
	trust := TrustContext

	var walkErr error
	for len(stack) < w.Options.maxFrames() {
		pc, ok := current.Get(profile.PC)
		if !ok {
			break
		}
		frame, err := w.buildFrame(ctx, current, trust, pc)
		if err != nil {
			walkErr = err
			break
		}
		stack = append(stack, frame)

		if w.Options.isEntrySentinel(pc) {
			break
		}

		caller, callerTrust, ok, err := w.recoverCaller(ctx, current, profile, frame.Module, pc, len(stack) == 1)
		if err != nil {
			walkErr = err
			break
		}
		if !ok {
			break
		}
		callerSP, _ := caller.Get(profile.SP)
		calleeSP, _ := current.Get(profile.SP)
		if callerSP <= calleeSP {
			break
		}

		current = caller
		trust = callerTrust
	}

	out := w.expandInline(ctx, stack)
	w.Metrics.observe(out)
	return out, walkErr
}

// buildFrame resolves symbol information for one physical frame. A
// KindInterrupted error from the Resolver aborts the walk entirely
// (spec.md §5); the frame that triggered it is never appended. Any other
// per-module error (KindNotFound, KindCorruptSymbols) degrades the frame
// to module-only, no function/line data, and the walk continues.
func (w *Walker) buildFrame(ctx context.Context, regs minidump.CpuContext, trust TrustLevel, pc uint64) (Frame, error) {
	frame := Frame{Context: regs, Trust: trust, InstructionAddr: pc}

	mod, ok := w.Modules.ModuleAtAddress(pc)
	if !ok {
		return frame, nil
	}
	frame.Module = &mod

	fn, file, line, found, err := w.Symbols.ResolveLine(ctx, mod.DebugFile, mod.DebugIdentifier, rva(mod, pc))
	if err != nil {
		if breakpad.IsKind(err, breakpad.KindInterrupted) {
			return Frame{}, ErrInterrupted
		}
		frame.CfiEvaluationErr = err
		return frame, nil
	}
	if found {
		frame.Function = fn
		frame.SourceFile = file
		frame.SourceLine = line
	}
	return frame, nil
}

// recoverCaller tries each strategy spec.md §4.4 names, in order, and
// returns the first one that produces a plausible caller context. A
// KindInterrupted error from any strategy's Resolver call aborts the
// walk; any other strategy error is a soft failure that falls through to
// the next strategy.
func (w *Walker) recoverCaller(ctx context.Context, callee minidump.CpuContext, profile minidump.RegisterProfile, mod *minidump.Module, pc uint64, isContextFrame bool) (minidump.CpuContext, TrustLevel, bool, error) {
	if mod != nil {
		caller, ok, err := w.tryCFI(ctx, callee, *mod, pc)
		if err != nil && breakpad.IsKind(err, breakpad.KindInterrupted) {
			return minidump.CpuContext{}, 0, false, ErrInterrupted
		}
		if err == nil && ok {
			return caller, TrustCFI, true, nil
		}
		if w.behavior.allowWinStack {
			caller, ok, err = w.tryWinStack(ctx, callee, *mod, pc)
			if err != nil && breakpad.IsKind(err, breakpad.KindInterrupted) {
				return minidump.CpuContext{}, 0, false, ErrInterrupted
			}
			if err == nil && ok {
				return caller, TrustCFI, true, nil
			}
		}
	}
	if w.behavior.allowFramePointer && (callee.Arch != minidump.ArchAMD64 || w.Options.AMD64UseFramePointer) {
		if caller, ok := w.tryFramePointer(callee, profile); ok {
			return caller, TrustFramePointer, true, nil
		}
	}
	if w.Options.AllowScan && w.behavior.allowScan {
		numWords := defaultScanWordsLater
		if isContextFrame {
			numWords = defaultScanWordsFirstFrame
		}
		if caller, ok := w.tryScan(callee, profile, numWords); ok {
			return caller, TrustScan, true, nil
		}
	}
	return minidump.CpuContext{}, 0, false, nil
}

// expandInline inserts one synthetic Frame per InlineRecord the resolver
// reports for each physical frame's instruction address, innermost-inline
// first, immediately after the physical frame it came from (spec.md §9's
// inline-expansion recommendation).
func (w *Walker) expandInline(ctx context.Context, stack CallStack) CallStack {
	if w.Symbols == nil {
		return stack
	}
	out := make(CallStack, 0, len(stack))
	for _, f := range stack {
		out = append(out, f)
		if f.Module == nil {
			continue
		}
		inlines, err := w.Symbols.InlineFrames(ctx, f.Module.DebugFile, f.Module.DebugIdentifier, rva(*f.Module, f.InstructionAddr), w.Options.maxInlineDepth())
		if err != nil || len(inlines) == 0 {
			continue
		}
		for i := len(inlines) - 1; i >= 0; i-- {
			inl := inlines[i]
			out = append(out, Frame{
				Context:         f.Context,
				Trust:           TrustInlineExpansion,
				InstructionAddr: f.InstructionAddr,
				Module:          f.Module,
				SourceLine:      inl.CallSiteLine,
			})
		}
	}
	return out
}
