package procstate

import (
	"context"

	"github.com/grafana/crashproc/pkg/breakpad"
	"github.com/grafana/crashproc/pkg/minidump"
	"github.com/grafana/crashproc/pkg/modreg"
	"github.com/grafana/crashproc/pkg/stackwalk"
)

// Assemble implements the Process State Assembler (spec.md §4.5): it
// selects the crash context, walks every thread, and classifies every
// module a frame touched by symbol-lookup outcome.
func Assemble(ctx context.Context, reader *minidump.Reader, resolver *breakpad.Resolver, opts stackwalk.Options) (*ProcessState, error) {
	modules, _ := reader.Modules()
	registry := modreg.New(modules)

	sysInfo, _ := reader.SystemInfo()
	state := &ProcessState{
		OS:                    platformOSName(sysInfo.PlatformID),
		CPU:                   sysInfo.Arch.String(),
		Modules:               modules,
		RequestingThreadIndex: -1,
	}

	threads, _ := reader.Threads()
	requestingThreadID, crashContext, crashed := selectCrashContext(reader, threads)
	if crashed {
		state.Crashed = true
		state.Status = StatusCrashed
		ex, _ := reader.Exception()
		state.CrashAddress = ex.ExceptionAddr
		state.CrashReason = crashReason(sysInfo.PlatformID, ex.ExceptionCode, ex.ExceptionFlags)
	}

	for i, t := range threads {
		if requestingThreadID != nil && t.ThreadID == *requestingThreadID {
			state.RequestingThreadIndex = i
		}
	}
	if requestingThreadID == nil {
		state.Status = StatusNoCrashContext
	}

	walker := stackwalk.NewWalker(registry, reader, resolver, opts, nil)

	withoutSymbols := map[string]minidump.Module{}
	withCorruptSymbols := map[string]minidump.Module{}

	for _, t := range threads {
		regs := t.Context
		if requestingThreadID != nil && t.ThreadID == *requestingThreadID {
			regs = crashContext
		}

		stack, err := walker.Walk(ctx, regs)
		state.Threads = append(state.Threads, ThreadState{ThreadID: t.ThreadID, Stack: stack})

		classifyFrames(ctx, resolver, stack, withoutSymbols, withCorruptSymbols)

		if err != nil {
			if err == stackwalk.ErrInterrupted {
				state.Status = StatusInterrupted
			}
			// spec.md §5: threads past the interruption point are absent.
			break
		}
	}

	for _, m := range withoutSymbols {
		state.ModulesWithoutSymbols = append(state.ModulesWithoutSymbols, m)
	}
	for _, m := range withCorruptSymbols {
		state.ModulesWithCorruptSymbols = append(state.ModulesWithCorruptSymbols, m)
	}

	return state, nil
}

// selectCrashContext implements spec.md §4.5's crash-context selection:
// prefer the Exception stream's embedded context; otherwise the thread
// named by BreakpadInfo's dump_thread_id (the closest analogue this
// module has to the spec's "MiscInfo dumper TID" — BreakpadInfo, not
// MiscInfo, is where breakpad-style dumpers record it); otherwise thread
// index 0 with crashed=false.
func selectCrashContext(reader *minidump.Reader, threads []minidump.Thread) (*uint32, minidump.CpuContext, bool) {
	if ex, ok := reader.Exception(); ok {
		tid := ex.ThreadID
		return &tid, ex.ThreadContext, true
	}
	if bi, ok := reader.BreakpadInfo(); ok && bi.DumpThreadID != nil {
		for _, t := range threads {
			if t.ThreadID == *bi.DumpThreadID {
				return bi.DumpThreadID, t.Context, false
			}
		}
	}
	if len(threads) > 0 {
		tid := threads[0].ThreadID
		return &tid, threads[0].Context, false
	}
	return nil, minidump.CpuContext{}, false
}

// classifyFrames records, for every module any frame in stack references
// without resolved function data, whether the Resolver reports it missing
// or corrupt (spec.md §4.5).
func classifyFrames(ctx context.Context, resolver *breakpad.Resolver, stack stackwalk.CallStack, withoutSymbols, withCorruptSymbols map[string]minidump.Module) {
	for _, f := range stack {
		if f.Module == nil || f.Function != "" {
			continue
		}
		key := f.Module.DebugFile + "\x00" + f.Module.DebugIdentifier
		if _, seen := withoutSymbols[key]; seen {
			continue
		}
		if _, seen := withCorruptSymbols[key]; seen {
			continue
		}
		table, err := resolver.Load(ctx, f.Module.DebugFile, f.Module.DebugIdentifier)
		switch {
		case err != nil && breakpad.IsKind(err, breakpad.KindNotFound):
			withoutSymbols[key] = *f.Module
		case err == nil && table.Corrupt:
			withCorruptSymbols[key] = *f.Module
		}
	}
}
