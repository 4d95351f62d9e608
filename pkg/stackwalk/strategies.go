package stackwalk

import (
	"context"

	"github.com/grafana/crashproc/pkg/breakpad"
	"github.com/grafana/crashproc/pkg/minidump"
)

// rva converts an absolute runtime address into the module-relative offset
// breakpad symbol files index by.
func rva(m minidump.Module, addr uint64) uint64 {
	if addr < m.BaseAddress {
		return 0
	}
	return addr - m.BaseAddress
}

// tryCFI implements spec.md §4.4 strategy 1: evaluate the STACK CFI
// program covering the callee's instruction address against the callee's
// register set, producing the caller's .cfa (stack pointer) and .ra
// (return address/PC), plus any named callee-saved registers the rules
// recovered.
func (w *Walker) tryCFI(ctx context.Context, callee minidump.CpuContext, module minidump.Module, pc uint64) (minidump.CpuContext, bool, error) {
	rules, ok, err := w.Symbols.FindCfiRules(ctx, module.DebugFile, module.DebugIdentifier, rva(module, pc))
	if err != nil || !ok {
		return minidump.CpuContext{}, false, err
	}

	readWord := func(addr uint64) (uint64, error) {
		return w.Memory.ReadWordAt(addr, callee.Arch.WordSize())
	}
	result, err := breakpad.Evaluate(rules, callee.Registers, readWord)
	if err != nil {
		return minidump.CpuContext{}, false, err
	}

	profile, perr := minidump.Profile(callee.Arch)
	if perr != nil {
		return minidump.CpuContext{}, false, nil
	}
	caller := minidump.NewCpuContext(callee.Arch)
	for name, val := range result {
		switch name {
		case ".cfa":
			caller.Set(profile.SP, val)
		case ".ra":
			caller.Set(profile.PC, w.behavior.stripReturnAddress(val))
		default:
			caller.Set(name, val)
		}
	}
	if _, ok := caller.Get(profile.PC); !ok {
		return minidump.CpuContext{}, false, nil
	}
	if _, ok := caller.Get(profile.SP); !ok {
		return minidump.CpuContext{}, false, nil
	}
	return caller, true, nil
}

// tryWinStack implements spec.md §4.4 strategy 2, the Windows x86 STACK
// WIN path. Breakpad's own stack-frame "program" bytecode recovers
// arbitrary callee-saved registers; no reference implementation of that
// interpreter was available to ground against, so this implements only
// the common program-less case — a standard prolog with local/saved-
// register sizes given directly by the record — and declines (falls
// through to frame-pointer/scan) whenever a record carries a custom
// program string.
func (w *Walker) tryWinStack(ctx context.Context, callee minidump.CpuContext, module minidump.Module, pc uint64) (minidump.CpuContext, bool, error) {
	rec, ok, err := w.Symbols.FindWinRecord(ctx, module.DebugFile, module.DebugIdentifier, rva(module, pc))
	if err != nil || !ok || rec.HasProgram {
		return minidump.CpuContext{}, false, err
	}

	esp, ok := callee.Get("esp")
	if !ok {
		return minidump.CpuContext{}, false, nil
	}
	// Return address sits just past the locals and saved registers the
	// record declares, below the parameters the caller pushed.
	raAddr := esp + uint64(rec.LocalsSize) + uint64(rec.SavedRegsSize)
	ra, err := w.Memory.ReadWordAt(raAddr, 4)
	if err != nil {
		return minidump.CpuContext{}, false, nil
	}
	callerESP := raAddr + 4 + uint64(rec.ParamSize)

	caller := minidump.NewCpuContext(minidump.ArchX86)
	caller.Set("eip", ra)
	caller.Set("esp", callerESP)
	if ebp, ok := callee.Get("ebp"); ok {
		caller.Set("ebp", ebp)
	}
	return caller, true, nil
}

// tryFramePointer implements spec.md §4.4 strategy 3: a conventional
// saved-FP / return-address pair at the top of the callee's frame.
func (w *Walker) tryFramePointer(callee minidump.CpuContext, profile minidump.RegisterProfile) (minidump.CpuContext, bool) {
	for _, fpName := range profile.FP {
		fp, ok := callee.Get(fpName)
		if !ok || fp == 0 {
			continue
		}
		wordSize := callee.Arch.WordSize()

		var ra uint64
		var callerFP uint64
		var err error
		if profile.LR != "" {
			// Architectures with a dedicated link register (arm, mips,
			// ppc, riscv) save the caller's FP at [fp], and the return
			// address is whatever that caller's own LR held — which this
			// walker cannot see directly, so it treats [fp] as the saved
			// FP chain link and [fp+wordSize] as the saved return address,
			// the layout breakpad's own frame-pointer fallback assumes.
			callerFP, err = w.Memory.ReadWordAt(fp, wordSize)
			if err != nil {
				continue
			}
			ra, err = w.Memory.ReadWordAt(fp+uint64(wordSize), wordSize)
		} else {
			// x86/amd64: [fp] holds the saved frame pointer, [fp+wordSize]
			// the return address pushed by CALL.
			callerFP, err = w.Memory.ReadWordAt(fp, wordSize)
			if err != nil {
				continue
			}
			ra, err = w.Memory.ReadWordAt(fp+uint64(wordSize), wordSize)
		}
		if err != nil || ra == 0 {
			continue
		}

		caller := minidump.NewCpuContext(callee.Arch)
		caller.Set(profile.PC, w.behavior.stripReturnAddress(ra))
		caller.Set(profile.SP, fp+2*uint64(wordSize))
		for _, name := range profile.FP {
			caller.Set(name, callerFP)
		}
		return caller, true
	}
	return minidump.CpuContext{}, false
}

// tryScan implements spec.md §4.4 strategy 4: scan consecutive stack
// words for a value that plausibly points into a loaded module's code.
// numWords bounds how far the scan looks, per the spec's distinct
// first-frame/later-frame search budgets.
func (w *Walker) tryScan(callee minidump.CpuContext, profile minidump.RegisterProfile, numWords int) (minidump.CpuContext, bool) {
	sp, ok := callee.Get(profile.SP)
	if !ok {
		return minidump.CpuContext{}, false
	}
	wordSize := callee.Arch.WordSize()
	for i := 0; i < numWords; i++ {
		addr := sp + uint64(i*wordSize)
		word, err := w.Memory.ReadWordAt(addr, wordSize)
		if err != nil {
			break
		}
		candidate := w.behavior.stripReturnAddress(word)
		if _, ok := w.Modules.ModuleAtAddress(candidate); !ok {
			continue
		}
		caller := minidump.NewCpuContext(callee.Arch)
		caller.Set(profile.PC, candidate)
		caller.Set(profile.SP, addr+uint64(wordSize))
		return caller, true
	}
	return minidump.CpuContext{}, false
}
