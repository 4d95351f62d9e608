package stackwalk

import (
	"context"
	"fmt"
	"testing"

	"github.com/grafana/crashproc/pkg/breakpad"
	"github.com/grafana/crashproc/pkg/minidump"
	"github.com/stretchr/testify/require"
)

type fakeMemory map[uint64]uint64

func (m fakeMemory) ReadMemoryAt(addr uint64, dst []byte) error {
	return fmt.Errorf("fakeMemory: ReadMemoryAt unsupported")
}

func (m fakeMemory) ReadWordAt(addr uint64, wordSize int) (uint64, error) {
	v, ok := m[addr]
	if !ok {
		return 0, fmt.Errorf("fakeMemory: no word at %#x", addr)
	}
	return v, nil
}

type fakeModules struct {
	mod minidump.Module
}

func (f fakeModules) ModuleAtAddress(addr uint64) (minidump.Module, bool) {
	if addr >= f.mod.BaseAddress && addr < f.mod.BaseAddress+uint64(f.mod.Size) {
		return f.mod, true
	}
	return minidump.Module{}, false
}

type fakeSymbols struct {
	functions   map[uint64]string
	cfi         map[uint64]breakpad.CfiRuleSet
	interrupted map[uint64]bool
}

func (f fakeSymbols) ResolveLine(ctx context.Context, debugFile, debugIdentifier string, addr uint64) (string, string, uint32, bool, error) {
	if f.interrupted[addr] {
		return "", "", 0, false, &breakpad.Error{Kind: breakpad.KindInterrupted, Msg: "test interrupt"}
	}
	fn, ok := f.functions[addr]
	if !ok {
		return "", "", 0, false, nil
	}
	return fn, "main.c", 1, true, nil
}

func (f fakeSymbols) FindCfiRules(ctx context.Context, debugFile, debugIdentifier string, addr uint64) (breakpad.CfiRuleSet, bool, error) {
	rules, ok := f.cfi[addr]
	return rules, ok, nil
}

func (f fakeSymbols) FindWinRecord(ctx context.Context, debugFile, debugIdentifier string, addr uint64) (breakpad.WinStackRecord, bool, error) {
	return breakpad.WinStackRecord{}, false, nil
}

func (f fakeSymbols) InlineFrames(ctx context.Context, debugFile, debugIdentifier string, addr uint64, maxDepth int) ([]breakpad.InlineRecord, error) {
	return nil, nil
}

func TestWalkFramePointerChain(t *testing.T) {
	mod := minidump.Module{BaseAddress: 0x401000, Size: 0x1000, DebugFile: "app", DebugIdentifier: "id1"}
	mem := fakeMemory{
		0x7000: 0x7010, // saved rbp at frame 0's rbp
		0x7008: 0x401100,
	}
	symbols := fakeSymbols{functions: map[uint64]string{0: "main", 0x100: "caller"}}

	w := NewWalker(fakeModules{mod: mod}, mem, symbols, Options{AMD64UseFramePointer: true}, nil)

	ctx := minidump.NewCpuContext(minidump.ArchAMD64)
	ctx.Set("rip", 0x401000)
	ctx.Set("rsp", 0x6FF8)
	ctx.Set("rbp", 0x7000)

	stack, err := w.Walk(context.Background(), ctx)
	require.NoError(t, err)
	require.Len(t, stack, 2)
	require.Equal(t, TrustContext, stack[0].Trust)
	require.Equal(t, "main", stack[0].Function)
	require.Equal(t, TrustFramePointer, stack[1].Trust)
	require.Equal(t, "caller", stack[1].Function)
	require.Equal(t, uint64(0x401100), stack[1].InstructionAddr)
}

func TestWalkCFIPreferredOverFramePointer(t *testing.T) {
	mod := minidump.Module{BaseAddress: 0x401000, Size: 0x1000, DebugFile: "app", DebugIdentifier: "id1"}
	mem := fakeMemory{}
	symbols := fakeSymbols{
		functions: map[uint64]string{0: "main"},
		cfi: map[uint64]breakpad.CfiRuleSet{
			0: {Rules: map[string]string{".cfa": "rsp 16 +", ".ra": ".cfa 8 - ^"}},
		},
	}
	mem[0x7008] = 0x401200 // return address read by the ".ra" rule
	mem[0x7000] = 0x7010   // saved rbp, so the frame-pointer strategy could also recover a caller

	w := NewWalker(fakeModules{mod: mod}, mem, symbols, Options{AMD64UseFramePointer: true}, nil)
	ctx := minidump.NewCpuContext(minidump.ArchAMD64)
	ctx.Set("rip", 0x401000)
	ctx.Set("rsp", 0x7000)
	ctx.Set("rbp", 0x7000)

	stack, err := w.Walk(context.Background(), ctx)
	require.NoError(t, err)
	require.Len(t, stack, 2)
	require.Equal(t, TrustCFI, stack[1].Trust)
	require.Equal(t, uint64(0x401200), stack[1].InstructionAddr)
	require.Equal(t, uint64(0x7010), mustGet(stack[1].Context, "rsp"))
}

func TestWalkStopsAtEntrySentinel(t *testing.T) {
	mod := minidump.Module{BaseAddress: 0x401000, Size: 0x1000, DebugFile: "app", DebugIdentifier: "id1"}
	symbols := fakeSymbols{functions: map[uint64]string{0: "main"}}
	w := NewWalker(fakeModules{mod: mod}, fakeMemory{}, symbols, Options{
		EntryPointSentinels: map[uint64]bool{0x401000: true},
	}, nil)
	ctx := minidump.NewCpuContext(minidump.ArchAMD64)
	ctx.Set("rip", 0x401000)
	ctx.Set("rsp", 0x7000)

	stack, err := w.Walk(context.Background(), ctx)
	require.NoError(t, err)
	require.Len(t, stack, 1)
}

func TestWalkAbortsOnInterrupt(t *testing.T) {
	mod := minidump.Module{BaseAddress: 0x401000, Size: 0x1000, DebugFile: "app", DebugIdentifier: "id1"}
	mem := fakeMemory{
		0x7000: 0x7010,
		0x7008: 0x401100,
	}
	symbols := fakeSymbols{
		functions:   map[uint64]string{0: "main", 0x100: "caller"},
		interrupted: map[uint64]bool{0x100: true},
	}
	w := NewWalker(fakeModules{mod: mod}, mem, symbols, Options{AMD64UseFramePointer: true}, nil)
	ctx := minidump.NewCpuContext(minidump.ArchAMD64)
	ctx.Set("rip", 0x401000)
	ctx.Set("rsp", 0x6FF8)
	ctx.Set("rbp", 0x7000)

	stack, err := w.Walk(context.Background(), ctx)
	require.ErrorIs(t, err, ErrInterrupted)
	require.Len(t, stack, 1)
	require.Equal(t, "main", stack[0].Function)
}

func mustGet(c minidump.CpuContext, name string) uint64 {
	v, _ := c.Get(name)
	return v
}
