package stackwalk

import "github.com/grafana/crashproc/pkg/minidump"

// behavior carries the per-architecture capability flags spec.md §4.4's
// strategy table needs beyond register naming (already in
// minidump.RegisterProfile): which strategies apply at all, and any
// arch-specific fixup a recovered value needs before it is trusted.
type behavior struct {
	// allowWinStack restricts the Windows STACK WIN strategy to the one
	// architecture breakpad ever emitted it for.
	allowWinStack bool
	// allowFramePointer gates the frame-pointer strategy; amd64 also
	// requires Options.AMD64UseFramePointer since its ABI doesn't
	// guarantee a frame-pointer chain.
	allowFramePointer bool
	// allowScan gates the stack-scan strategy; sparc's register windows
	// make scan results too unreliable to attempt (spec.md §4.4 note).
	allowScan bool
	// stripReturnAddress fixes up a value read from the stack before it is
	// treated as a return address — arm64's pointer-authentication high
	// bits being the one case in this set.
	stripReturnAddress func(uint64) uint64
}

func identity(v uint64) uint64 { return v }

// stripARM64PAC clears the pointer-authentication code and top byte
// (bits 48-63) that breakpad's arm64 dumps may leave in a return address,
// the one arch-specific fixup spec.md §4.4 calls out by name.
func stripARM64PAC(v uint64) uint64 {
	return v & 0x0000FFFFFFFFFFFF
}

var behaviors = map[minidump.Arch]behavior{
	minidump.ArchX86:     {allowWinStack: true, allowFramePointer: true, allowScan: true, stripReturnAddress: identity},
	minidump.ArchAMD64:   {allowFramePointer: true, allowScan: true, stripReturnAddress: identity},
	minidump.ArchARM:     {allowFramePointer: true, allowScan: true, stripReturnAddress: identity},
	minidump.ArchARM64:   {allowFramePointer: true, allowScan: true, stripReturnAddress: stripARM64PAC},
	minidump.ArchMIPS32:  {allowFramePointer: false, allowScan: true, stripReturnAddress: identity},
	minidump.ArchMIPS64:  {allowFramePointer: false, allowScan: true, stripReturnAddress: identity},
	minidump.ArchPPC:     {allowFramePointer: true, allowScan: true, stripReturnAddress: identity},
	minidump.ArchPPC64:   {allowFramePointer: true, allowScan: true, stripReturnAddress: identity},
	minidump.ArchSPARC:   {allowFramePointer: true, allowScan: false, stripReturnAddress: identity},
	minidump.ArchRISCV32: {allowFramePointer: true, allowScan: true, stripReturnAddress: identity},
	minidump.ArchRISCV64: {allowFramePointer: true, allowScan: true, stripReturnAddress: identity},
}

func behaviorFor(arch minidump.Arch) behavior {
	b, ok := behaviors[arch]
	if !ok {
		return behavior{stripReturnAddress: identity}
	}
	return b
}
