package minidump

// The remaining architectures — mips32/64, ppc/ppc64, sparc, riscv32/64 —
// all expose a flat bank of numbered general-purpose registers plus a
// program counter. Rather than writing six near-identical codecs, one
// parameterized codec builds all six: the variation between them is just
// register width, register count, and whether a separate link register
// trails the bank (ppc's LR is not one of its 32 GPRs).
//
// Sizes are chosen distinct from x86/amd64/arm/arm64 and from each other so
// DecodeContext's size cross-check (spec.md §3) is never ambiguous; spec.md
// only pins down the four sizes named in §6, leaving the rest an
// implementation choice.
const (
	contextSizeMIPS32  = 160
	contextSizeMIPS64  = 304
	contextSizePPC     = 204
	contextSizePPC64   = 360
	contextSizeSPARC   = 312
	contextSizeRISCV32 = 148
	contextSizeRISCV64 = 296
)

func numberedCodec(arch Arch, prefix string, wordSize, count int, hasLR bool) contextCodec {
	size := contextCodecSize(arch)
	return contextCodec{
		size: size,
		decode: func(buf []byte) (CpuContext, error) {
			return decodeNumberedContext(arch, buf, size, prefix, wordSize, count, hasLR)
		},
		encode: func(ctx CpuContext) []byte {
			return encodeNumberedContext(ctx, size, prefix, wordSize, count, hasLR)
		},
	}
}

func contextCodecSize(arch Arch) int {
	switch arch {
	case ArchMIPS32:
		return contextSizeMIPS32
	case ArchMIPS64:
		return contextSizeMIPS64
	case ArchPPC:
		return contextSizePPC
	case ArchPPC64:
		return contextSizePPC64
	case ArchSPARC:
		return contextSizeSPARC
	case ArchRISCV32:
		return contextSizeRISCV32
	case ArchRISCV64:
		return contextSizeRISCV64
	default:
		panic("minidump: contextCodecSize called for a non-numbered architecture")
	}
}

func decodeNumberedContext(arch Arch, buf []byte, size int, prefix string, wordSize, count int, hasLR bool) (CpuContext, error) {
	c := newCursor(buf)
	ctx := NewCpuContext(arch)
	ctx.Set("context_flags", uint64(c.u32()))
	readWord := c.u32AsWord
	if wordSize == 8 {
		readWord = c.u64AsWord
	}
	for i := 0; i < count; i++ {
		ctx.Set(prefix+itoa(i), readWord())
	}
	ctx.Set("pc", readWord())
	if hasLR {
		ctx.Set("lr", readWord())
	}
	c.skip(size - c.off)
	if c.err != nil {
		return CpuContext{}, c.err
	}
	return ctx, nil
}

func encodeNumberedContext(ctx CpuContext, size int, prefix string, wordSize, count int, hasLR bool) []byte {
	buf := make([]byte, size)
	w := newWriter(buf)
	w.u32(uint32(ctx.Registers["context_flags"]))
	writeWord := func(v uint64) {
		if wordSize == 8 {
			w.u64(v)
		} else {
			w.u32(uint32(v))
		}
	}
	for i := 0; i < count; i++ {
		writeWord(ctx.Registers[prefix+itoa(i)])
	}
	writeWord(ctx.Registers["pc"])
	if hasLR {
		writeWord(ctx.Registers["lr"])
	}
	return buf
}
