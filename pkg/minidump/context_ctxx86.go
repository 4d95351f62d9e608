package minidump

// contextSizeX86 matches spec.md §6's example: a 716-byte context record
// identifies an x86 thread. The trailing bytes are the FXSAVE-style
// floating point/XMM save area; the stack walker never reads it, so it is
// kept as opaque padding rather than modeled field-by-field.
const contextSizeX86 = 716

var x86GPRs = []string{"eax", "ebx", "ecx", "edx", "esi", "edi", "ebp", "esp", "eip"}
var x86Segments = []string{"cs", "ds", "es", "fs", "gs", "ss"}

func decodeX86Context(buf []byte) (CpuContext, error) {
	c := newCursor(buf)
	ctx := NewCpuContext(ArchX86)
	ctx.Set("context_flags", uint64(c.u32()))
	for _, name := range x86GPRs {
		ctx.Set(name, uint64(c.u32()))
	}
	ctx.Set("eflags", uint64(c.u32()))
	for _, name := range x86Segments {
		ctx.Set(name, uint64(c.u32()))
	}
	for i := 0; i < 8; i++ {
		ctx.Set(drRegName(i), uint64(c.u32()))
	}
	c.skip(contextSizeX86 - c.off)
	if c.err != nil {
		return CpuContext{}, c.err
	}
	return ctx, nil
}

func encodeX86Context(ctx CpuContext) []byte {
	buf := make([]byte, contextSizeX86)
	w := newWriter(buf)
	w.u32(uint32(ctx.Registers["context_flags"]))
	for _, name := range x86GPRs {
		w.u32(uint32(ctx.Registers[name]))
	}
	w.u32(uint32(ctx.Registers["eflags"]))
	for _, name := range x86Segments {
		w.u32(uint32(ctx.Registers[name]))
	}
	for i := 0; i < 8; i++ {
		w.u32(uint32(ctx.Registers[drRegName(i)]))
	}
	return buf
}

func drRegName(i int) string {
	return "dr" + itoa(i)
}
