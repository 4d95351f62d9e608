package minidump

// contextSizeAMD64 matches spec.md §6's example: a 1232-byte context
// record identifies an amd64 thread. As with x86, trailing bytes are an
// opaque XMM/FP save area the stack walker never reads.
const contextSizeAMD64 = 1232

var amd64GPRs = []string{
	"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rbp", "rsp", "rip",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}
var amd64Segments = []string{"cs", "ss", "ds", "es", "fs", "gs"}

func decodeAMD64Context(buf []byte) (CpuContext, error) {
	c := newCursor(buf)
	ctx := NewCpuContext(ArchAMD64)
	ctx.Set("context_flags", uint64(c.u32()))
	c.skip(4) // alignment padding
	for _, name := range amd64Segments {
		ctx.Set(name, uint64(c.u32()))
	}
	ctx.Set("eflags", uint64(c.u32()))
	for i := 0; i < 4; i++ {
		ctx.Set(drRegName(i), c.u64())
	}
	for _, name := range amd64GPRs {
		ctx.Set(name, c.u64())
	}
	c.skip(contextSizeAMD64 - c.off)
	if c.err != nil {
		return CpuContext{}, c.err
	}
	return ctx, nil
}

func encodeAMD64Context(ctx CpuContext) []byte {
	buf := make([]byte, contextSizeAMD64)
	w := newWriter(buf)
	w.u32(uint32(ctx.Registers["context_flags"]))
	w.u32(0)
	for _, name := range amd64Segments {
		w.u32(uint32(ctx.Registers[name]))
	}
	w.u32(uint32(ctx.Registers["eflags"]))
	for i := 0; i < 4; i++ {
		w.u64(ctx.Registers[drRegName(i)])
	}
	for _, name := range amd64GPRs {
		w.u64(ctx.Registers[name])
	}
	return buf
}
