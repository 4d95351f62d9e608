package minidump

import "fmt"

// Arch identifies one of the CPU context variants spec.md §3 requires.
type Arch uint32

const (
	ArchX86 Arch = iota
	ArchAMD64
	ArchARM
	ArchARM64
	ArchMIPS32
	ArchMIPS64
	ArchPPC
	ArchPPC64
	ArchSPARC
	ArchRISCV32
	ArchRISCV64
	ArchUnknown
)

func (a Arch) String() string {
	switch a {
	case ArchX86:
		return "x86"
	case ArchAMD64:
		return "amd64"
	case ArchARM:
		return "arm"
	case ArchARM64:
		return "arm64"
	case ArchMIPS32:
		return "mips32"
	case ArchMIPS64:
		return "mips64"
	case ArchPPC:
		return "ppc"
	case ArchPPC64:
		return "ppc64"
	case ArchSPARC:
		return "sparc"
	case ArchRISCV32:
		return "riscv32"
	case ArchRISCV64:
		return "riscv64"
	default:
		return "unknown"
	}
}

// WordSize returns the pointer/register width of arch, in bytes.
func (a Arch) WordSize() int {
	switch a {
	case ArchX86, ArchARM, ArchMIPS32, ArchPPC, ArchRISCV32:
		return 4
	default:
		return 8
	}
}

// CpuContext is a tagged variant over every supported architecture's
// register set (spec.md §3, §9's "tagged variant" design note). Registers
// are addressed by name rather than by a per-architecture struct field so
// that architecture-generic consumers — the CFI evaluator (pkg/breakpad)
// and the walk engine (pkg/stackwalk) — never need to switch on Arch to
// read a register.
type CpuContext struct {
	Arch      Arch
	Registers map[string]uint64
	// Valid records which register names the dumper actually captured;
	// absence from this set downgrades any frame that would depend on it
	// (spec.md §3's "validity bitmask").
	Valid map[string]bool
}

// NewCpuContext returns an empty context tagged for arch.
func NewCpuContext(arch Arch) CpuContext {
	return CpuContext{
		Arch:      arch,
		Registers: make(map[string]uint64),
		Valid:     make(map[string]bool),
	}
}

// Set records a captured register value.
func (c *CpuContext) Set(name string, v uint64) {
	c.Registers[name] = v
	c.Valid[name] = true
}

// Get returns a register's value and whether the dumper captured it.
func (c CpuContext) Get(name string) (uint64, bool) {
	if !c.Valid[name] {
		return 0, false
	}
	return c.Registers[name], true
}

// Clone returns a deep copy, used whenever a strategy needs to mutate a
// candidate caller context without disturbing the callee's.
func (c CpuContext) Clone() CpuContext {
	out := NewCpuContext(c.Arch)
	for k, v := range c.Registers {
		out.Registers[k] = v
	}
	for k, v := range c.Valid {
		out.Valid[k] = v
	}
	return out
}

// RegisterProfile names the registers every architecture exposes as
// program counter, stack pointer, and (when conventional) frame pointer —
// the three registers spec.md §4.4's strategies reason about generically.
type RegisterProfile struct {
	PC string
	SP string
	// FP lists every frame-pointer-register candidate for this
	// architecture, tried in order (spec.md §4.4: arm tries R11 then R7).
	FP []string
	// LR is the link register holding the return address directly, for
	// architectures where one exists (arm, arm64, mips, riscv, ppc via the
	// back-chain).
	LR string
}

var registerProfiles = map[Arch]RegisterProfile{
	ArchX86:     {PC: "eip", SP: "esp", FP: []string{"ebp"}},
	ArchAMD64:   {PC: "rip", SP: "rsp", FP: []string{"rbp"}},
	ArchARM:     {PC: "r15", SP: "r13", FP: []string{"r11", "r7"}, LR: "r14"},
	ArchARM64:   {PC: "pc", SP: "sp", FP: []string{"x29"}, LR: "x30"},
	ArchMIPS32:  {PC: "pc", SP: "r29", LR: "r31"},
	ArchMIPS64:  {PC: "pc", SP: "r29", LR: "r31"},
	ArchPPC:     {PC: "pc", SP: "r1", LR: "lr"},
	ArchPPC64:   {PC: "pc", SP: "r1", LR: "lr"},
	// SPARC's conventional o6/i6 (stack/frame pointer) are register
	// window slots 14 and 30 in the flat r0..r31 numbering this codec
	// uses: g0-g7=r0-7, o0-o7=r8-15, l0-l7=r16-23, i0-i7=r24-31.
	ArchSPARC: {PC: "pc", SP: "r14", FP: []string{"r30"}},
	ArchRISCV32: {PC: "pc", SP: "x2", FP: []string{"x8"}, LR: "x1"},
	ArchRISCV64: {PC: "pc", SP: "x2", FP: []string{"x8"}, LR: "x1"},
}

// Profile returns the register-naming profile for arch.
func Profile(arch Arch) (RegisterProfile, error) {
	p, ok := registerProfiles[arch]
	if !ok {
		return RegisterProfile{}, fmt.Errorf("minidump: no register profile for architecture %s", arch)
	}
	return p, nil
}

// contextCodec pairs a context record's expected on-disk size with its
// decode/encode functions, keyed by Arch. Sizes are distinct across
// architectures so a mismatched size is unambiguous evidence of a
// corrupt or misidentified context record (spec.md §3's "cross-checked
// against the context size").
type contextCodec struct {
	size   int
	decode func([]byte) (CpuContext, error)
	encode func(CpuContext) []byte
}

var contextCodecs = map[Arch]contextCodec{
	ArchX86:     {contextSizeX86, decodeX86Context, encodeX86Context},
	ArchAMD64:   {contextSizeAMD64, decodeAMD64Context, encodeAMD64Context},
	ArchARM:     {contextSizeARM, decodeARMContext, encodeARMContext},
	ArchARM64:   {contextSizeARM64, decodeARM64Context, encodeARM64Context},
	ArchMIPS32:  numberedCodec(ArchMIPS32, "r", 4, 32, false),
	ArchMIPS64:  numberedCodec(ArchMIPS64, "r", 8, 32, false),
	ArchPPC:     numberedCodec(ArchPPC, "r", 4, 32, true),
	ArchPPC64:   numberedCodec(ArchPPC64, "r", 8, 32, true),
	ArchSPARC:   numberedCodec(ArchSPARC, "r", 8, 32, false),
	ArchRISCV32: numberedCodec(ArchRISCV32, "x", 4, 32, false),
	ArchRISCV64: numberedCodec(ArchRISCV64, "x", 8, 32, false),
}

// DecodeContext decodes buf as arch's context record. It returns
// KindUnknownArchitecture when buf's length does not match the size that
// architecture's context record is specified to have.
func DecodeContext(arch Arch, buf []byte) (CpuContext, error) {
	codec, ok := contextCodecs[arch]
	if !ok {
		return CpuContext{}, newError(KindUnknownArchitecture, "no codec for architecture %s", arch)
	}
	if len(buf) != codec.size {
		return CpuContext{}, newError(KindUnknownArchitecture, "architecture %s expects a %d-byte context, got %d", arch, codec.size, len(buf))
	}
	return codec.decode(buf)
}

// EncodeContext is the inverse of DecodeContext, used by tests to build
// golden fixtures and by any future minidump-writing collaborator.
func EncodeContext(ctx CpuContext) ([]byte, error) {
	codec, ok := contextCodecs[ctx.Arch]
	if !ok {
		return nil, fmt.Errorf("minidump: no codec for architecture %s", ctx.Arch)
	}
	return codec.encode(ctx), nil
}

// ArchFromContextSize guesses an architecture purely from a context
// record's byte length, used when a stream (e.g. a bare context blob with
// no accompanying SystemInfo) must be self-describing. Returns
// ArchUnknown if no architecture's context has that exact size.
func ArchFromContextSize(size int) Arch {
	for arch, codec := range contextCodecs {
		if codec.size == size {
			return arch
		}
	}
	return ArchUnknown
}
