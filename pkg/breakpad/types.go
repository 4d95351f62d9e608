package breakpad

// File is a FILE record: a source path keyed by an ID unique within its
// module's symbol table.
type File struct {
	ID   int
	Path string
}

// InlineOrigin is an INLINE_ORIGIN record: the name of a function that
// was inlined somewhere, keyed by an ID referenced from INLINE records.
type InlineOrigin struct {
	ID   int
	Name string
}

// LineRecord is one LINE record, belonging to the most recently emitted
// FUNC.
type LineRecord struct {
	Address uint64
	Size    uint64
	Line    uint32
	FileID  int
}

// InlineRange is one (address, size) pair an INLINE record covers; a
// single inlined instance may cover more than one disjoint range.
type InlineRange struct {
	Address uint64
	Size    uint64
}

// InlineRecord is one INLINE record: an inlined call, nested at Depth
// inside its enclosing FUNC, originating from CallSiteFile/CallSiteLine
// and attributed to OriginID.
type InlineRecord struct {
	Depth        int
	CallSiteLine uint32
	CallSiteFile int
	OriginID     int
	Ranges       []InlineRange
}

// Func is a FUNC record: one function's address range, parameter size,
// and name, plus the LINE and INLINE records nested under it.
type Func struct {
	Address   uint64
	Size      uint64
	ParamSize uint64
	Name      string
	Multiple  bool
	Lines     []LineRecord
	Inlines   []InlineRecord
}

// Public is a PUBLIC record: an exported symbol with no line-number
// information.
type Public struct {
	Address   uint64
	ParamSize uint64
	Name      string
	Multiple  bool
}

// WinStackRecord is a STACK WIN record (x86-only Windows unwind info).
type WinStackRecord struct {
	Type               uint32
	RVA                uint64
	CodeSize           uint64
	PrologSize         uint32
	EpilogSize         uint32
	ParamSize          uint32
	SavedRegsSize      uint32
	LocalsSize         uint32
	MaxStackSize       uint32
	HasProgram         bool
	ProgramOrFrameType string
}

// CfiInit is a STACK CFI INIT record: the start of a CFI region and its
// baseline register-recovery rules.
type CfiInit struct {
	Address uint64
	Size    uint64
	Rules   map[string]string
}

// CfiDelta is a STACK CFI record (without INIT): rules that take effect
// from Address onward, within the enclosing CfiInit's range.
type CfiDelta struct {
	Address uint64
	Rules   map[string]string
}

// CfiRuleSet is find_cfi_rules' result: the INIT rules merged with every
// delta up to and including the target address (spec.md §4.3).
type CfiRuleSet struct {
	Rules map[string]string
}
