package minidump

// The Linux-specific streams breakpad appends to a dump (spec.md §6) are
// all opaque text blobs copied verbatim from /proc at dump time — there is
// no binary structure for the reader to decode, only a byte range to hand
// back to the caller.
type (
	LinuxCPUInfo     []byte
	LinuxProcStatus  []byte
	LinuxLSBRelease  []byte
	LinuxCmdLine     []byte
	LinuxEnviron     []byte
	LinuxAuxv        []byte
	LinuxMaps        []byte
	LinuxDSODebug    []byte
)

// BreakpadInfo is the BreakpadInfoStream payload: which thread (if any) is
// the dumper thread, and which thread (if any) requested the dump. When a
// dump has no Exception stream, the assembler uses DumpThreadID to pick the
// crash-context thread; it does not exclude any thread's stack from the
// report.
type BreakpadInfo struct {
	DumpThreadID      *uint32
	RequestingThreadID *uint32
}

const (
	breakpadInfoValidDumpThreadID   = 1 << 0
	breakpadInfoValidRequestingTID  = 1 << 1
)

func parseBreakpadInfo(buf []byte) (BreakpadInfo, error) {
	c := newCursor(buf)
	validity := c.u32()
	dumpTID := c.u32()
	reqTID := c.u32()
	if c.err != nil {
		return BreakpadInfo{}, c.err
	}
	var info BreakpadInfo
	if validity&breakpadInfoValidDumpThreadID != 0 {
		info.DumpThreadID = &dumpTID
	}
	if validity&breakpadInfoValidRequestingTID != 0 {
		info.RequestingThreadID = &reqTID
	}
	return info, nil
}

// AssertionInfo carries a failed assertion's message, location, and type,
// for dumps produced by an explicit assert() rather than a signal/SEH
// exception.
type AssertionInfo struct {
	Expression string
	Function   string
	File       string
	Line       uint32
	Type       uint32
}

func parseAssertionInfo(buf []byte) (AssertionInfo, error) {
	c := newCursor(buf)
	readFixedUTF16 := func(charCount int) string {
		raw := c.bytes(charCount * 2)
		if raw == nil {
			return ""
		}
		// Fixed-width fields are NUL-padded; trim at the first zero code
		// unit before decoding.
		for i := 0; i+1 < len(raw); i += 2 {
			if raw[i] == 0 && raw[i+1] == 0 {
				raw = raw[:i]
				break
			}
		}
		return decodeUTF16LE(raw)
	}
	info := AssertionInfo{
		Expression: readFixedUTF16(128),
		Function:   readFixedUTF16(128),
		File:       readFixedUTF16(128),
	}
	info.Line = c.u32()
	info.Type = c.u32()
	if c.err != nil {
		return AssertionInfo{}, c.err
	}
	return info, nil
}

// CrashpadInfo carries vendor (Crashpad) extension metadata. The core
// treats it as an opaque, version-tagged blob: it is never required for
// stack walking, only preserved for callers that want to inspect it.
type CrashpadInfo struct {
	Version uint32
	Raw     []byte
}

func parseCrashpadInfo(buf []byte) (CrashpadInfo, error) {
	c := newCursor(buf)
	version := c.u32()
	if c.err != nil {
		return CrashpadInfo{}, c.err
	}
	return CrashpadInfo{Version: version, Raw: append([]byte(nil), buf...)}, nil
}
