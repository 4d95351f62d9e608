package procstate

import (
	"fmt"

	"github.com/grafana/crashproc/pkg/minidump"
)

// reasonEntry names the base crash-reason string for one (platform, code)
// pair, with an optional flags-keyed suffix table (spec.md §6's example:
// Linux SIGSEGV distinguishes /MAPERR from /ACCERR via exception_flags).
type reasonEntry struct {
	base     string
	suffixes map[uint32]string
}

// crashReasons is intentionally non-exhaustive (spec.md §4.5): an unknown
// (platform, code) pair falls back to a bare hex string rather than
// erroring.
var crashReasons = map[minidump.PlatformID]map[uint32]reasonEntry{
	minidump.PlatformLinux: {
		4:  {base: "SIGILL"},
		5:  {base: "SIGTRAP"},
		6:  {base: "SIGABRT"},
		7:  {base: "SIGBUS"},
		8:  {base: "SIGFPE"},
		11: {base: "SIGSEGV", suffixes: map[uint32]string{1: " /MAPERR", 2: " /ACCERR"}},
	},
	minidump.PlatformAndroid: {
		4:  {base: "SIGILL"},
		6:  {base: "SIGABRT"},
		7:  {base: "SIGBUS"},
		8:  {base: "SIGFPE"},
		11: {base: "SIGSEGV", suffixes: map[uint32]string{1: " /MAPERR", 2: " /ACCERR"}},
	},
	minidump.PlatformMacOS: {
		0x00000001: {base: "EXC_BAD_ACCESS"},
		0x00000002: {base: "EXC_BAD_INSTRUCTION"},
		0x00000003: {base: "EXC_ARITHMETIC"},
		0x00000005: {base: "EXC_SOFTWARE"},
		0x00000006: {base: "EXC_BREAKPOINT"},
	},
	minidump.PlatformIOS: {
		0x00000001: {base: "EXC_BAD_ACCESS"},
		0x00000002: {base: "EXC_BAD_INSTRUCTION"},
		0x00000006: {base: "EXC_BREAKPOINT"},
	},
	minidump.PlatformWindows: {
		0xC0000005: {base: "EXCEPTION_ACCESS_VIOLATION"},
		0xC00000FD: {base: "EXCEPTION_STACK_OVERFLOW"},
		0xC000001D: {base: "EXCEPTION_ILLEGAL_INSTRUCTION"},
		0x80000003: {base: "EXCEPTION_BREAKPOINT"},
	},
}

// platformOSName gives ProcessState.os a human-readable value; unknown
// platform IDs fall back to their hex form rather than an empty string.
func platformOSName(p minidump.PlatformID) string {
	switch p {
	case minidump.PlatformWindows:
		return "Windows"
	case minidump.PlatformMacOS:
		return "macOS"
	case minidump.PlatformIOS:
		return "iOS"
	case minidump.PlatformLinux:
		return "Linux"
	case minidump.PlatformAndroid:
		return "Android"
	case minidump.PlatformFuchsia:
		return "Fuchsia"
	default:
		return fmt.Sprintf("0x%X", uint32(p))
	}
}

// crashReason implements spec.md §4.5's "(platform, signal_or_exception_code,
// signal_code_or_flags)" lookup, falling back to "0x<hex>" for anything the
// table doesn't carry.
func crashReason(platform minidump.PlatformID, code, flags uint32) string {
	byCode, ok := crashReasons[platform]
	if !ok {
		return fmt.Sprintf("0x%X", code)
	}
	entry, ok := byCode[code]
	if !ok {
		return fmt.Sprintf("0x%X", code)
	}
	if suffix, ok := entry.suffixes[flags]; ok {
		return entry.base + suffix
	}
	return entry.base
}
