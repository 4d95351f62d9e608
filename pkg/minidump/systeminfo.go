package minidump

// PlatformID identifies the operating system that produced the dump
// (spec.md §6's crash-reason table key).
type PlatformID uint32

const (
	PlatformWindows PlatformID = 2
	PlatformMacOS   PlatformID = 0x8101
	PlatformIOS     PlatformID = 0x8102
	PlatformLinux   PlatformID = 0x8201
	PlatformAndroid PlatformID = 0x8203
	PlatformFuchsia PlatformID = 0x8206
)

// processorArch is the on-disk MDCPUArchitecture enum; it is mapped to our
// own Arch immediately on read so nothing downstream needs the raw wire
// value.
type processorArch uint16

const (
	paX86     processorArch = 0
	paMIPS    processorArch = 1
	paARM     processorArch = 5
	paSPARC   processorArch = 10
	paPPC     processorArch = 9
	paAMD64   processorArch = 9444 // breakpad's PROCESSOR_ARCHITECTURE_AMD64
	paARM64   processorArch = 0x8003
	paPPC64   processorArch = 0x8004
	paMIPS64  processorArch = 0x8005
	paRISCV32 processorArch = 0x8006
	paRISCV64 processorArch = 0x8007
)

// SystemInfo is the SystemInfoStream payload.
type SystemInfo struct {
	Arch           Arch
	PlatformID     PlatformID
	ProcessorLevel uint16
	CPUCount       uint8
}

func parseSystemInfo(buf []byte) (SystemInfo, error) {
	c := newCursor(buf)
	rawArch := processorArch(c.u16())
	level := c.u16()
	c.skip(2) // processor_revision
	cpuCount := c.u8()
	c.skip(1) // product_type
	c.skip(4) // major_version
	c.skip(4) // minor_version
	c.skip(4) // build_number
	platform := PlatformID(c.u32())
	if c.err != nil {
		return SystemInfo{}, c.err
	}
	return SystemInfo{
		Arch:           archFromWire(rawArch),
		PlatformID:     platform,
		ProcessorLevel: level,
		CPUCount:       cpuCount,
	}, nil
}

func archFromWire(a processorArch) Arch {
	switch a {
	case paX86:
		return ArchX86
	case paAMD64:
		return ArchAMD64
	case paARM:
		return ArchARM
	case paARM64:
		return ArchARM64
	case paMIPS:
		return ArchMIPS32
	case paMIPS64:
		return ArchMIPS64
	case paPPC:
		return ArchPPC
	case paPPC64:
		return ArchPPC64
	case paSPARC:
		return ArchSPARC
	case paRISCV32:
		return ArchRISCV32
	case paRISCV64:
		return ArchRISCV64
	default:
		return ArchUnknown
	}
}
