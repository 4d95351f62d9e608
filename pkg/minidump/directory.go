package minidump

// StreamType identifies the kind of data a directory entry points at
// (spec.md §6).
type StreamType uint32

const (
	StreamThreadList          StreamType = 3
	StreamModuleList          StreamType = 4
	StreamMemoryList          StreamType = 5
	StreamException           StreamType = 6
	StreamSystemInfo          StreamType = 7
	StreamMemory64List        StreamType = 9
	StreamHandleData          StreamType = 12
	StreamUnloadedModuleList  StreamType = 14
	StreamMiscInfo            StreamType = 15
	StreamMemoryInfoList      StreamType = 16
	StreamThreadNames         StreamType = 24
	StreamBreakpadInfo        StreamType = 0x47670001
	StreamAssertionInfo       StreamType = 0x47670002
	StreamLinuxCPUInfo        StreamType = 0x47670003
	StreamLinuxProcStatus     StreamType = 0x47670004
	StreamLinuxLSBRelease     StreamType = 0x47670005
	StreamLinuxCmdLine        StreamType = 0x47670006
	StreamLinuxEnviron        StreamType = 0x47670007
	StreamLinuxAuxv           StreamType = 0x47670008
	StreamLinuxMaps           StreamType = 0x47670009
	StreamLinuxDSODebug       StreamType = 0x4767000A
	StreamCrashpadInfo        StreamType = 0x43500001
)

const directoryEntrySize = 12

// directoryEntry is one {stream_type, data_size, rva} record.
type directoryEntry struct {
	StreamType StreamType
	DataSize   uint32
	RVA        uint32
}

func parseDirectory(buf []byte, rva, count uint32) ([]directoryEntry, error) {
	need := uint64(count) * uint64(directoryEntrySize)
	if uint64(rva)+need > uint64(len(buf)) {
		return nil, newError(KindStreamOverrun, "directory at %#x with %d entries overruns file of length %d", rva, count, len(buf))
	}
	c := newCursor(buf)
	c.seekTo(int(rva))
	entries := make([]directoryEntry, count)
	for i := range entries {
		entries[i] = directoryEntry{
			StreamType: StreamType(c.u32()),
			DataSize:   c.u32(),
			RVA:        c.u32(),
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return entries, nil
}

// streamSlice returns the byte range for a directory entry, validated to
// lie entirely within buf (spec.md §4.1).
func streamSlice(buf []byte, e directoryEntry) ([]byte, error) {
	start := uint64(e.RVA)
	end := start + uint64(e.DataSize)
	if end > uint64(len(buf)) || end < start {
		return nil, newError(KindStreamOverrun, "stream %#x at %#x size %d overruns file of length %d", e.StreamType, e.RVA, e.DataSize, len(buf))
	}
	return buf[start:end], nil
}
