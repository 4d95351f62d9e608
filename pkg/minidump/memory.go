package minidump

import "github.com/grafana/crashproc/pkg/rangemap"

// MemoryDescriptor denotes a byte range copied from the crashed address
// space (spec.md §3). RVA is an absolute file offset.
type MemoryDescriptor struct {
	StartAddress uint64
	Size         uint32
	RVA          uint32
}

// MemoryRegion is a borrowed view into the Reader's underlying buffer,
// valid only for the Reader's lifetime (spec.md §5's ownership rules).
type MemoryRegion struct {
	StartAddress uint64
	Data         []byte
}

func parseMemoryDescriptor(c *cursor) MemoryDescriptor {
	start := c.u64()
	size := c.u32()
	rva := c.u32()
	return MemoryDescriptor{StartAddress: start, Size: size, RVA: rva}
}

func parseMemoryList(buf []byte) ([]MemoryDescriptor, error) {
	c := newCursor(buf)
	count := c.u32()
	if c.err != nil {
		return nil, c.err
	}
	const entrySize = 16 // MemoryDescriptor: u64 + u32 + u32
	if uint64(count)*entrySize+4 > uint64(len(buf)) {
		return nil, newError(KindStreamOverrun, "memory list declares %d entries, overruns stream of %d bytes", count, len(buf))
	}
	out := make([]MemoryDescriptor, count)
	for i := range out {
		out[i] = parseMemoryDescriptor(c)
	}
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

// parseMemory64List reads the Memory64List stream, whose regions are
// stored contiguously starting at a single base RVA rather than one RVA
// per descriptor (used for large dumps where 32-bit RVAs would overflow).
func parseMemory64List(buf []byte) ([]MemoryDescriptor, error) {
	c := newCursor(buf)
	count := c.u64()
	baseRVA := c.u64()
	if c.err != nil {
		return nil, c.err
	}
	out := make([]MemoryDescriptor, count)
	offset := baseRVA
	for i := range out {
		start := c.u64()
		size := c.u64()
		if c.err != nil {
			return nil, c.err
		}
		out[i] = MemoryDescriptor{StartAddress: start, Size: uint32(size), RVA: uint32(offset)}
		offset += size
	}
	return out, nil
}

// buildMemoryIndex assembles the combined, first-wins range index over
// every MemoryDescriptor visible to the Reader (spec.md §4.1's
// get_memory), deferring overlap policy to pkg/rangemap.
func buildMemoryIndex(wholeFile []byte, descriptors []MemoryDescriptor) (*rangemap.Map[MemoryDescriptor], []rangemap.Overlap[MemoryDescriptor]) {
	ranges := make([]rangemap.Range[MemoryDescriptor], 0, len(descriptors))
	for _, d := range descriptors {
		if d.Size == 0 {
			continue
		}
		ranges = append(ranges, rangemap.Range[MemoryDescriptor]{Start: d.StartAddress, Size: uint64(d.Size), Value: d})
	}
	return rangemap.Build(ranges)
}

func sliceForDescriptor(wholeFile []byte, d MemoryDescriptor) ([]byte, error) {
	start := uint64(d.RVA)
	end := start + uint64(d.Size)
	if end > uint64(len(wholeFile)) || end < start {
		return nil, newError(KindStreamOverrun, "memory descriptor at %#x size %d overruns file", d.RVA, d.Size)
	}
	return wholeFile[start:end], nil
}
