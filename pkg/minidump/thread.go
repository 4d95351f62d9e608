package minidump

// Thread is one ThreadList entry (spec.md §3).
type Thread struct {
	ThreadID      uint32
	SuspendCount  uint32
	Priority      uint32
	TEB           uint64
	StackRange    MemoryDescriptor
	Context       CpuContext
	contextLoaded bool
}

const threadEntrySize = 48

// parseThreadList reads the ThreadList stream. Each thread's context is a
// location descriptor {size, rva} pointing elsewhere in the file; its
// architecture is not yet known here, so decoding is deferred to the
// Reader, which has the SystemInfo-derived Arch in hand.
func parseThreadList(buf []byte) ([]rawThread, error) {
	c := newCursor(buf)
	count := c.u32()
	if c.err != nil {
		return nil, c.err
	}
	if uint64(count)*threadEntrySize+4 > uint64(len(buf)) {
		return nil, newError(KindStreamOverrun, "thread list declares %d entries, overruns stream of %d bytes", count, len(buf))
	}
	out := make([]rawThread, count)
	for i := range out {
		threadID := c.u32()
		suspendCount := c.u32()
		priorityCls := c.u32()
		priority := c.u32()
		teb := c.u64()
		stackRange := parseMemoryDescriptor(c)
		contextSize := c.u32()
		contextRVA := c.u32()
		out[i] = rawThread{
			ThreadID:     threadID,
			SuspendCount: suspendCount,
			Priority:     priority,
			priorityCls:  priorityCls,
			TEB:          teb,
			StackRange:   stackRange,
			ContextSize:  contextSize,
			ContextRVA:   contextRVA,
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

// rawThread holds a ThreadList entry before its context has been decoded
// against a known architecture.
type rawThread struct {
	ThreadID     uint32
	SuspendCount uint32
	Priority     uint32
	priorityCls  uint32
	TEB          uint64
	StackRange   MemoryDescriptor
	ContextSize  uint32
	ContextRVA   uint32
}

// ThreadNameEntry maps a thread ID to a name (spec.md §6's ThreadNames
// stream).
type ThreadNameEntry struct {
	ThreadID uint32
	Name     string
}

func parseThreadNames(buf, wholeFile []byte) ([]ThreadNameEntry, error) {
	c := newCursor(buf)
	count := c.u32()
	if c.err != nil {
		return nil, c.err
	}
	out := make([]ThreadNameEntry, count)
	for i := range out {
		tid := c.u32()
		nameRVA := c.u64()
		if c.err != nil {
			return nil, c.err
		}
		name, _ := readMDString(wholeFile, uint32(nameRVA))
		out[i] = ThreadNameEntry{ThreadID: tid, Name: name}
	}
	return out, nil
}
