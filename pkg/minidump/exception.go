package minidump

// Exception is the ExceptionStream payload (spec.md §3).
type Exception struct {
	ThreadID        uint32
	ExceptionCode   uint32
	ExceptionFlags  uint32
	ExceptionAddr   uint64
	Parameters      []uint64
	ThreadContext   CpuContext
	contextSize     uint32
	contextRVA      uint32
}

const maxExceptionParams = 15

func parseExceptionHeader(buf []byte) (Exception, error) {
	c := newCursor(buf)
	threadID := c.u32()
	c.skip(4) // alignment
	code := c.u32()
	flags := c.u32()
	c.skip(8) // exception_record, reserved
	addr := c.u64()
	paramCount := c.u32()
	c.skip(4) // alignment
	params := make([]uint64, 0, maxExceptionParams)
	for i := 0; i < maxExceptionParams; i++ {
		v := c.u64()
		if uint32(i) < paramCount {
			params = append(params, v)
		}
	}
	contextSize := c.u32()
	contextRVA := c.u32()
	if c.err != nil {
		return Exception{}, c.err
	}
	return Exception{
		ThreadID:       threadID,
		ExceptionCode:  code,
		ExceptionFlags: flags,
		ExceptionAddr:  addr,
		Parameters:     params,
		contextSize:    contextSize,
		contextRVA:     contextRVA,
	}, nil
}
