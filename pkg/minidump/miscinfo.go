package minidump

import "time"

// MiscInfo is progressively extended by version (spec.md §4.1, §6). Fields
// whose on-disk offset does not fit within the stream's declared
// SizeOfInfo are simply left unset — never an error (spec.md §8 scenario
// 4).
type MiscInfo struct {
	SizeOfInfo uint32
	ProcessID  *uint32

	ProcessCreateTime *time.Time
	ProcessUserTime   *uint32
	ProcessKernelTime *uint32

	ProcessorMaxMhz     *uint32
	ProcessorCurrentMhz *uint32

	ProcessIntegrityLevel *uint32
	ProcessExecuteFlags   *uint32
	ProtectedProcess      *uint32
	TimeZoneID            *uint32
}

// Each field below is gated individually against the embedded SizeOfInfo
// (not the outer stream's data_size): a dumper that only wrote through
// ProcessId must leave CreateTime/UserTime/KernelTime unset, not error,
// even though the stream's directory entry may declare more bytes than
// SizeOfInfo admits as meaningful (spec.md §8 scenario 4).
func parseMiscInfo(buf []byte) (MiscInfo, error) {
	c := newCursor(buf)
	sizeOfInfo := c.u32()
	if c.err != nil {
		return MiscInfo{}, c.err
	}
	info := MiscInfo{SizeOfInfo: sizeOfInfo}
	within := func(end int) bool { return end <= int(sizeOfInfo) && end <= len(buf) }

	c.skip(4) // Flags1
	pid := c.u32()
	if c.err != nil {
		return info, nil
	}
	if within(12) {
		info.ProcessID = &pid
	}

	createTime := c.u32()
	userTime := c.u32()
	kernelTime := c.u32()
	if c.err != nil {
		return info, nil
	}
	if within(24) {
		if createTime != 0 {
			t := time.Unix(int64(createTime), 0).UTC()
			info.ProcessCreateTime = &t
		}
		info.ProcessUserTime = &userTime
		info.ProcessKernelTime = &kernelTime
	}

	maxMhz := c.u32()
	curMhz := c.u32()
	if c.err != nil {
		return info, nil
	}
	if within(32) {
		info.ProcessorMaxMhz = &maxMhz
		info.ProcessorCurrentMhz = &curMhz
	}

	c.skip(12) // ProcessorMhzLimit, ProcessorMaxIdleState, ProcessorCurrentIdleState
	integrityLevel := c.u32()
	executeFlags := c.u32()
	protectedProcess := c.u32()
	timeZoneID := c.u32()
	if c.err != nil {
		return info, nil
	}
	if within(60) {
		info.ProcessIntegrityLevel = &integrityLevel
		info.ProcessExecuteFlags = &executeFlags
		info.ProtectedProcess = &protectedProcess
		info.TimeZoneID = &timeZoneID
	}

	return info, nil
}
