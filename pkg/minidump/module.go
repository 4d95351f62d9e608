package minidump

// FixedFileInfo is a module's version resource (VS_FIXEDFILEINFO), kept in
// abbreviated form: only the fields a crash report actually surfaces.
type FixedFileInfo struct {
	FileVersionMS uint32
	FileVersionLS uint32
}

// Module describes one loaded executable or shared library image
// (spec.md §3).
type Module struct {
	BaseAddress      uint64
	Size             uint32
	Checksum         uint32
	Timestamp        uint32
	Name             string
	Version          FixedFileInfo
	DebugFile        string
	DebugIdentifier  string
	CodeIdentifier   string
}

const moduleEntrySize = 108

// parseModuleList reads the ModuleList stream. Name/debug-identifier
// fields are RVAs into the whole file, not the stream slice, so the
// caller's full buffer is threaded through to parseModuleEntry.
func parseModuleList(buf, wholeFile []byte) ([]Module, error) {
	c := newCursor(buf)
	count := c.u32()
	if c.err != nil {
		return nil, c.err
	}
	need := uint64(count) * uint64(moduleEntrySize)
	if need+4 > uint64(len(buf)) {
		return nil, newError(KindStreamOverrun, "module list declares %d entries, needs %d bytes, stream has %d", count, need+4, len(buf))
	}
	modules := make([]Module, count)
	for i := range modules {
		m, err := parseModuleEntry(wholeFile, c)
		if err != nil {
			return nil, err
		}
		modules[i] = m
	}
	return modules, nil
}

// parseModuleEntry reads one fixed-size MINIDUMP_MODULE record. Variable
// length data (name, debug/code identifiers) live elsewhere in the file,
// referenced here by RVA, and are resolved against the whole-file buffer
// rather than the stream slice.
func parseModuleEntry(wholeFile []byte, c *cursor) (Module, error) {
	base := c.u64()
	size := c.u32()
	checksum := c.u32()
	timestamp := c.u32()
	nameRVA := c.u32()
	// VS_FIXEDFILEINFO (52 bytes): signature/struct_version (8), the two
	// version dwords we keep, then 9 more dwords this module never
	// surfaces.
	c.skip(8)
	ffi := FixedFileInfo{FileVersionMS: c.u32(), FileVersionLS: c.u32()}
	c.skip(4) // product version MS
	c.skip(4) // product version LS
	c.skip(4) // file flags mask
	c.skip(4) // file flags
	c.skip(4) // file OS
	c.skip(4) // file type
	c.skip(4) // file subtype
	c.skip(4) // file date MS
	c.skip(4) // file date LS
	cvSize := c.u32()
	cvRVA := c.u32()
	c.skip(8) // MISC record location descriptor
	c.skip(8) // reserved0
	c.skip(8) // reserved1
	if c.err != nil {
		return Module{}, c.err
	}

	name, err := readMDString(wholeFile, nameRVA)
	if err != nil {
		name = ""
	}

	var debugFile, debugIdentifier string
	if cvSize > 0 && uint64(cvRVA)+uint64(cvSize) <= uint64(len(wholeFile)) {
		debugFile, debugIdentifier = parseCVRecord(wholeFile[cvRVA : cvRVA+cvSize])
	}
	if debugFile == "" {
		debugFile = name
	}

	return Module{
		BaseAddress:     base,
		Size:            size,
		Checksum:        checksum,
		Timestamp:       timestamp,
		Name:            name,
		Version:         ffi,
		DebugFile:       debugFile,
		DebugIdentifier: debugIdentifier,
		CodeIdentifier:  codeIdentifier(timestamp, size),
	}, nil
}

// readMDString decodes a MINIDUMP_STRING (u32 length + UTF-16LE) located
// at an absolute file offset.
func readMDString(wholeFile []byte, rva uint32) (string, error) {
	if rva == 0 {
		return "", nil
	}
	if uint64(rva) >= uint64(len(wholeFile)) {
		return "", newError(KindStreamOverrun, "string RVA %#x is past end of file", rva)
	}
	c := newCursor(wholeFile)
	c.seekTo(int(rva))
	s := c.utf16LenPrefixed()
	if c.err != nil {
		return "", c.err
	}
	return s, nil
}

// UnloadedModule describes a module that was unmapped before the crash,
// carried for diagnostic completeness (spec.md §6's UnloadedModuleList).
type UnloadedModule struct {
	BaseAddress uint64
	Size        uint32
	Name        string
	Checksum    uint32
	Timestamp   uint32
}

func parseUnloadedModuleList(buf, wholeFile []byte) ([]UnloadedModule, error) {
	c := newCursor(buf)
	headerSize := c.u32()
	entrySize := c.u32()
	if c.err != nil {
		return nil, c.err
	}
	c.seekTo(int(headerSize))
	count := (uint64(len(buf)) - uint64(headerSize)) / uint64(entrySize)
	out := make([]UnloadedModule, 0, count)
	for i := uint64(0); i < count; i++ {
		entryStart := c.off
		base := c.u64()
		size := c.u32()
		nameRVA := c.u32()
		checksum := c.u32()
		timestamp := c.u32()
		if c.err != nil {
			return nil, c.err
		}
		name, _ := readMDString(wholeFile, nameRVA)
		out = append(out, UnloadedModule{BaseAddress: base, Size: size, Name: name, Checksum: checksum, Timestamp: timestamp})
		c.seekTo(entryStart + int(entrySize))
	}
	return out, nil
}
