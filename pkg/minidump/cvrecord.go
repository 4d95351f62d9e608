package minidump

import "fmt"

// CodeView record signatures (spec.md §3's debug_file/debug_identifier).
// The PDB70 ("RSDS") layout is the common Windows case; anything else is
// treated as an opaque build-id blob, which covers the ELF case well
// enough for symbol-file keying without requiring a second code path.
const (
	cvSignaturePDB70 = 0x53445352 // "RSDS" read little-endian as a u32
)

// parseCVRecord derives debug_file/debug_identifier from a module's CV
// record. An empty or unrecognized record leaves both fields empty rather
// than failing the whole module (spec.md §7: module-level data loss is
// local, not fatal).
func parseCVRecord(raw []byte) (debugFile, debugIdentifier string) {
	if len(raw) < 4 {
		return "", ""
	}
	c := newCursor(raw)
	sig := c.u32()
	if c.err != nil {
		return "", ""
	}
	if sig == cvSignaturePDB70 {
		return parsePDB70(c)
	}
	// Not a recognized structured record: use the whole blob (including
	// its signature) as a build-id-style identifier, as for an ELF
	// module's GNU build-id CV record.
	return "", fmt.Sprintf("%X0", raw)
}

func parsePDB70(c *cursor) (debugFile, debugIdentifier string) {
	data1 := c.u32()
	data2 := c.u16()
	data3 := c.u16()
	data4 := c.bytes(8)
	age := c.u32()
	if c.err != nil || data4 == nil {
		return "", ""
	}
	path := readNulTerminatedASCII(c.restBytes())
	id := fmt.Sprintf("%08X%04X%04X%02X%02X%02X%02X%02X%02X%02X%02X%X",
		data1, data2, data3,
		data4[0], data4[1], data4[2], data4[3], data4[4], data4[5], data4[6], data4[7],
		age)
	return path, id
}

func readNulTerminatedASCII(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// codeIdentifier derives a PE-style code identifier from a module's
// timestamp and size, the same fallback breakpad's symbol supplier uses
// when no richer identifier (e.g. an ELF build-id) is available.
func codeIdentifier(timestamp, size uint32) string {
	return fmt.Sprintf("%08X%x", timestamp, size)
}
