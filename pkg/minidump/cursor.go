package minidump

import (
	"encoding/binary"
	"unicode/utf16"
)

// cursor reads little-endian primitives from a byte slice without ever
// reinterpret-casting raw bytes to a host struct, so behavior is identical
// regardless of the host's own endianness (spec.md §4.1). Every read is
// bounds-checked; the first failure is sticky so callers can issue a chain
// of reads and check the error once at the end.
type cursor struct {
	buf []byte
	off int
	err error
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

func (c *cursor) fail(kind Kind, format string, args ...any) {
	if c.err == nil {
		c.err = newError(kind, format, args...)
	}
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if c.off+n > len(c.buf) {
		c.fail(KindTruncated, "need %d bytes at offset %#x, have %d", n, c.off, len(c.buf)-c.off)
		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) u8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *cursor) u32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *cursor) u64() uint64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (c *cursor) u32AsWord() uint64 {
	return uint64(c.u32())
}

func (c *cursor) u64AsWord() uint64 {
	return c.u64()
}

func (c *cursor) bytes(n int) []byte {
	b := c.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (c *cursor) skip(n int) {
	c.take(n)
}

// seekTo repositions the cursor at an absolute offset into the underlying
// buffer — used when following an RVA into a different part of the file.
// It does not clear a prior error: a failed cursor stays failed.
func (c *cursor) seekTo(off int) {
	if off < 0 || off > len(c.buf) {
		c.fail(KindTruncated, "seek to invalid offset %#x (len %d)", off, len(c.buf))
		return
	}
	c.off = off
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.off
}

func (c *cursor) restBytes() []byte {
	return c.bytes(c.remaining())
}

// utf16LenPrefixed decodes a MINIDUMP_STRING: a u32 byte length followed by
// that many bytes of UTF-16LE, no terminator counted in the length.
// Ill-formed surrogates are replaced with U+FFFD rather than failing, per
// spec.md §4.1.
func (c *cursor) utf16LenPrefixed() string {
	byteLen := c.u32()
	if c.err != nil {
		return ""
	}
	raw := c.take(int(byteLen))
	if raw == nil {
		return ""
	}
	return decodeUTF16LE(raw)
}

func decodeUTF16LE(raw []byte) string {
	n := len(raw) / 2
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
	}
	return string(utf16.Decode(units))
}
