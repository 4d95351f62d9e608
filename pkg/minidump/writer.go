package minidump

import (
	"encoding/binary"
	"strconv"
)

// writer is the encode-side counterpart to cursor. It exists so tests (and
// any future minidump-writing collaborator) can build byte-exact fixtures
// using the same field layouts the decoders read, without ever going
// through a raw-memory cast.
type writer struct {
	buf []byte
	off int
}

func newWriter(buf []byte) *writer {
	return &writer{buf: buf}
}

func (w *writer) u8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *writer) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.off:w.off+2], v)
	w.off += 2
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:w.off+4], v)
	w.off += 4
}

func (w *writer) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:w.off+8], v)
	w.off += 8
}

func (w *writer) bytes(b []byte) {
	copy(w.buf[w.off:], b)
	w.off += len(b)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
