package isa

import "encoding/binary"

// ReadU8 reads one byte at offset. Callers must not exceed buf's bounds;
// this layer performs no bounds checking (spec: "no bounds checking at this
// layer; callers must not exceed buffer size").
func ReadU8(buf []byte, offset uint64) uint8 {
	return buf[offset]
}

// WriteU8 writes one byte at offset.
func WriteU8(buf []byte, offset uint64, v uint8) {
	buf[offset] = v
}

// ReadU16 reads a little-endian u16 at offset, regardless of host endianness.
func ReadU16(buf []byte, offset uint64) uint16 {
	return binary.LittleEndian.Uint16(buf[offset:])
}

// WriteU16 writes v as a little-endian u16 at offset.
func WriteU16(buf []byte, offset uint64, v uint16) {
	binary.LittleEndian.PutUint16(buf[offset:], v)
}

// ReadU64 reads a little-endian u64 at offset, regardless of host endianness.
func ReadU64(buf []byte, offset uint64) uint64 {
	return binary.LittleEndian.Uint64(buf[offset:])
}

// WriteU64 writes v as a little-endian u64 at offset.
func WriteU64(buf []byte, offset uint64, v uint64) {
	binary.LittleEndian.PutUint64(buf[offset:], v)
}

// IncrementalWriter is an append-style byte buffer that tracks its own
// cursor, used by the assembler's emission pass. It mirrors the original
// C++ prototype's IncrementalWriter: each Put call appends encoded bytes and
// advances the cursor by the encoded width.
type IncrementalWriter struct {
	buf []byte
}

// NewIncrementalWriter returns a writer with an empty backing buffer.
func NewIncrementalWriter() *IncrementalWriter {
	return &IncrementalWriter{}
}

// Pos returns the current cursor, i.e. the offset the next Put call will
// write at. Used by the assembler to record label-opening patch sites.
func (w *IncrementalWriter) Pos() uint64 {
	return uint64(len(w.buf))
}

// Bytes returns the accumulated buffer. The slice is owned by the writer;
// callers that need to retain it across further Put calls should copy it.
func (w *IncrementalWriter) Bytes() []byte {
	return w.buf
}

// PutU8 appends one byte.
func (w *IncrementalWriter) PutU8(v uint8) {
	w.buf = append(w.buf, v)
}

// PutU16 appends a little-endian u16.
func (w *IncrementalWriter) PutU16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutU64 appends a little-endian u64.
func (w *IncrementalWriter) PutU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutZerosU64 appends 8 zero bytes, used as a placeholder for an unresolved
// label reference; PatchU64 overwrites them once the label is known.
func (w *IncrementalWriter) PutZerosU64() {
	w.PutU64(0)
}

// PatchU64 overwrites the 8 bytes at off with v, little-endian. off must
// have been obtained from Pos() before the corresponding PutZerosU64 call.
func (w *IncrementalWriter) PatchU64(off uint64, v uint64) {
	binary.LittleEndian.PutUint64(w.buf[off:off+8], v)
}
