package vm

import (
	"sync/atomic"

	"github.com/surgura/stackvm/isa"
)

// Memory is the machine's single flat, byte-addressable address space.
// Program, stack, and general data all live in one backing slice and are
// reached through the little-endian codec in package isa instead of
// reinterpreting raw pointers, which is how the original C++ prototype did
// it (see SPEC_FULL.md's resolution of the "raw pointer aliasing" design
// note).
//
// A small number of addresses can be registered as ports: memory-mapped
// device registers backed by an *atomic.Uint32 instead of a plain byte, for
// addresses a second goroutine polls concurrently (the console's
// IO_PRINTC_ENABLE handshake flag, see peripheral.Console). This mirrors how
// IntuitionEngine's TerminalMMIO exposes its device registers as atomic
// fields behind address-keyed accessors rather than letting any goroutine
// touch a raw byte slice. Ordinary program/stack bytes are never touched
// concurrently (the interpreter is single-threaded) so they use the plain
// isa codec.
type Memory struct {
	buf   []byte
	ports map[uint64]*atomic.Uint32
}

// NewMemory allocates a zeroed address space of the given size in bytes.
func NewMemory(size uint64) *Memory {
	return &Memory{buf: make([]byte, size), ports: make(map[uint64]*atomic.Uint32)}
}

// Len reports the address space size in bytes.
func (m *Memory) Len() uint64 {
	return uint64(len(m.buf))
}

// Load copies program bytes into the address space starting at offset.
func (m *Memory) Load(offset uint64, program []byte) {
	copy(m.buf[offset:], program)
}

// RegisterPort backs address with an *atomic.Uint32 register instead of a
// plain byte and returns it. Reads/writes to address via ReadU8/WriteU8 are
// transparently routed through the register; callers that need to poll it
// from another goroutine can keep the returned pointer instead of going back
// through Memory at all.
func (m *Memory) RegisterPort(address uint64) *atomic.Uint32 {
	p := &atomic.Uint32{}
	m.ports[address] = p
	return p
}

// ReadU8 reads one byte at offset, routing through a registered port if one
// is mapped there.
func (m *Memory) ReadU8(offset uint64) uint8 {
	if p, ok := m.ports[offset]; ok {
		return uint8(p.Load())
	}
	return isa.ReadU8(m.buf, offset)
}

// WriteU8 writes one byte at offset, routing through a registered port if
// one is mapped there.
func (m *Memory) WriteU8(offset uint64, v uint8) {
	if p, ok := m.ports[offset]; ok {
		p.Store(uint32(v))
		return
	}
	isa.WriteU8(m.buf, offset, v)
}

// ReadU16 reads a little-endian u16 at offset, used for opcode fetch.
func (m *Memory) ReadU16(offset uint64) uint16 {
	return isa.ReadU16(m.buf, offset)
}

// WriteU16 writes v as a little-endian u16 at offset.
func (m *Memory) WriteU16(offset uint64, v uint16) {
	isa.WriteU16(m.buf, offset, v)
}

// ReadU64 reads a little-endian u64 at offset. Ports are never wider than a
// byte in this ISA, so no port routing is needed here.
func (m *Memory) ReadU64(offset uint64) uint64 {
	return isa.ReadU64(m.buf, offset)
}

// WriteU64 writes v as a little-endian u64 at offset.
func (m *Memory) WriteU64(offset uint64, v uint64) {
	isa.WriteU64(m.buf, offset, v)
}
