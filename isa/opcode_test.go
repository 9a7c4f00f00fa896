package isa

import "testing"

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestLookupRoundTrip(t *testing.T) {
	for mnemonic, op := range mnemonics {
		got, ok := Lookup(mnemonic)
		assert(t, ok, "Lookup(%q) not found", mnemonic)
		assert(t, got == op, "Lookup(%q) = %v, want %v", mnemonic, got, op)
		assert(t, op.String() == mnemonic, "Opcode(%d).String() = %q, want %q", op, op.String(), mnemonic)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Lookup("nope")
	assert(t, !ok, "Lookup(%q) unexpectedly found", "nope")
}

func TestValid(t *testing.T) {
	assert(t, Halt.Valid(), "Halt should be valid")
	assert(t, !Opcode(99).Valid(), "99 should not be a valid opcode")
}

func TestSizeTable(t *testing.T) {
	cases := []struct {
		op   Opcode
		size uint64
	}{
		{Jmp, 10},
		{Jmps, 2},
		{JmpTrue, 10},
		{CmpU8, 2},
		{Spi, 10},
		{Spd, 10},
		{PushU8, 3},
		{PushU64, 10},
		{PopU8, 2},
		{SetU8, 10},
		{CplU8, 10},
		{CpgU8, 10},
		{Halt, 2},
	}
	for _, c := range cases {
		assert(t, c.op.Size() == c.size, "%s.Size() = %d, want %d", c.op, c.op.Size(), c.size)
	}
}

func TestArity(t *testing.T) {
	zero := []Opcode{Jmps, CmpU8, PopU8, Halt}
	for _, op := range zero {
		assert(t, op.Arity() == 0, "%s.Arity() = %d, want 0", op, op.Arity())
	}
	one := []Opcode{Jmp, JmpTrue, Spi, Spd, PushU8, PushU64, SetU8, CplU8, CpgU8}
	for _, op := range one {
		assert(t, op.Arity() == 1, "%s.Arity() = %d, want 1", op, op.Arity())
	}
}
