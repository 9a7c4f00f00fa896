package vm

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/surgura/stackvm/asm"
	"github.com/surgura/stackvm/peripheral"
)

// S6 — console print: a guest program calls into the printc.bin library
// routine to print one byte through the memory-mapped handshake, then
// returns and halts. Assembled from the testdata fixture rather than a
// hand-encoded binary, the way a real caller would build the library.
func TestS6ConsolePrint(t *testing.T) {
	libSrc, err := os.ReadFile("../testdata/console/printc.gasm")
	assert(t, err == nil, "reading printc.gasm: %v", err)
	lib, err := asm.Assemble(bytes.NewReader(libSrc))
	assert(t, err == nil, "assembling printc.gasm: %v", err)

	// push_u64 :after; push_u8 58 ('X'); jmp 7D0 (OffsetConsole); :after: halt
	progSrc := ":0\npush_u64 :after\npush_u8 58\njmp 7D0\n:after\nhalt\n"
	prog, err := asm.AssembleString(progSrc)
	assert(t, err == nil, "assembling program: %v", err)

	m := New(DefaultCap)
	m.Load(OffsetProgram, prog)
	m.Load(OffsetConsole, lib)

	var stdout bytes.Buffer
	console := peripheral.New(m.Mem, &stdout)
	peripheral.PollInterval = time.Millisecond
	console.Start()
	defer console.Stop()

	sp, err := m.Run(OffsetProgram)
	assert(t, err == nil, "run failed: %v", err)
	assert(t, sp == 0, "sp = %d, want 0 after return", sp)

	deadline := time.Now().Add(time.Second)
	for stdout.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for console output")
		}
		time.Sleep(time.Millisecond)
	}
	assert(t, stdout.String() == "X", "stdout = %q, want %q", stdout.String(), "X")
	assert(t, m.Mem.ReadU8(peripheral.EnablePort) == 0, "ENABLE byte should be 0 at halt")
}
