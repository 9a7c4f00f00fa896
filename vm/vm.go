// Package vm implements the stack machine's execution model: a flat memory
// space (Memory, in memory.go) and the fetch/dispatch/execute loop over it.
// The dispatch loop is adapted from KTStephano-GVM/vm/exec.go's switch-based
// execNextInstruction, generalized from GVM's 32-bit register ISA to the
// 13-opcode stack ISA this machine implements.
package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/surgura/stackvm/isa"
)

// Fixed memory layout, unchanged from spec.md §6.
const (
	OffsetProgram = 0
	OffsetStack   = 1000
	OffsetConsole = 2000
	DefaultCap    = 4096
)

// errUnknownInstruction is the sentinel returned when the fetched opcode is
// not one of the 13 contractual values. Grounded on GVM's own later
// iteration (vm/exec.go), which converged on halting via a sentinel error
// rather than looping forever; see DESIGN.md for the Open Question
// resolution.
var errUnknownInstruction = errors.New("vm: unknown instruction")

// errSegmentationFault reports an out-of-range memory access. The
// interpreter does not bounds-check every access (spec: undefined,
// detection not required); instead Run recovers the resulting slice-bounds
// panic into this sentinel, mirroring GVM's run.go
// getDefaultRecoverFuncForVM.
var errSegmentationFault = errors.New("vm: segmentation fault")

// VM is one interpreter instance: a memory space plus the PC/SP registers.
// PC is an absolute byte offset; SP is relative to OffsetStack. A VM runs a
// single program to halt or fault and is not reused.
type VM struct {
	Mem *Memory
	pc  uint64
	sp  uint64

	Trace bool
}

// New allocates a VM over a fresh address space of the given capacity.
func New(capacity uint64) *VM {
	if capacity == 0 {
		capacity = DefaultCap
	}
	return &VM{Mem: NewMemory(capacity)}
}

// Load copies bytes into the VM's address space at offset, e.g. the guest
// program at OffsetProgram or a console library routine at OffsetConsole.
func (v *VM) Load(offset uint64, program []byte) {
	v.Mem.Load(offset, program)
}

// Run executes from offsetProgram with SP initialised to 0 (i.e. absolute
// OffsetStack) until halt or a fault. It returns the final SP value on a
// clean halt, matching the original's "halt" trace that also prints sp.
func (v *VM) Run(offsetProgram uint64) (sp uint64, err error) {
	v.pc = offsetProgram
	v.sp = 0

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("vm: recovered fault")
			err = fmt.Errorf("%w: %v", errSegmentationFault, r)
		}
	}()

	for {
		halted, stepErr := v.step()
		if stepErr != nil {
			return v.sp, stepErr
		}
		if halted {
			log.Infof("vm: halt, sp=%d", v.sp)
			return v.sp, nil
		}
	}
}

// step fetches, decodes, and executes exactly one instruction, advancing PC
// unless the instruction branches. halted is true only after a `halt`
// instruction.
func (v *VM) step() (halted bool, err error) {
	op := isa.Opcode(v.Mem.ReadU16(v.pc))
	if v.Trace {
		log.Debugf("vm: pc=%d sp=%d op=%s", v.pc, v.sp, op)
	}

	switch op {
	case isa.Jmp:
		addr := v.Mem.ReadU64(v.pc + 2)
		v.pc = addr

	case isa.Jmps:
		addr := v.popU64()
		v.pc = addr

	case isa.JmpTrue:
		addr := v.Mem.ReadU64(v.pc + 2)
		b := v.popU8()
		if b != 0 {
			v.pc = addr
		} else {
			v.pc += op.Size()
		}

	case isa.CmpU8:
		b := v.popU8()
		a := v.popU8()
		var r uint8
		if a == b {
			r = 1
		}
		v.pushU8(r)
		v.pc += op.Size()

	case isa.Spi:
		n := v.Mem.ReadU64(v.pc + 2)
		v.sp += n
		v.pc += op.Size()

	case isa.Spd:
		n := v.Mem.ReadU64(v.pc + 2)
		v.sp -= n
		v.pc += op.Size()

	case isa.PushU8:
		val := v.Mem.ReadU8(v.pc + 2)
		v.pushU8(val)
		v.pc += op.Size()

	case isa.PushU64:
		val := v.Mem.ReadU64(v.pc + 2)
		v.pushU64(val)
		v.pc += op.Size()

	case isa.PopU8:
		v.sp--
		v.pc += op.Size()

	case isa.SetU8:
		addr := v.Mem.ReadU64(v.pc + 2)
		val := v.popU8()
		v.Mem.WriteU8(addr, val)
		v.pc += op.Size()

	case isa.CplU8:
		off := v.Mem.ReadU64(v.pc + 2)
		val := v.Mem.ReadU8(OffsetStack + v.sp - off)
		v.pushU8(val)
		v.pc += op.Size()

	case isa.CpgU8:
		addr := v.Mem.ReadU64(v.pc + 2)
		val := v.Mem.ReadU8(addr)
		v.pushU8(val)
		v.pc += op.Size()

	case isa.Halt:
		return true, nil

	default:
		log.WithField("opcode", uint16(op)).Error("vm: unknown instruction")
		return false, errUnknownInstruction
	}

	return false, nil
}

func (v *VM) pushU8(val uint8) {
	v.Mem.WriteU8(OffsetStack+v.sp, val)
	v.sp++
}

func (v *VM) popU8() uint8 {
	v.sp--
	return v.Mem.ReadU8(OffsetStack + v.sp)
}

func (v *VM) pushU64(val uint64) {
	v.Mem.WriteU64(OffsetStack+v.sp, val)
	v.sp += 8
}

func (v *VM) popU64() uint64 {
	v.sp -= 8
	return v.Mem.ReadU64(OffsetStack + v.sp)
}

// RunDebug drives the same dispatch loop one instruction at a time, printing
// PC/SP/opcode to w and waiting for a newline on r between steps. Grounded
// on GVM's main.go execProgramDebugMode / vm/run.go RunProgramDebugMode.
func (v *VM) RunDebug(offsetProgram uint64, r io.Reader, w io.Writer) (sp uint64, err error) {
	v.pc = offsetProgram
	v.sp = 0
	in := bufio.NewScanner(r)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errSegmentationFault, rec)
		}
	}()

	for {
		op := isa.Opcode(v.Mem.ReadU16(v.pc))
		fmt.Fprintf(w, "pc=%d sp=%d next=%s\n", v.pc, v.sp, op)
		fmt.Fprint(w, "> ")
		if !in.Scan() {
			return v.sp, nil
		}

		halted, stepErr := v.step()
		if stepErr != nil {
			return v.sp, stepErr
		}
		if halted {
			fmt.Fprintf(w, "halt, sp=%d\n", v.sp)
			return v.sp, nil
		}
	}
}
