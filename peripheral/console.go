// Package peripheral implements the memory-mapped console device described
// in SPEC_FULL.md §4.5: a background goroutine that polls a handshake flag
// in the guest's address space and prints bytes the guest writes there.
//
// The Start/Stop lifecycle (stopCh/done channel pair guarded by sync.Once)
// is adapted from IntuitionAmiga-IntuitionEngine's TerminalHost.Start/Stop;
// the handshake's use of atomic registers instead of a mutex around the
// whole device is adapted from that repo's TerminalMMIO, which guards the
// handful of fields crossing the goroutine boundary with atomic.Bool /
// atomic.Int64 rather than a general-purpose lock. KTStephano-GVM's
// vm/devices.go consoleIO contributed the idea of a dedicated poll loop
// per device, generalized here from a channel-buffered character queue to
// the spec's enable-flag handshake.
package peripheral

import (
	"bufio"
	"io"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Port addresses, unchanged from spec.md §4.5.
const (
	DataPort   = 3000
	EnablePort = 3001
)

// PollInterval is the delay between enable-flag checks once the console has
// observed enable==0. The spec calls the exact duration semantically
// irrelevant; ~100ms matches the original C++ prototype's busy-wait cadence
// without spinning the host CPU needlessly.
var PollInterval = 100 * time.Millisecond

// idleSpin is the interval the poll loop sleeps between enable==0 checks, to
// avoid pegging a CPU core while idle. Distinct from PollInterval, which
// models the device's own processing latency once data is ready.
const idleSpin = time.Millisecond

// Console is the host side of the memory-mapped console device. It owns the
// two ports as atomic registers; the guest and the poll goroutine are the
// only two parties that ever touch them.
type Console struct {
	data   *atomic.Uint32
	enable *atomic.Uint32

	out *bufio.Writer

	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once
}

// portMemory is the subset of vm.Memory's surface the console needs, kept
// narrow so this package never imports package vm (the dependency runs the
// other way: a caller wires a *vm.Memory in via this interface).
type portMemory interface {
	RegisterPort(address uint64) *atomic.Uint32
}

// New registers the console's two ports on mem and returns a Console ready
// to Start. w receives the printed bytes (typically os.Stdout).
func New(mem portMemory, w io.Writer) *Console {
	c := &Console{
		data:   mem.RegisterPort(DataPort),
		enable: mem.RegisterPort(EnablePort),
		out:    bufio.NewWriter(w),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.enable.Store(0)
	return c
}

// Start launches the poll goroutine. It must be called at most once.
func (c *Console) Start() {
	go c.run()
}

func (c *Console) run() {
	defer close(c.done)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		if c.enable.Load() == 0 {
			time.Sleep(idleSpin)
			continue
		}

		time.Sleep(PollInterval)
		b := byte(c.data.Load())
		if err := c.out.WriteByte(b); err != nil {
			log.WithError(err).Error("peripheral: console write failed")
		}
		c.out.Flush()
		c.enable.Store(0)
	}
}

// Stop signals the poll goroutine to exit and waits for it to do so. Safe to
// call more than once or concurrently; only the first call has effect.
func (c *Console) Stop() {
	c.stopped.Do(func() { close(c.stopCh) })
	<-c.done
}
