// Command run implements the interpreter CLI from spec.md §6:
// run <binary> <libdir> [<trace>]. It loads <binary> at offset 0,
// <libdir>/console/printc.bin at 2000, <libdir>/console/printcstr.bin at
// 2100, starts the console peripheral, and executes to halt or fault.
//
// Supplemented: a -debug flag (parsed with the stdlib flag package, the
// convention KTStephano-GVM's main.go uses for its own debugVM switch) drops
// into a single-step REPL instead of running to completion.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/surgura/stackvm/peripheral"
	"github.com/surgura/stackvm/vm"
)

func main() {
	debug := flag.Bool("debug", false, "single-step through the program instead of running to completion")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprintln(os.Stderr, "Usage: run [-debug] <binary> <libdir> [<trace>]")
		os.Exit(1)
	}
	binaryPath, libdir := args[0], args[1]
	trace := len(args) == 3

	binary, err := os.ReadFile(binaryPath)
	if err != nil {
		log.WithError(err).Error("run: cannot read binary")
		os.Exit(1)
	}
	printc, err := os.ReadFile(filepath.Join(libdir, "console", "printc.bin"))
	if err != nil {
		log.WithError(err).Error("run: cannot read console/printc.bin")
		os.Exit(1)
	}
	printcstr, err := os.ReadFile(filepath.Join(libdir, "console", "printcstr.bin"))
	if err != nil {
		log.WithError(err).Error("run: cannot read console/printcstr.bin")
		os.Exit(1)
	}

	machine := vm.New(vm.DefaultCap)
	machine.Trace = trace
	machine.Load(vm.OffsetProgram, binary)
	machine.Load(vm.OffsetConsole, printc)
	machine.Load(vm.OffsetConsole+100, printcstr)

	console := peripheral.New(machine.Mem, os.Stdout)
	console.Start()
	defer console.Stop()

	var runErr error
	if *debug {
		_, runErr = machine.RunDebug(vm.OffsetProgram, os.Stdin, os.Stdout)
	} else {
		_, runErr = machine.Run(vm.OffsetProgram)
	}
	if runErr != nil {
		log.WithError(runErr).Error("run: execution failed")
		os.Exit(1)
	}
}
