// Command assemble implements the assembler CLI from spec.md §6:
// assemble <outfile> <infile>. Exits 0 on success, non-zero on any
// assembler error.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/surgura/stackvm/asm"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: assemble <outfile> <infile>")
		os.Exit(1)
	}
	outfile, infile := os.Args[1], os.Args[2]

	src, err := os.Open(infile)
	if err != nil {
		log.WithError(err).Error("assemble: cannot open source")
		os.Exit(1)
	}
	defer src.Close()

	bin, err := asm.Assemble(src)
	if err != nil {
		log.WithError(err).Error("assemble: failed")
		os.Exit(1)
	}

	if err := os.WriteFile(outfile, bin, 0o644); err != nil {
		log.WithError(err).Error("assemble: cannot write output")
		os.Exit(1)
	}
}
