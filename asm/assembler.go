// Package asm implements the two-pass textual assembler described in
// spec.md §4.3: it tokenizes a line-oriented mnemonic source, resolves
// symbolic labels against a patch table, and emits a raw binary loadable at
// a caller-chosen global offset.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/surgura/stackvm/isa"
)

// comments strips a trailing "// ..." line comment, the same convention
// KTStephano-GVM/vm/compile.go and this ISA's own console library sources use.
var comments = regexp.MustCompile(`//.*`)

// opening records a site in the output buffer where an unresolved label
// reference was emitted as 8 zero bytes, awaiting the fixup pass.
type opening struct {
	label string
	at    uint64
}

// Error is returned for every assembler failure: unknown mnemonic, arity
// mismatch, malformed offset directive, zero-length label, or unresolved
// label. Line is 1-based and 0 when not applicable (e.g. unresolved label,
// which is only detected after the whole source has been scanned).
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

func fail(line int, format string, args ...any) error {
	err := &Error{Line: line, Msg: fmt.Sprintf(format, args...)}
	log.WithError(err).Error("assembler failed")
	return err
}

// Assemble reads a complete UTF-8 source program from r and returns the
// emitted binary. See spec.md §4.3 for the grammar.
func Assemble(r io.Reader) ([]byte, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	return assembleLines(lines)
}

// AssembleString is a convenience wrapper over Assemble for in-memory
// sources (used heavily by tests).
func AssembleString(src string) ([]byte, error) {
	return assembleLines(strings.Split(src, "\n"))
}

func assembleLines(rawLines []string) ([]byte, error) {
	globalOffset, lineNo, err := parseOffsetDirective(rawLines)
	if err != nil {
		return nil, err
	}

	w := isa.NewIncrementalWriter()
	labels := make(map[string]uint64)
	var openings []opening

	for ; lineNo < len(rawLines); lineNo++ {
		line := stripComment(rawLines[lineNo])
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		tokens := strings.Fields(line)

		if strings.HasPrefix(line, ":") {
			name, err := labelName(tokens[0])
			if err != nil {
				return nil, fail(lineNo+1, "%s", err)
			}
			if len(tokens) > 1 {
				return nil, fail(lineNo+1, "label definition %q has trailing tokens", tokens[0])
			}
			labels[name] = w.Pos()
			log.Debugf("asm: label %s @ %d", name, w.Pos())
			continue
		}

		if err := emitInstruction(w, tokens, &openings, lineNo+1); err != nil {
			return nil, err
		}
	}

	for _, op := range openings {
		addr, ok := labels[op.label]
		if !ok {
			return nil, fail(0, "unresolved label: %s", op.label)
		}
		w.PatchU64(op.at, addr+globalOffset)
	}

	return w.Bytes(), nil
}

// parseOffsetDirective consumes leading blank lines and returns the value of
// the first non-empty line, which must be the ":hex64" global offset
// directive, plus the index of the line after it.
func parseOffsetDirective(rawLines []string) (offset uint64, nextLine int, err error) {
	for i, raw := range rawLines {
		line := strings.TrimSpace(stripComment(raw))
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ":") {
			return 0, 0, fail(i+1, "expected offset directive (':hex64'), got %q", line)
		}
		numStr := strings.TrimSpace(line[1:])
		if numStr == "" {
			return 0, 0, fail(i+1, "malformed offset directive: empty number")
		}
		v, perr := strconv.ParseUint(numStr, 16, 64)
		if perr != nil {
			return 0, 0, fail(i+1, "malformed offset directive: %v", perr)
		}
		return v, i + 1, nil
	}
	return 0, 0, fail(0, "source has no offset directive")
}

func stripComment(line string) string {
	return comments.ReplaceAllString(line, "")
}

// labelName strips the leading ':' from a label token and validates it is
// non-empty.
func labelName(tok string) (string, error) {
	name := strings.TrimPrefix(tok, ":")
	if name == "" {
		return "", fmt.Errorf("label of length zero")
	}
	return name, nil
}

func emitInstruction(w *isa.IncrementalWriter, tokens []string, openings *[]opening, lineNo int) error {
	mnemonic := tokens[0]
	op, ok := isa.Lookup(mnemonic)
	if !ok {
		return fail(lineNo, "unknown mnemonic: %q", mnemonic)
	}

	args := tokens[1:]
	wantArity := op.Arity()
	if len(args) != wantArity {
		return fail(lineNo, "%s wanted %d argument(s) but got %d", mnemonic, wantArity, len(args))
	}

	log.Debugf("asm: %d: %s %v", w.Pos(), mnemonic, args)

	w.PutU16(uint16(op))
	if wantArity == 0 {
		return nil
	}

	arg := args[0]
	switch op.Operand() {
	case isa.U8Operand:
		if strings.HasPrefix(arg, ":") {
			return fail(lineNo, "%s takes a u8 immediate, not a label reference", mnemonic)
		}
		v, err := strconv.ParseUint(arg, 16, 64)
		if err != nil {
			return fail(lineNo, "invalid hex argument %q: %v", arg, err)
		}
		w.PutU8(uint8(v))
	case isa.U64Operand:
		if strings.HasPrefix(arg, ":") {
			name, err := labelName(arg)
			if err != nil {
				return fail(lineNo, "%s", err)
			}
			*openings = append(*openings, opening{label: name, at: w.Pos()})
			w.PutZerosU64()
		} else {
			v, err := strconv.ParseUint(arg, 16, 64)
			if err != nil {
				return fail(lineNo, "invalid hex argument %q: %v", arg, err)
			}
			w.PutU64(v)
		}
	}
	return nil
}
