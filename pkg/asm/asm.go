// Package asm assembles the compiler's textual IR into executable byte-code.
//
// Assembly happens in two passes. Pass 1 walks the source, assigns each
// function its numeric id in declaration order (the entry procedure is
// always id 0 regardless of where it appears), emits code with placeholder
// bytes for operands whose targets have not been seen yet, and records those
// in an unresolved-reference list. Pass 2 resolves that list against the
// completed label and function tables; anything still unresolved is a
// compile error, reported as a batch.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"microturtle/pkg/vm"
)

var zeroOperandOps = map[string]byte{
	"FD":        vm.OpFD,
	"BK":        vm.OpBK,
	"LT":        vm.OpLT,
	"RT":        vm.OpRT,
	"PU":        vm.OpPU,
	"PD":        vm.OpPD,
	"IADD":      vm.OpIADD,
	"ISUB":      vm.OpISUB,
	"IMUL":      vm.OpIMUL,
	"IDIV":      vm.OpIDIV,
	"ICONST_0":  vm.OpICONST0,
	"ICONST_1":  vm.OpICONST1,
	"ICONST_45": vm.OpICONST45,
	"ICONST_90": vm.OpICONST90,
	"ILOAD_0":   vm.OpILOAD0,
	"ILOAD_1":   vm.OpILOAD1,
	"ILOAD_2":   vm.OpILOAD2,
	"ISTORE_0":  vm.OpISTORE0,
	"ISTORE_1":  vm.OpISTORE1,
	"ISTORE_2":  vm.OpISTORE2,
	"GLOAD_0":   vm.OpGLOAD0,
	"GLOAD_1":   vm.OpGLOAD1,
	"GLOAD_2":   vm.OpGLOAD2,
	"GSTORE_0":  vm.OpGSTORE0,
	"GSTORE_1":  vm.OpGSTORE1,
	"GSTORE_2":  vm.OpGSTORE2,
	"ILT":       vm.OpILT,
	"ILE":       vm.OpILE,
	"IGT":       vm.OpIGT,
	"IGE":       vm.OpIGE,
	"IEQ":       vm.OpIEQ,
	"INE":       vm.OpINE,
	"RET":       vm.OpRET,
	"STOP":      vm.OpSTOP,
	"FD_RAW":    vm.OpFDRaw,
	"BK_RAW":    vm.OpBKRaw,
	"LT_RAW":    vm.OpLTRaw,
	"RT_RAW":    vm.OpRTRaw,
}

var immediateOps = map[string]byte{
	"ICONST": vm.OpICONST,
	"ILOAD":  vm.OpILOAD,
	"ISTORE": vm.OpISTORE,
	"GLOAD":  vm.OpGLOAD,
	"GSTORE": vm.OpGSTORE,
}

var branchOps = map[string]byte{
	"BR":  vm.OpBR,
	"BRT": vm.OpBRT,
	"BRF": vm.OpBRF,
}

// EntryName marks the implicit entry procedure in a .def directive.
const EntryName = "<main>"

// Error is one assembly diagnostic, positioned by source line.
type Error struct {
	Line    int
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// refKind distinguishes what an unresolved placeholder points at.
type refKind int

const (
	refLabel refKind = iota
	refFunc
)

// unresolvedRef records a forward reference: the function it sits in, the
// placeholder offset to patch, the symbolic target, and the source line for
// diagnostics.
type unresolvedRef struct {
	kind    refKind
	fn      *funcBuild
	patchAt int
	target  string
	line    int
}

// funcBuild accumulates one function during pass 1.
type funcBuild struct {
	name   string
	id     int
	args   int
	locals int
	stack  int
	code   []byte
	labels map[string]int // label -> byte offset
	line   int
}

// Assembler holds the state shared by both passes.
type Assembler struct {
	globals    int
	funcs      []*funcBuild
	byName     map[string]*funcBuild
	current    *funcBuild
	unresolved []unresolvedRef
	nextID     int
	errs       []Error
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		byName: make(map[string]*funcBuild),
		nextID: 1, // id 0 is reserved for the entry procedure
	}
}

// Assemble runs both passes over the source and returns the program, or the
// batch of diagnostics that prevented one from being produced.
func Assemble(source string) (*vm.Program, []Error) {
	return NewAssembler().Assemble(source)
}

func (a *Assembler) Assemble(source string) (*vm.Program, []Error) {
	a.pass1(strings.Split(source, "\n"))
	a.finalize()
	if len(a.errs) > 0 {
		return nil, a.errs
	}
	return a.build(), nil
}

func (a *Assembler) errorf(line int, format string, args ...any) {
	a.errs = append(a.errs, Error{Line: line, Message: fmt.Sprintf(format, args...)})
}

// pass1 parses every line, emitting code and recording labels as their
// offsets become known.
func (a *Assembler) pass1(lines []string) {
	for i, raw := range lines {
		lineNo := i + 1
		line := raw
		if idx := strings.Index(line, ";"); idx != -1 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			a.directive(line, lineNo)
			continue
		}

		// A label may share its line with an instruction.
		for {
			idx := strings.Index(line, ":")
			if idx == -1 {
				break
			}
			a.defineLabel(strings.TrimSpace(line[:idx]), lineNo)
			line = strings.TrimSpace(line[idx+1:])
		}
		if line == "" {
			continue
		}

		a.instruction(line, lineNo)
	}
}

func (a *Assembler) directive(line string, lineNo int) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".globals":
		if len(fields) != 2 {
			a.errorf(lineNo, ".globals expects exactly one operand")
			return
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			a.errorf(lineNo, "invalid .globals count %q", fields[1])
			return
		}
		a.globals = n

	case ".def":
		if len(fields) != 5 {
			a.errorf(lineNo, ".def expects name, argument, local and stack counts")
			return
		}
		name := fields[1]
		nums := make([]int, 3)
		for i, f := range fields[2:] {
			n, err := strconv.Atoi(f)
			if err != nil || n < 0 {
				a.errorf(lineNo, "invalid count %q in .def %s", f, name)
				return
			}
			nums[i] = n
		}
		if _, exists := a.byName[name]; exists {
			a.errorf(lineNo, "function %q already defined", name)
			return
		}
		fn := &funcBuild{
			name:   name,
			args:   nums[0],
			locals: nums[1],
			stack:  nums[2],
			labels: make(map[string]int),
			line:   lineNo,
		}
		if name == EntryName {
			fn.id = 0
		} else {
			fn.id = a.nextID
			a.nextID++
		}
		a.funcs = append(a.funcs, fn)
		a.byName[name] = fn
		a.current = fn

	default:
		a.errorf(lineNo, "unknown directive %s", fields[0])
	}
}

func (a *Assembler) defineLabel(label string, lineNo int) {
	if a.current == nil {
		a.errorf(lineNo, "label %q outside a function", label)
		return
	}
	key := normalizeLabel(label)
	if _, exists := a.current.labels[key]; exists {
		a.errorf(lineNo, "duplicate label %q", label)
		return
	}
	a.current.labels[key] = len(a.current.code)
}

func (a *Assembler) instruction(line string, lineNo int) {
	if a.current == nil {
		a.errorf(lineNo, "instruction outside a function: %s", line)
		return
	}
	fields := strings.Fields(line)
	mnemonic := strings.ToUpper(fields[0])
	operands := fields[1:]

	if op, ok := zeroOperandOps[mnemonic]; ok {
		if len(operands) != 0 {
			a.errorf(lineNo, "%s expects no operand", mnemonic)
			return
		}
		a.current.code = append(a.current.code, op)
		return
	}

	if op, ok := immediateOps[mnemonic]; ok {
		if len(operands) != 1 {
			a.errorf(lineNo, "%s expects exactly one operand", mnemonic)
			return
		}
		v, err := strconv.ParseInt(operands[0], 0, 32)
		if err != nil {
			a.errorf(lineNo, "invalid operand %q for %s", operands[0], mnemonic)
			return
		}
		a.emitWide(op, int32(v))
		return
	}

	if op, ok := branchOps[mnemonic]; ok {
		if len(operands) != 1 {
			a.errorf(lineNo, "%s expects a label operand", mnemonic)
			return
		}
		key := normalizeLabel(operands[0])
		if offset, ok := a.current.labels[key]; ok {
			a.emitWide(op, int32(offset))
			return
		}
		// Target not seen yet: emit a placeholder and note the patch site.
		at := len(a.current.code) + 1
		a.emitWide(op, 0)
		a.unresolved = append(a.unresolved, unresolvedRef{
			kind: refLabel, fn: a.current, patchAt: at, target: key, line: lineNo,
		})
		return
	}

	if mnemonic == "CALL" {
		if len(operands) != 1 {
			a.errorf(lineNo, "CALL expects a function operand")
			return
		}
		if fn, ok := a.byName[operands[0]]; ok {
			a.emitWide(vm.OpCALL, int32(fn.id))
			return
		}
		at := len(a.current.code) + 1
		a.emitWide(vm.OpCALL, 0)
		a.unresolved = append(a.unresolved, unresolvedRef{
			kind: refFunc, fn: a.current, patchAt: at, target: operands[0], line: lineNo,
		})
		return
	}

	a.errorf(lineNo, "unknown instruction %s", mnemonic)
}

// emitWide appends a 1-operand instruction: the opcode followed by a
// big-endian 32-bit value.
func (a *Assembler) emitWide(op byte, v int32) {
	u := uint32(v)
	a.current.code = append(a.current.code, op,
		byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

// finalize is pass 2: patch every recorded reference now that all labels and
// functions are known.
func (a *Assembler) finalize() {
	for _, ref := range a.unresolved {
		var value int
		switch ref.kind {
		case refLabel:
			offset, ok := ref.fn.labels[ref.target]
			if !ok {
				a.errorf(ref.line, "unknown label %q", ref.target)
				continue
			}
			value = offset
		case refFunc:
			fn, ok := a.byName[ref.target]
			if !ok {
				a.errorf(ref.line, "unknown function %q", ref.target)
				continue
			}
			value = fn.id
		}
		u := uint32(int32(value))
		ref.fn.code[ref.patchAt] = byte(u >> 24)
		ref.fn.code[ref.patchAt+1] = byte(u >> 16)
		ref.fn.code[ref.patchAt+2] = byte(u >> 8)
		ref.fn.code[ref.patchAt+3] = byte(u)
	}

	if len(a.funcs) == 0 {
		a.errorf(1, "no functions defined")
		return
	}
	if _, ok := a.byName[EntryName]; !ok {
		a.errorf(1, "no entry procedure defined")
	}
	for _, fn := range a.funcs {
		if len(fn.code) == 0 {
			a.errorf(fn.line, "function %q has no contents", fn.name)
		}
	}
}

// build lays the functions out by id, the entry procedure first.
func (a *Assembler) build() *vm.Program {
	prog := &vm.Program{
		GlobalCount: a.globals,
		Functions:   make([]*vm.Function, len(a.funcs)),
	}
	for _, fn := range a.funcs {
		prog.Functions[fn.id] = &vm.Function{
			ID:         fn.id,
			ArgCount:   fn.args,
			LocalCount: fn.locals,
			StackSize:  fn.stack,
			Code:       fn.code,
		}
	}
	return prog
}

func normalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}
