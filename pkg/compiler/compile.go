// Package compiler lowers a parsed turtle program to robot byte-code.
//
// Compilation runs in fixed phases: a definition pass builds the scope tree
// and binds every name, a reference pass validates uses and sizes each
// function's operand stack, code generation emits textual assembly, and the
// assembler turns that into an executable program. Any diagnostic stops the
// pipeline before the next phase runs, so a broken program never yields
// partial byte-code.
package compiler

import (
	"microturtle/pkg/asm"
	"microturtle/pkg/lang"
	"microturtle/pkg/vm"
)

// Result carries everything a successful compilation produced. Listing holds
// the intermediate assembly, kept around for tooling and diagnostics.
type Result struct {
	Program *vm.Program
	Listing string
}

// Compile runs the full pipeline over a parse tree. On failure it returns
// every diagnostic found in the earliest failing phase.
func Compile(tree *lang.Program) (*Result, error) {
	a := analyze(tree)
	if err := a.errs.Err(); err != nil {
		return nil, err
	}

	listing := generate(tree, a)

	prog, asmErrs := asm.Assemble(listing)
	if len(asmErrs) > 0 {
		var errs ErrorList
		for _, e := range asmErrs {
			errs.Add(lang.Pos{Line: e.Line}, "%s", e.Message)
		}
		return nil, errs
	}

	return &Result{Program: prog, Listing: listing}, nil
}
