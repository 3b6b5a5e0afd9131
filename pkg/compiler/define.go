package compiler

import (
	"fmt"

	"microturtle/pkg/lang"
)

// loopVarNames returns the two hidden counter names for a loop at the given
// nesting depth. The characters make them impossible to collide with user
// identifiers, and keying them by depth alone lets sibling loops at the same
// depth share the same two slots: siblings never run concurrently.
func loopVarNames(depth int) (index, limit string) {
	return fmt.Sprintf("repeat#%d.index", depth), fmt.Sprintf("repeat#%d.limit", depth)
}

// analysis carries everything the passes learn about one program: the scope
// tree, the per-procedure scopes in definition order, and the diagnostics.
type analysis struct {
	global *Scope
	procs  []*lang.ProcDef
	scopes map[*lang.ProcDef]*Scope
	errs   ErrorList
}

// analyze runs the definition pass and then the reference/stack-depth pass.
func analyze(prog *lang.Program) *analysis {
	a := &analysis{
		global: NewScope(nil),
		scopes: make(map[*lang.ProcDef]*Scope),
	}
	a.defineStmts(prog.Statements, a.global, 0)
	a.checkStmts(prog.Statements, a.global)
	return a
}

// defineStmts is the definition pass: it builds the scope tree, binds
// variable and procedure names and synthesizes the loop-control variables.
func (a *analysis) defineStmts(stmts []lang.Stmt, sc *Scope, loopDepth int) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *lang.AssignStmt:
			// An assignment to a resolvable name updates that binding; a new
			// name binds here: a VM global at the top level, a frame local
			// inside a procedure.
			if _, _, ok := sc.ResolveVariable(s.Name); !ok {
				if _, err := sc.DefineVariable(s.Name); err != nil {
					a.errs.Add(s.At, "%v", err)
				}
			}

		case *lang.RepeatStmt:
			index, limit := loopVarNames(loopDepth)
			// Already-defined means a sibling loop at this depth claimed the
			// slots; they are reused deliberately.
			sc.DefineVariable(index)
			sc.DefineVariable(limit)
			a.defineStmts(s.Body, sc, loopDepth+1)

		case *lang.IfStmt:
			a.defineStmts(s.Then, sc, loopDepth)
			a.defineStmts(s.Else, sc, loopDepth)

		case *lang.ProcDef:
			if !sc.IsGlobal() {
				a.errs.Add(s.At, "procedure %q may only be defined at the top level", s.Name)
				continue
			}
			body := NewScope(sc)
			for _, p := range s.Params {
				if _, err := body.DefineVariable(p); err != nil {
					a.errs.Add(s.At, "parameter %v", err)
				}
			}
			if err := sc.DefineProcedure(s.Name, len(s.Params), body); err != nil {
				a.errs.Add(s.At, "%v", err)
				continue
			}
			a.procs = append(a.procs, s)
			a.scopes[s] = body
			a.defineStmts(s.Body, body, 0)
		}
	}
}
