package compiler

import (
	"microturtle/pkg/lang"
)

// checkStmts is the reference and stack-depth pass. It validates every
// procedure invocation against its descriptor and simulates operand-stack
// traffic on the enclosing scope, so each function's worst-case depth is
// known before code generation.
func (a *analysis) checkStmts(stmts []lang.Stmt, sc *Scope) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *lang.MoveStmt:
			a.checkExpr(s.Dist, sc)
			sc.Track(-1, 0)

		case *lang.RawMoveStmt:
			a.checkExpr(s.Left, sc)
			a.checkExpr(s.Right, sc)
			sc.Track(-2, 0)

		case *lang.PenStmt:
			// No operands.

		case *lang.AssignStmt:
			a.checkExpr(s.Value, sc)
			sc.Track(-1, 0)

		case *lang.RepeatStmt:
			a.checkExpr(s.Count, sc)
			sc.Track(-1, 0)
			// Loop bookkeeping holds up to two counter values on the stack
			// at once (condition test and increment).
			sc.Track(0, 2)
			a.checkStmts(s.Body, sc)

		case *lang.IfStmt:
			a.checkExpr(s.Cond, sc)
			sc.Track(-1, 0)
			a.checkStmts(s.Then, sc)
			a.checkStmts(s.Else, sc)

		case *lang.CallStmt:
			for _, arg := range s.Args {
				a.checkExpr(arg, sc)
			}
			proc, ok := sc.ResolveProcedure(s.Name)
			if !ok {
				a.errs.Add(s.At, "unresolved reference to procedure %q", s.Name)
			} else if len(s.Args) != proc.ParamCount {
				a.errs.Add(s.At, "procedure %q expects %d arguments, got %d",
					s.Name, proc.ParamCount, len(s.Args))
			}
			sc.Track(-len(s.Args), 0)

		case *lang.ProcDef:
			// A procedure the definition pass refused (nested, duplicate) has
			// no scope; its diagnostic is already collected.
			if body := a.scopes[s]; body != nil {
				a.checkStmts(s.Body, body)
			}
		}
	}
}

func (a *analysis) checkExpr(expr lang.Expr, sc *Scope) {
	switch e := expr.(type) {
	case *lang.NumberLit:
		sc.Track(1, 0)

	case *lang.VarRef:
		if _, _, ok := sc.ResolveVariable(e.Name); !ok {
			a.errs.Add(e.At, "unknown identifier %q", e.Name)
		}
		sc.Track(1, 0)

	case *lang.BinaryExpr:
		a.checkExpr(e.LHS, sc)
		a.checkExpr(e.RHS, sc)
		sc.Track(-1, 0)

	case *lang.NegExpr:
		// Negation subtracts from an intermediate zero constant, so its
		// operand sits one deeper than the net effect suggests.
		sc.Track(1, 1)
		a.checkExpr(e.X, sc)
		sc.Track(-1, 0)

	case *lang.LogicalExpr:
		for _, op := range e.Operands {
			a.checkExpr(op, sc)
			sc.Track(-1, 0)
		}
		sc.Track(1, 0)
	}
}
