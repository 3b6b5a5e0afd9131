package compiler

import (
	"fmt"
	"strings"

	"microturtle/pkg/lang"
)

// EntryName is the assembly-level name of the implicit entry procedure
// generated from the program's top-level statements.
const EntryName = "<main>"

// segment is an ordered list of emitted assembly lines. Segments nest on an
// explicit stack so a construct's code can be generated before its final
// position in the parent is known, then spliced in.
type segment []string

// generator lowers an analyzed parse tree into textual assembly.
type generator struct {
	a         *analysis
	segs      []segment
	labelSeq  int
	loopDepth int
}

// generate produces the assembly IR: one .def segment per user procedure in
// definition order, then the implicit entry procedure terminated by STOP.
func generate(prog *lang.Program, a *analysis) string {
	g := &generator{a: a}
	var out strings.Builder

	fmt.Fprintf(&out, ".globals %d\n", a.global.VarCount())

	for _, proc := range a.procs {
		sc := a.scopes[proc]
		g.pushSegment()
		g.genStmts(proc.Body, sc)
		g.emit("RET")
		body := g.popSegment()

		fmt.Fprintf(&out, "\n.def %s %d %d %d\n", proc.Name,
			len(proc.Params), sc.VarCount()-len(proc.Params), sc.MaxDepth())
		writeSegment(&out, body)
	}

	g.pushSegment()
	for _, stmt := range prog.Statements {
		if _, ok := stmt.(*lang.ProcDef); ok {
			continue
		}
		g.genStmt(stmt, a.global)
	}
	g.emit("STOP")
	entry := g.popSegment()

	fmt.Fprintf(&out, "\n.def %s 0 0 %d\n", EntryName, a.global.MaxDepth())
	writeSegment(&out, entry)

	return out.String()
}

func writeSegment(out *strings.Builder, seg segment) {
	for _, line := range seg {
		if strings.HasSuffix(line, ":") {
			fmt.Fprintf(out, "%s\n", line)
		} else {
			fmt.Fprintf(out, "\t%s\n", line)
		}
	}
}

func (g *generator) pushSegment() {
	g.segs = append(g.segs, nil)
}

func (g *generator) popSegment() segment {
	seg := g.segs[len(g.segs)-1]
	g.segs = g.segs[:len(g.segs)-1]
	return seg
}

// splice appends a finished child segment into the current one.
func (g *generator) splice(seg segment) {
	g.segs[len(g.segs)-1] = append(g.segs[len(g.segs)-1], seg...)
}

func (g *generator) emit(format string, args ...any) {
	top := len(g.segs) - 1
	g.segs[top] = append(g.segs[top], fmt.Sprintf(format, args...))
}

// label mints a globally unique label: the numeric suffix increases
// monotonically across the whole program.
func (g *generator) label(prefix string) string {
	g.labelSeq++
	return fmt.Sprintf("%s_%d", prefix, g.labelSeq)
}

func (g *generator) genStmts(stmts []lang.Stmt, sc *Scope) {
	for _, stmt := range stmts {
		g.genStmt(stmt, sc)
	}
}

func (g *generator) genStmt(stmt lang.Stmt, sc *Scope) {
	switch s := stmt.(type) {
	case *lang.MoveStmt:
		g.genExpr(s.Dist, sc)
		g.emit("%s", moveMnemonic(s.Op))

	case *lang.RawMoveStmt:
		g.genExpr(s.Left, sc)
		g.genExpr(s.Right, sc)
		g.emit("%s_RAW", moveMnemonic(s.Op))

	case *lang.PenStmt:
		if s.Down {
			g.emit("PD")
		} else {
			g.emit("PU")
		}

	case *lang.AssignStmt:
		g.genExpr(s.Value, sc)
		g.genStore(s.Name, sc)

	case *lang.RepeatStmt:
		g.genRepeat(s, sc)

	case *lang.IfStmt:
		g.genIf(s, sc)

	case *lang.CallStmt:
		for _, arg := range s.Args {
			g.genExpr(arg, sc)
		}
		g.emit("CALL %s", s.Name)

	case *lang.ProcDef:
		// Procedures are emitted as their own .def segments by generate.
	}
}

// genRepeat lowers the counting loop. The loop body is generated into its
// own segment first, then spliced between the test and the back-branch.
func (g *generator) genRepeat(s *lang.RepeatStmt, sc *Scope) {
	depth := g.loopDepth
	index, limit := loopVarNames(depth)

	g.loopDepth++
	g.pushSegment()
	g.genStmts(s.Body, sc)
	body := g.popSegment()
	g.loopDepth--

	start := g.label("loop")
	end := g.label("endloop")

	g.emit("ICONST_0")
	g.genStore(index, sc)
	g.genExpr(s.Count, sc)
	g.genStore(limit, sc)
	g.emit("%s:", start)
	g.genLoad(index, sc)
	g.genLoad(limit, sc)
	g.emit("IGE")
	g.emit("BRT %s", end)
	g.splice(body)
	g.genLoad(index, sc)
	g.emit("ICONST_1")
	g.emit("IADD")
	g.genStore(index, sc)
	g.emit("BR %s", start)
	g.emit("%s:", end)
}

func (g *generator) genIf(s *lang.IfStmt, sc *Scope) {
	g.pushSegment()
	g.genStmts(s.Then, sc)
	thenSeg := g.popSegment()

	var elseSeg segment
	if len(s.Else) > 0 {
		g.pushSegment()
		g.genStmts(s.Else, sc)
		elseSeg = g.popSegment()
	}

	g.genExpr(s.Cond, sc)
	if elseSeg == nil {
		end := g.label("endif")
		g.emit("BRF %s", end)
		g.splice(thenSeg)
		g.emit("%s:", end)
		return
	}
	otherwise := g.label("else")
	end := g.label("endif")
	g.emit("BRF %s", otherwise)
	g.splice(thenSeg)
	g.emit("BR %s", end)
	g.emit("%s:", otherwise)
	g.splice(elseSeg)
	g.emit("%s:", end)
}

func (g *generator) genExpr(expr lang.Expr, sc *Scope) {
	switch e := expr.(type) {
	case *lang.NumberLit:
		g.genConst(e.Value)

	case *lang.VarRef:
		g.genLoad(e.Name, sc)

	case *lang.BinaryExpr:
		g.genExpr(e.LHS, sc)
		g.genExpr(e.RHS, sc)
		g.emit("%s", binMnemonic(e.Op))

	case *lang.NegExpr:
		g.emit("ICONST_0")
		g.genExpr(e.X, sc)
		g.emit("ISUB")

	case *lang.LogicalExpr:
		g.genLogical(e, sc)
	}
}

// genLogical emits a short-circuit AND/OR chain: every operand branches to a
// shared fail (AND) or pass (OR) label, and the chain converges after
// pushing its boolean result.
func (g *generator) genLogical(e *lang.LogicalExpr, sc *Scope) {
	if e.Op == lang.And {
		fail := g.label("and_fail")
		end := g.label("and_end")
		for _, op := range e.Operands {
			g.genExpr(op, sc)
			g.emit("BRF %s", fail)
		}
		g.emit("ICONST_1")
		g.emit("BR %s", end)
		g.emit("%s:", fail)
		g.emit("ICONST_0")
		g.emit("%s:", end)
		return
	}
	pass := g.label("or_pass")
	end := g.label("or_end")
	for _, op := range e.Operands {
		g.genExpr(op, sc)
		g.emit("BRT %s", pass)
	}
	g.emit("ICONST_0")
	g.emit("BR %s", end)
	g.emit("%s:", pass)
	g.emit("ICONST_1")
	g.emit("%s:", end)
}

// genConst prefers the dedicated single-byte constants.
func (g *generator) genConst(v int32) {
	switch v {
	case 0:
		g.emit("ICONST_0")
	case 1:
		g.emit("ICONST_1")
	case 45:
		g.emit("ICONST_45")
	case 90:
		g.emit("ICONST_90")
	default:
		g.emit("ICONST %d", v)
	}
}

func (g *generator) genLoad(name string, sc *Scope) {
	slot, owner, ok := sc.ResolveVariable(name)
	if !ok {
		// The reference pass already reported this; emit nothing.
		return
	}
	g.emit("%s", slotMnemonic(owner.IsGlobal(), true, slot))
}

func (g *generator) genStore(name string, sc *Scope) {
	slot, owner, ok := sc.ResolveVariable(name)
	if !ok {
		return
	}
	g.emit("%s", slotMnemonic(owner.IsGlobal(), false, slot))
}

// slotMnemonic picks the short single-byte form for slots 0-2.
func slotMnemonic(global, load bool, slot int) string {
	base := "ISTORE"
	switch {
	case global && load:
		base = "GLOAD"
	case global:
		base = "GSTORE"
	case load:
		base = "ILOAD"
	}
	if slot <= 2 {
		return fmt.Sprintf("%s_%d", base, slot)
	}
	return fmt.Sprintf("%s %d", base, slot)
}

func moveMnemonic(op lang.MoveOp) string {
	switch op {
	case lang.Forward:
		return "FD"
	case lang.Back:
		return "BK"
	case lang.TurnLeft:
		return "LT"
	default:
		return "RT"
	}
}

func binMnemonic(op lang.BinOp) string {
	switch op {
	case lang.Add:
		return "IADD"
	case lang.Sub:
		return "ISUB"
	case lang.Mul:
		return "IMUL"
	case lang.Div:
		return "IDIV"
	case lang.Lt:
		return "ILT"
	case lang.Le:
		return "ILE"
	case lang.Gt:
		return "IGT"
	case lang.Ge:
		return "IGE"
	case lang.Eq:
		return "IEQ"
	default:
		return "INE"
	}
}
