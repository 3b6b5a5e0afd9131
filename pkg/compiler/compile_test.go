package compiler

import (
	"errors"
	"math"
	"strings"
	"testing"

	"microturtle/pkg/config"
	"microturtle/pkg/lang"
	"microturtle/pkg/motion"
	"microturtle/pkg/vm"
)

func num(v int32) *lang.NumberLit      { return &lang.NumberLit{Value: v} }
func ref(name string) *lang.VarRef     { return &lang.VarRef{Name: name} }
func fd(dist lang.Expr) *lang.MoveStmt { return &lang.MoveStmt{Op: lang.Forward, Dist: dist} }
func rt(deg lang.Expr) *lang.MoveStmt  { return &lang.MoveStmt{Op: lang.TurnRight, Dist: deg} }

// runProgram executes compiled byte-code against the simulator, completing
// each motion as soon as the driver reports it.
func runProgram(t *testing.T, prog *vm.Program) *motion.Simulator {
	t.Helper()
	sim := motion.NewSimulator(config.DefaultStraightSteps, config.DefaultTurnSteps)
	m := vm.New(sim, config.Default())

	var lastGen int
	m.SetNotify(func(gen int) { lastGen = gen })
	if err := m.Load(prog); err != nil {
		t.Fatal("machine rejected compiled program:", err)
	}
	for i := 0; i < 1000000; i++ {
		switch m.Step() {
		case vm.StepContinue:
		case vm.StepPending:
			if !m.CompleteMotion(lastGen) {
				t.Fatal("motion completion rejected")
			}
		case vm.StepStopped:
			return sim
		case vm.StepFailed:
			t.Fatalf("runtime fault: %v", m.Err())
		}
	}
	t.Fatal("program did not terminate")
	return nil
}

func compileOK(t *testing.T, tree *lang.Program) *Result {
	t.Helper()
	res, err := Compile(tree)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return res
}

func compileErrors(t *testing.T, tree *lang.Program) ErrorList {
	t.Helper()
	res, err := Compile(tree)
	if err == nil {
		t.Fatal("Compile succeeded; want errors")
	}
	if res != nil {
		t.Fatal("Compile produced output alongside errors")
	}
	var list ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("error is %T; want ErrorList", err)
	}
	return list
}

func TestCompileRepeatSquare(t *testing.T) {
	tree := &lang.Program{Statements: []lang.Stmt{
		&lang.RepeatStmt{Count: num(4), Body: []lang.Stmt{
			fd(num(100)),
			rt(num(90)),
		}},
	}}
	res := compileOK(t, tree)

	// The loop's hidden counters are the only top-level variables.
	if res.Program.GlobalCount != 2 {
		t.Errorf("GlobalCount = %d; want 2 loop counters", res.Program.GlobalCount)
	}

	sim := runProgram(t, res.Program)
	if got := sim.DriveCount(); got != 8 {
		t.Errorf("drive count = %d; want 8 hand-offs", got)
	}
	x, y, _ := sim.Pose()
	if math.Abs(x) > 1 || math.Abs(y) > 1 {
		t.Errorf("pose = (%.2f, %.2f); want back at the start", x, y)
	}
}

func TestCompileNestedRepeatsShareSiblingSlots(t *testing.T) {
	// Two sibling loops reuse one counter pair; the nested loop needs its own.
	inner := &lang.RepeatStmt{Count: num(2), Body: []lang.Stmt{fd(num(1))}}
	tree := &lang.Program{Statements: []lang.Stmt{
		&lang.RepeatStmt{Count: num(2), Body: []lang.Stmt{inner}},
		&lang.RepeatStmt{Count: num(3), Body: []lang.Stmt{fd(num(1))}},
	}}
	res := compileOK(t, tree)

	if res.Program.GlobalCount != 4 {
		t.Errorf("GlobalCount = %d; want 4 (two counter pairs)", res.Program.GlobalCount)
	}
	sim := runProgram(t, res.Program)
	if got := sim.DriveCount(); got != 7 {
		t.Errorf("drive count = %d; want 2*2+3", got)
	}
}

func TestCompileProcedure(t *testing.T) {
	tree := &lang.Program{Statements: []lang.Stmt{
		&lang.ProcDef{Name: "square", Params: []string{"size"}, Body: []lang.Stmt{
			&lang.RepeatStmt{Count: num(4), Body: []lang.Stmt{
				fd(ref("size")),
				rt(num(90)),
			}},
		}},
		&lang.CallStmt{Name: "square", Args: []lang.Expr{num(50)}},
	}}
	res := compileOK(t, tree)

	// One parameter plus the loop's two counters as frame locals.
	if !strings.Contains(res.Listing, ".def square 1 2 2") {
		t.Errorf("listing lacks the expected square definition:\n%s", res.Listing)
	}
	if !strings.Contains(res.Listing, "CALL square") {
		t.Errorf("listing lacks the call:\n%s", res.Listing)
	}

	sim := runProgram(t, res.Program)
	if got := sim.DriveCount(); got != 8 {
		t.Errorf("drive count = %d; want 8", got)
	}
}

func TestCompileIfElse(t *testing.T) {
	tree := &lang.Program{Statements: []lang.Stmt{
		&lang.IfStmt{
			Cond: &lang.LogicalExpr{Op: lang.And, Operands: []lang.Expr{num(0), num(1)}},
			Then: []lang.Stmt{fd(num(10))},
			Else: []lang.Stmt{fd(num(20))},
		},
	}}
	res := compileOK(t, tree)
	sim := runProgram(t, res.Program)

	if got := sim.DriveCount(); got != 1 {
		t.Fatalf("drive count = %d; want 1", got)
	}
	_, y, _ := sim.Pose()
	if math.Abs(y-20) > 0.5 {
		t.Errorf("y = %.2f; the else branch should have moved 20", y)
	}
}

func TestCompileShortCircuitOr(t *testing.T) {
	tree := &lang.Program{Statements: []lang.Stmt{
		&lang.IfStmt{
			Cond: &lang.LogicalExpr{Op: lang.Or, Operands: []lang.Expr{num(1), num(0)}},
			Then: []lang.Stmt{fd(num(10))},
			Else: []lang.Stmt{fd(num(20))},
		},
	}}
	res := compileOK(t, tree)

	// Every operand branches to the shared pass label.
	if !strings.Contains(res.Listing, "BRT or_pass") {
		t.Errorf("listing lacks the short-circuit branch:\n%s", res.Listing)
	}
	sim := runProgram(t, res.Program)
	if got := sim.DriveCount(); got != 1 {
		t.Fatalf("drive count = %d; want 1", got)
	}
	_, y, _ := sim.Pose()
	if math.Abs(y-10) > 0.5 {
		t.Errorf("y = %.2f; a true OR should take the then branch", y)
	}
}

func TestCompileNegation(t *testing.T) {
	// fd -(10) drives the robot backwards.
	tree := &lang.Program{Statements: []lang.Stmt{
		fd(&lang.NegExpr{X: num(10)}),
	}}
	res := compileOK(t, tree)

	if !strings.Contains(res.Listing, "ISUB") {
		t.Errorf("listing lacks the zero-minus lowering:\n%s", res.Listing)
	}
	// The intermediate zero sits under the operand, so the entry needs two
	// stack slots.
	if !strings.Contains(res.Listing, ".def <main> 0 0 2") {
		t.Errorf("listing lacks the expected entry stack size:\n%s", res.Listing)
	}
	sim := runProgram(t, res.Program)
	_, y, _ := sim.Pose()
	if math.Abs(y+10) > 0.5 {
		t.Errorf("y = %.2f; want -10", y)
	}
}

func TestCompileRawMoveAndPen(t *testing.T) {
	tree := &lang.Program{Statements: []lang.Stmt{
		&lang.PenStmt{Down: true},
		&lang.RawMoveStmt{Op: lang.Forward, Left: num(100), Right: num(50)},
	}}
	res := compileOK(t, tree)

	if !strings.Contains(res.Listing, "FD_RAW") {
		t.Errorf("listing lacks the raw move:\n%s", res.Listing)
	}
	sim := runProgram(t, res.Program)
	if sim.DriveCount() != 1 || sim.ServoCount() != 1 {
		t.Errorf("counts = %d drives, %d servo ops; want 1 and 1",
			sim.DriveCount(), sim.ServoCount())
	}
}

func TestCompileSizesOperandStack(t *testing.T) {
	// fd (1 + 2 * 3) holds three operands at its deepest point.
	tree := &lang.Program{Statements: []lang.Stmt{
		fd(&lang.BinaryExpr{Op: lang.Add,
			LHS: num(1),
			RHS: &lang.BinaryExpr{Op: lang.Mul, LHS: num(2), RHS: num(3)},
		}),
	}}
	res := compileOK(t, tree)
	if !strings.Contains(res.Listing, ".def <main> 0 0 3") {
		t.Errorf("listing lacks the expected entry stack size:\n%s", res.Listing)
	}
	sim := runProgram(t, res.Program)
	_, y, _ := sim.Pose()
	if math.Abs(y-7) > 0.5 {
		t.Errorf("y = %.2f; want a 7-unit move", y)
	}
}

func TestCompileUnresolvedProcedureIsSingleError(t *testing.T) {
	tree := &lang.Program{Statements: []lang.Stmt{
		&lang.CallStmt{At: lang.Pos{Line: 3, Col: 1}, Name: "square", Args: []lang.Expr{num(50)}},
	}}
	errs := compileErrors(t, tree)
	if len(errs) != 1 {
		t.Fatalf("error count = %d; want exactly 1: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0].Message, `unresolved reference to procedure "square"`) {
		t.Errorf("message = %q", errs[0].Message)
	}
	if errs[0].Line != 3 {
		t.Errorf("line = %d; want 3", errs[0].Line)
	}
}

func TestCompileArityMismatch(t *testing.T) {
	tree := &lang.Program{Statements: []lang.Stmt{
		&lang.ProcDef{Name: "hop", Params: []string{"d"}, Body: []lang.Stmt{fd(ref("d"))}},
		&lang.CallStmt{Name: "hop", Args: []lang.Expr{num(1), num(2)}},
	}}
	errs := compileErrors(t, tree)
	if len(errs) != 1 {
		t.Fatalf("error count = %d; want 1: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0].Message, "expects 1 arguments, got 2") {
		t.Errorf("message = %q", errs[0].Message)
	}
}

func TestCompileUnknownIdentifier(t *testing.T) {
	tree := &lang.Program{Statements: []lang.Stmt{
		&lang.AssignStmt{Name: "x", Value: ref("y")},
	}}
	errs := compileErrors(t, tree)
	if len(errs) != 1 {
		t.Fatalf("error count = %d; want 1: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0].Message, `unknown identifier "y"`) {
		t.Errorf("message = %q", errs[0].Message)
	}
}

func TestCompileNestedProcedureRejected(t *testing.T) {
	tree := &lang.Program{Statements: []lang.Stmt{
		&lang.ProcDef{Name: "outer", Body: []lang.Stmt{
			&lang.ProcDef{Name: "inner", Body: []lang.Stmt{fd(num(1))}},
		}},
	}}
	errs := compileErrors(t, tree)
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "top level") {
			found = true
		}
	}
	if !found {
		t.Errorf("no top-level restriction error in %v", errs)
	}
}

func TestCompileVariablesAndAssignment(t *testing.T) {
	// x = 30; x = x + 12; fd x
	tree := &lang.Program{Statements: []lang.Stmt{
		&lang.AssignStmt{Name: "x", Value: num(30)},
		&lang.AssignStmt{Name: "x", Value: &lang.BinaryExpr{Op: lang.Add, LHS: ref("x"), RHS: num(12)}},
		fd(ref("x")),
	}}
	res := compileOK(t, tree)
	if res.Program.GlobalCount != 1 {
		t.Errorf("GlobalCount = %d; want 1", res.Program.GlobalCount)
	}
	sim := runProgram(t, res.Program)
	_, y, _ := sim.Pose()
	if math.Abs(y-42) > 0.5 {
		t.Errorf("y = %.2f; want 42", y)
	}
}
