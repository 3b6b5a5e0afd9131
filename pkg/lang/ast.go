// Package lang defines the parse-tree node types the compiler consumes.
// Trees are produced by an external parser front end; every node carries the
// source position that front end attached, so compile errors can point back
// into the user's program.
package lang

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

// Node is any parse-tree node.
type Node interface {
	Pos() Pos
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Program is the root: the top-level statement list. Non-procedure
// statements become the implicit entry procedure.
type Program struct {
	Statements []Stmt
}

// MoveOp distinguishes the four movement commands.
type MoveOp int

const (
	Forward MoveOp = iota
	Back
	TurnLeft
	TurnRight
)

func (op MoveOp) String() string {
	switch op {
	case Forward:
		return "fd"
	case Back:
		return "bk"
	case TurnLeft:
		return "lt"
	default:
		return "rt"
	}
}

// MoveStmt is fd/bk (length units) or lt/rt (degrees).
type MoveStmt struct {
	At   Pos
	Op   MoveOp
	Dist Expr
}

// RawMoveStmt is the uncalibrated variant: per-wheel step counts, left then
// right, passed straight through to the steppers.
type RawMoveStmt struct {
	At    Pos
	Op    MoveOp
	Left  Expr
	Right Expr
}

// PenStmt is penup/pendown.
type PenStmt struct {
	At   Pos
	Down bool
}

// AssignStmt binds a value to a name: global at the top level, local inside
// a procedure.
type AssignStmt struct {
	At    Pos
	Name  string
	Value Expr
}

// RepeatStmt is the counting loop.
type RepeatStmt struct {
	At    Pos
	Count Expr
	Body  []Stmt
}

// IfStmt is a conditional with an optional else branch.
type IfStmt struct {
	At   Pos
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// ProcDef defines a named procedure.
type ProcDef struct {
	At     Pos
	Name   string
	Params []string
	Body   []Stmt
}

// CallStmt invokes a procedure.
type CallStmt struct {
	At   Pos
	Name string
	Args []Expr
}

func (s *MoveStmt) Pos() Pos    { return s.At }
func (s *RawMoveStmt) Pos() Pos { return s.At }
func (s *PenStmt) Pos() Pos     { return s.At }
func (s *AssignStmt) Pos() Pos  { return s.At }
func (s *RepeatStmt) Pos() Pos  { return s.At }
func (s *IfStmt) Pos() Pos      { return s.At }
func (s *ProcDef) Pos() Pos     { return s.At }
func (s *CallStmt) Pos() Pos    { return s.At }

func (*MoveStmt) stmtNode()    {}
func (*RawMoveStmt) stmtNode() {}
func (*PenStmt) stmtNode()     {}
func (*AssignStmt) stmtNode()  {}
func (*RepeatStmt) stmtNode()  {}
func (*IfStmt) stmtNode()      {}
func (*ProcDef) stmtNode()     {}
func (*CallStmt) stmtNode()    {}

// BinOp is a binary arithmetic or comparison operator.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Lt
	Le
	Gt
	Ge
	Eq
	Ne
)

// LogicOp joins boolean operands with short-circuit evaluation.
type LogicOp int

const (
	And LogicOp = iota
	Or
)

// NumberLit is an integer literal.
type NumberLit struct {
	At    Pos
	Value int32
}

// VarRef reads a variable.
type VarRef struct {
	At   Pos
	Name string
}

// BinaryExpr applies a BinOp to two operands.
type BinaryExpr struct {
	At  Pos
	Op  BinOp
	LHS Expr
	RHS Expr
}

// NegExpr is unary arithmetic negation.
type NegExpr struct {
	At Pos
	X  Expr
}

// LogicalExpr is a short-circuit AND/OR chain of two or more operands.
type LogicalExpr struct {
	At       Pos
	Op       LogicOp
	Operands []Expr
}

func (e *NumberLit) Pos() Pos   { return e.At }
func (e *VarRef) Pos() Pos      { return e.At }
func (e *BinaryExpr) Pos() Pos  { return e.At }
func (e *NegExpr) Pos() Pos     { return e.At }
func (e *LogicalExpr) Pos() Pos { return e.At }

func (*NumberLit) exprNode()   {}
func (*VarRef) exprNode()      {}
func (*BinaryExpr) exprNode()  {}
func (*NegExpr) exprNode()     {}
func (*LogicalExpr) exprNode() {}
