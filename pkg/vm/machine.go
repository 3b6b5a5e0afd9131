package vm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"microturtle/pkg/motion"
)

// Runtime faults. Every one of these is fatal to the running program: the
// machine tears down all program state, transitions to StateError and stops
// the motors. The only recovery is loading a new program.
var (
	ErrStackOverflow          = errors.New("stack overflow")
	ErrStackUnderflow         = errors.New("stack underflow")
	ErrInvalidLocalIndex      = errors.New("invalid local variable index")
	ErrInvalidGlobalIndex     = errors.New("invalid global variable index")
	ErrInvalidFunctionID      = errors.New("invalid function id")
	ErrBranchOutOfBounds      = errors.New("branch beyond function boundary")
	ErrMissingReturn          = errors.New("end of function reached without RET/STOP")
	ErrUnknownOpcode          = errors.New("unknown opcode")
	ErrIllegalReturnFromEntry = errors.New("RET from the entry function")
	ErrDivideByZero           = errors.New("integer division by zero")
)

// State is the whole-machine execution state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Status is a point-in-time view of the machine. Function and Index identify
// the instruction about to execute and are only meaningful while running.
type Status struct {
	State    State
	Function int
	Index    int
}

// StepOutcome reports what a single dispatch did.
type StepOutcome int

const (
	// StepContinue: the instruction completed synchronously; dispatch may be
	// re-entered immediately (through the scheduler's queue, never recursively).
	StepContinue StepOutcome = iota
	// StepPending: the instruction handed a motion to the driver; dispatch must
	// not re-enter until the completion callback has fired.
	StepPending
	// StepStopped: the program reached STOP (or the machine was not running).
	StepStopped
	// StepFailed: a fatal runtime fault; see Err.
	StepFailed
)

// Calibration supplies the scale factors movement opcodes multiply their
// geometric operands by. Straight factors are steps per 100 length units,
// turn factors are steps per 90 degrees.
type Calibration interface {
	StraightSteps() (left, right int32)
	TurnSteps() (left, right int32)
}

// frame is one function invocation: program counter, locals and the operand
// stack sized to the function's declared maximum.
type frame struct {
	fn     *Function
	idx    int
	locals []int32
	stack  []int32
	sp     int
}

func newFrame(fn *Function) *frame {
	return &frame{
		fn:     fn,
		locals: make([]int32, fn.ArgCount+fn.LocalCount),
		stack:  make([]int32, fn.StackSize),
	}
}

// Machine is the byte-code virtual machine. It is a pure, single-threaded
// state machine: nothing here blocks or spawns goroutines, and all methods
// must be invoked from one logical thread of control (see Runner). Driver
// completion callbacks only mark the in-flight motion finished and invoke the
// notify hook; they never re-enter dispatch.
type Machine struct {
	driver motion.Driver
	cal    Calibration

	prog    *Program
	frames  []*frame
	globals []int32
	state   State
	err     error

	inFlight bool
	motioned int // generation counter guarding stale completion callbacks

	// notify, when set, is invoked (from the driver's callback context) each
	// time an in-flight motion completes. It must only post an event to the
	// scheduler; the scheduler applies the completion via CompleteMotion.
	notify func(gen int)
}

// New creates an idle machine bound to a motor driver and calibration source.
func New(driver motion.Driver, cal Calibration) *Machine {
	return &Machine{driver: driver, cal: cal}
}

// SetNotify installs the motion-completion hook used by the scheduler.
func (m *Machine) SetNotify(fn func(gen int)) { m.notify = fn }

// CompleteMotion marks the in-flight motion finished. The generation token
// makes stale callbacks from a torn-down program harmless. It must be called
// from the machine's own thread of control, never from the driver callback.
func (m *Machine) CompleteMotion(gen int) bool {
	if gen != m.motioned || m.state != StateRunning || !m.inFlight {
		return false
	}
	m.inFlight = false
	return true
}

// Status reports the machine state and, while running, the current program
// counter position.
func (m *Machine) Status() Status {
	st := Status{State: m.state}
	if m.state == StateRunning && len(m.frames) > 0 {
		top := m.frames[len(m.frames)-1]
		st.Function = top.fn.ID
		st.Index = top.idx
	}
	return st
}

// Err returns the fault that moved the machine into StateError, if any.
func (m *Machine) Err() error { return m.err }

// MotionPending reports whether a motion hand-off is still awaiting its
// completion callback.
func (m *Machine) MotionPending() bool { return m.inFlight }

// Load validates a program and, if accepted, makes it the current program and
// moves the machine to StateRunning with the entry function's frame on the
// call stack. A program already running is stopped first. Rejection returns
// the validation error and leaves the machine idle with no program loaded.
func (m *Machine) Load(p *Program) error {
	// Any prior run (including one in StateError) is torn down before the new
	// program is considered.
	m.Stop()

	if err := p.Validate(); err != nil {
		log.Error("program rejected", "err", err)
		return err
	}

	m.prog = p.Clone()
	m.frames = []*frame{newFrame(m.prog.Functions[0])}
	m.globals = make([]int32, m.prog.GlobalCount)
	m.state = StateRunning
	return nil
}

// Stop halts the motors, discards all program state (including a recorded
// fault) and returns the machine to StateIdle. Stopping an idle machine is a
// no-op.
func (m *Machine) Stop() {
	if m.prog == nil && m.state == StateIdle {
		return
	}
	m.driver.StopMotors()
	m.teardown()
	m.err = nil
	m.state = StateIdle
}

// teardown releases the program, frame chain and globals as one unit. No
// partial teardown is permitted.
func (m *Machine) teardown() {
	m.prog = nil
	m.frames = nil
	m.globals = nil
	m.inFlight = false
	m.motioned++ // invalidate any outstanding completion callback
}

// fail aborts the program with a fatal runtime fault.
func (m *Machine) fail(err error) StepOutcome {
	log.Error("program fault", "err", err)
	m.driver.StopMotors()
	m.teardown()
	m.err = err
	m.state = StateError
	return StepFailed
}

// Step executes exactly one instruction. It must not be called while a motion
// is pending; the scheduler re-enters only after the completion callback and
// settle delay.
func (m *Machine) Step() StepOutcome {
	if m.state != StateRunning {
		return StepStopped
	}
	if m.inFlight {
		return StepPending
	}

	f := m.frames[len(m.frames)-1]
	code := f.fn.Code
	if f.idx >= len(code) {
		return m.fail(fmt.Errorf("%w: function %d", ErrMissingReturn, f.fn.ID))
	}
	op := code[f.idx]
	n := InstrLen(op)
	if n == 0 {
		return m.fail(fmt.Errorf("%w: %d at function %d offset %d", ErrUnknownOpcode, op, f.fn.ID, f.idx))
	}
	if f.idx+n > len(code) {
		return m.fail(fmt.Errorf("%w: truncated %s in function %d", ErrMissingReturn, OpName(op), f.fn.ID))
	}
	var operand int32
	if n == 5 {
		operand = int32(binary.BigEndian.Uint32(code[f.idx+1 : f.idx+5]))
	}

	switch op {
	case OpFD, OpBK:
		units, err := m.pop(f)
		if err != nil {
			return m.fail(err)
		}
		sl, sr := m.cal.StraightSteps()
		ls := scaleSteps(units, sl, 100)
		rs := scaleSteps(units, sr, 100)
		if op == OpBK {
			ls, rs = -ls, -rs
		}
		return m.beginDrive(f, n, ls, rs)

	case OpLT, OpRT:
		degrees, err := m.pop(f)
		if err != nil {
			return m.fail(err)
		}
		tl, tr := m.cal.TurnSteps()
		ls := scaleSteps(degrees, tl, 90)
		rs := scaleSteps(degrees, tr, 90)
		if op == OpLT {
			ls = -ls
		} else {
			rs = -rs
		}
		return m.beginDrive(f, n, ls, rs)

	case OpFDRaw, OpBKRaw, OpLTRaw, OpRTRaw:
		rs, err := m.pop(f)
		if err != nil {
			return m.fail(err)
		}
		ls, err := m.pop(f)
		if err != nil {
			return m.fail(err)
		}
		switch op {
		case OpBKRaw:
			ls, rs = -ls, -rs
		case OpLTRaw:
			ls = -ls
		case OpRTRaw:
			rs = -rs
		}
		return m.beginDrive(f, n, ls, rs)

	case OpPU:
		if m.driver.PenPosition() == motion.PenUp {
			f.idx += n
			return StepContinue
		}
		f.idx += n
		m.beginMotion()
		m.driver.ServoUp(m.completionFunc())
		return StepPending

	case OpPD:
		if m.driver.PenPosition() == motion.PenDown {
			f.idx += n
			return StepContinue
		}
		f.idx += n
		m.beginMotion()
		m.driver.ServoDown(m.completionFunc())
		return StepPending

	case OpIADD, OpISUB, OpIMUL, OpIDIV, OpILT, OpILE, OpIGT, OpIGE, OpIEQ, OpINE:
		b, err := m.pop(f)
		if err != nil {
			return m.fail(err)
		}
		a, err := m.pop(f)
		if err != nil {
			return m.fail(err)
		}
		var r int32
		switch op {
		case OpIADD:
			r = a + b
		case OpISUB:
			r = a - b
		case OpIMUL:
			r = a * b
		case OpIDIV:
			if b == 0 {
				return m.fail(ErrDivideByZero)
			}
			r = a / b
		case OpILT:
			r = boolVal(a < b)
		case OpILE:
			r = boolVal(a <= b)
		case OpIGT:
			r = boolVal(a > b)
		case OpIGE:
			r = boolVal(a >= b)
		case OpIEQ:
			r = boolVal(a == b)
		case OpINE:
			r = boolVal(a != b)
		}
		if err := m.push(f, r); err != nil {
			return m.fail(err)
		}

	case OpICONST0, OpICONST1, OpICONST45, OpICONST90:
		var v int32
		switch op {
		case OpICONST1:
			v = 1
		case OpICONST45:
			v = 45
		case OpICONST90:
			v = 90
		}
		if err := m.push(f, v); err != nil {
			return m.fail(err)
		}

	case OpICONST:
		if err := m.push(f, operand); err != nil {
			return m.fail(err)
		}

	case OpILOAD0, OpILOAD1, OpILOAD2, OpILOAD:
		slot := int(op - OpILOAD0)
		if op == OpILOAD {
			slot = int(operand)
		}
		if slot < 0 || slot >= len(f.locals) {
			return m.fail(fmt.Errorf("%w: %d in function %d", ErrInvalidLocalIndex, slot, f.fn.ID))
		}
		if err := m.push(f, f.locals[slot]); err != nil {
			return m.fail(err)
		}

	case OpISTORE0, OpISTORE1, OpISTORE2, OpISTORE:
		slot := int(op - OpISTORE0)
		if op == OpISTORE {
			slot = int(operand)
		}
		if slot < 0 || slot >= len(f.locals) {
			return m.fail(fmt.Errorf("%w: %d in function %d", ErrInvalidLocalIndex, slot, f.fn.ID))
		}
		v, err := m.pop(f)
		if err != nil {
			return m.fail(err)
		}
		f.locals[slot] = v

	case OpGLOAD0, OpGLOAD1, OpGLOAD2, OpGLOAD:
		slot := int(op - OpGLOAD0)
		if op == OpGLOAD {
			slot = int(operand)
		}
		if slot < 0 || slot >= len(m.globals) {
			return m.fail(fmt.Errorf("%w: %d", ErrInvalidGlobalIndex, slot))
		}
		if err := m.push(f, m.globals[slot]); err != nil {
			return m.fail(err)
		}

	case OpGSTORE0, OpGSTORE1, OpGSTORE2, OpGSTORE:
		slot := int(op - OpGSTORE0)
		if op == OpGSTORE {
			slot = int(operand)
		}
		if slot < 0 || slot >= len(m.globals) {
			return m.fail(fmt.Errorf("%w: %d", ErrInvalidGlobalIndex, slot))
		}
		v, err := m.pop(f)
		if err != nil {
			return m.fail(err)
		}
		m.globals[slot] = v

	case OpCALL:
		id := int(operand)
		if id < 0 || id >= len(m.prog.Functions) {
			return m.fail(fmt.Errorf("%w: %d", ErrInvalidFunctionID, id))
		}
		callee := m.prog.Functions[id]
		nf := newFrame(callee)
		// Arguments were pushed left to right; pop them into the callee's
		// first locals in reverse.
		for i := callee.ArgCount - 1; i >= 0; i-- {
			v, err := m.pop(f)
			if err != nil {
				return m.fail(err)
			}
			nf.locals[i] = v
		}
		f.idx += n // resume after the CALL on return
		m.frames = append(m.frames, nf)
		return StepContinue

	case OpRET:
		if len(m.frames) == 1 {
			return m.fail(ErrIllegalReturnFromEntry)
		}
		m.frames = m.frames[:len(m.frames)-1]
		return StepContinue

	case OpSTOP:
		m.driver.StopMotors()
		m.teardown()
		m.state = StateIdle
		return StepStopped

	case OpBR:
		if int(operand) < 0 || int(operand) > len(code) {
			return m.fail(fmt.Errorf("%w: %d in function %d", ErrBranchOutOfBounds, operand, f.fn.ID))
		}
		f.idx = int(operand)
		return StepContinue

	case OpBRT, OpBRF:
		v, err := m.pop(f)
		if err != nil {
			return m.fail(err)
		}
		taken := (v != 0) == (op == OpBRT)
		if taken {
			if int(operand) < 0 || int(operand) > len(code) {
				return m.fail(fmt.Errorf("%w: %d in function %d", ErrBranchOutOfBounds, operand, f.fn.ID))
			}
			f.idx = int(operand)
			return StepContinue
		}

	default:
		return m.fail(fmt.Errorf("%w: %d", ErrUnknownOpcode, op))
	}

	f.idx += n
	return StepContinue
}

// beginDrive advances the program counter past the movement instruction,
// marks it deferred and hands the step counts to the motor driver. Both
// wheels share a tick budget equal to the larger step magnitude.
func (m *Machine) beginDrive(f *frame, instrLen int, left, right int32) StepOutcome {
	f.idx += instrLen
	ticks := left
	if ticks < 0 {
		ticks = -ticks
	}
	if r := right; r < 0 && -r > ticks {
		ticks = -r
	} else if r > ticks {
		ticks = r
	}
	m.beginMotion()
	m.driver.Drive(clampI16(left), clampI16(right), clampU16(ticks), m.completionFunc())
	return StepPending
}

func (m *Machine) beginMotion() {
	m.inFlight = true
	m.motioned++
}

// completionFunc builds the one-shot callback for the current hand-off.
// The callback carries a generation token so completions that arrive after a
// stop, fault or reload are ignored by CompleteMotion.
func (m *Machine) completionFunc() motion.Callback {
	gen := m.motioned
	return func() {
		if m.notify != nil {
			m.notify(gen)
		}
	}
}

func (m *Machine) push(f *frame, v int32) error {
	if f.sp >= len(f.stack) {
		return fmt.Errorf("%w: function %d", ErrStackOverflow, f.fn.ID)
	}
	f.stack[f.sp] = v
	f.sp++
	return nil
}

func (m *Machine) pop(f *frame) (int32, error) {
	if f.sp == 0 {
		return 0, fmt.Errorf("%w: function %d", ErrStackUnderflow, f.fn.ID)
	}
	f.sp--
	return f.stack[f.sp], nil
}

func boolVal(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func scaleSteps(units, factor, per int32) int32 {
	return int32(int64(units) * int64(factor) / int64(per))
}

func clampI16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func clampU16(v int32) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}
