package vm

import (
	"errors"
	"fmt"
)

// Resource limits for a loaded program. A program exceeding any of these is
// rejected at load time, before any state is touched.
const (
	MaxVarCount  = 32   // globals per program, arguments or locals per function
	MaxStackSize = 32   // operand stack entries per function
	MaxFuncCount = 64   // functions per program, including the entry function
	MaxFuncLen   = 2048 // byte-code bytes per function
)

var (
	ErrNilProgram    = errors.New("nil program")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrEmptyFunction = errors.New("empty function")
)

// Function is one compiled function: its byte-code plus the frame geometry
// the compiler declared for it. Code is treated as immutable after load.
type Function struct {
	ID         int
	ArgCount   int
	LocalCount int
	StackSize  int
	Code       []byte
}

// Program is the compiled artifact the VM executes. Functions[0] is the
// implicit entry function; slice order defines function ids.
type Program struct {
	GlobalCount int
	Functions   []*Function
}

// Validate performs the load-time checks from the resource limits above.
func (p *Program) Validate() error {
	if p == nil {
		return ErrNilProgram
	}
	if p.GlobalCount < 0 || p.GlobalCount > MaxVarCount {
		return fmt.Errorf("%w: %d global variables", ErrLimitExceeded, p.GlobalCount)
	}
	if len(p.Functions) == 0 {
		return fmt.Errorf("%w: program has no functions", ErrEmptyFunction)
	}
	if len(p.Functions) > MaxFuncCount {
		return fmt.Errorf("%w: %d functions", ErrLimitExceeded, len(p.Functions))
	}
	for i, fn := range p.Functions {
		if fn == nil {
			return fmt.Errorf("%w: function %d is missing", ErrEmptyFunction, i)
		}
		if fn.ArgCount < 0 || fn.ArgCount > MaxVarCount {
			return fmt.Errorf("%w: function %d has %d arguments", ErrLimitExceeded, i, fn.ArgCount)
		}
		if fn.LocalCount < 0 || fn.LocalCount > MaxVarCount {
			return fmt.Errorf("%w: function %d has %d locals", ErrLimitExceeded, i, fn.LocalCount)
		}
		if fn.StackSize < 0 || fn.StackSize > MaxStackSize {
			return fmt.Errorf("%w: function %d declares stack size %d", ErrLimitExceeded, i, fn.StackSize)
		}
		if len(fn.Code) > MaxFuncLen {
			return fmt.Errorf("%w: function %d is %d bytes", ErrLimitExceeded, i, len(fn.Code))
		}
		if len(fn.Code) == 0 {
			return fmt.Errorf("%w: function %d", ErrEmptyFunction, i)
		}
	}
	return nil
}

// Clone deep-copies the program so the caller may free or reuse its copy.
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	out := &Program{
		GlobalCount: p.GlobalCount,
		Functions:   make([]*Function, len(p.Functions)),
	}
	for i, fn := range p.Functions {
		code := make([]byte, len(fn.Code))
		copy(code, fn.Code)
		out.Functions[i] = &Function{
			ID:         i,
			ArgCount:   fn.ArgCount,
			LocalCount: fn.LocalCount,
			StackSize:  fn.StackSize,
			Code:       code,
		}
	}
	return out
}
