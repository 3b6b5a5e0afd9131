// Package wire defines the JSON payloads exchanged with tooling and
// listeners: compiled programs on the way in, execution status notifications
// on the way out.
package wire

import (
	"encoding/json"
	"fmt"

	"microturtle/pkg/vm"
)

// programEnvelope is the top-level upload payload. A function's id is its
// position in the array, so the entry function is always first.
type programEnvelope struct {
	Program programBody `json:"program"`
}

type programBody struct {
	Globals   int            `json:"globals"`
	Functions []functionBody `json:"functions"`
}

// functionBody carries byte-code as a number array. A []byte field would
// serialise as base64, which the receiving side does not speak.
type functionBody struct {
	Args   int   `json:"args"`
	Locals int   `json:"locals"`
	Stack  int   `json:"stack"`
	Codes  []int `json:"codes"`
}

// EncodeProgram renders a program as an upload payload.
func EncodeProgram(p *vm.Program) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	body := programBody{
		Globals:   p.GlobalCount,
		Functions: make([]functionBody, len(p.Functions)),
	}
	for i, fn := range p.Functions {
		codes := make([]int, len(fn.Code))
		for j, b := range fn.Code {
			codes[j] = int(b)
		}
		body.Functions[i] = functionBody{
			Args:   fn.ArgCount,
			Locals: fn.LocalCount,
			Stack:  fn.StackSize,
			Codes:  codes,
		}
	}
	return json.Marshal(programEnvelope{Program: body})
}

// DecodeProgram parses an upload payload back into an executable program.
// The result is validated against the machine limits before it is returned.
func DecodeProgram(data []byte) (*vm.Program, error) {
	var env programEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	p := &vm.Program{
		GlobalCount: env.Program.Globals,
		Functions:   make([]*vm.Function, len(env.Program.Functions)),
	}
	for i, fn := range env.Program.Functions {
		code := make([]byte, len(fn.Codes))
		for j, c := range fn.Codes {
			if c < 0 || c > 255 {
				return nil, fmt.Errorf("decode program: function %d code %d out of byte range: %d", i, j, c)
			}
			code[j] = byte(c)
		}
		p.Functions[i] = &vm.Function{
			ID:         i,
			ArgCount:   fn.Args,
			LocalCount: fn.Locals,
			StackSize:  fn.Stack,
			Code:       code,
		}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	return p, nil
}
