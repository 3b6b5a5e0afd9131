package asm

import (
	"reflect"
	"testing"

	"microturtle/pkg/vm"
)

func TestNormalizeLabel(t *testing.T) {
	if got := normalizeLabel("  loop_1 "); got != "LOOP_1" {
		t.Errorf("normalizeLabel = %q; want %q", got, "LOOP_1")
	}
}

func TestAssembleRawMove(t *testing.T) {
	source := `
.globals 0
.def <main> 0 0 2
	ICONST 100
	ICONST 100
	FD_RAW
`
	prog, errs := Assemble(source)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []byte{
		vm.OpICONST, 0, 0, 0, 100,
		vm.OpICONST, 0, 0, 0, 100,
		vm.OpFDRaw,
	}
	if !reflect.DeepEqual(prog.Functions[0].Code, want) {
		t.Errorf("code = %v; want %v", prog.Functions[0].Code, want)
	}
	if prog.GlobalCount != 0 {
		t.Errorf("GlobalCount = %d; want 0", prog.GlobalCount)
	}
}

func TestAssembleFunctionIDs(t *testing.T) {
	// The entry procedure gets id 0 no matter where its .def appears.
	source := `
.globals 1
.def square 1 0 2
	ILOAD_0
	FD
	RET

.def <main> 0 0 1
	ICONST 50
	CALL square
	STOP
`
	prog, errs := Assemble(source)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(prog.Functions) != 2 {
		t.Fatalf("function count = %d; want 2", len(prog.Functions))
	}
	if prog.Functions[0].ID != 0 || prog.Functions[1].ID != 1 {
		t.Errorf("ids = %d, %d; want 0, 1", prog.Functions[0].ID, prog.Functions[1].ID)
	}
	entry := prog.Functions[0]
	// CALL square must carry the callee's id, 1.
	want := []byte{
		vm.OpICONST, 0, 0, 0, 50,
		vm.OpCALL, 0, 0, 0, 1,
		vm.OpSTOP,
	}
	if !reflect.DeepEqual(entry.Code, want) {
		t.Errorf("entry code = %v; want %v", entry.Code, want)
	}
	if prog.Functions[1].ArgCount != 1 || prog.Functions[1].StackSize != 2 {
		t.Errorf("square counts = %d args, %d stack; want 1, 2",
			prog.Functions[1].ArgCount, prog.Functions[1].StackSize)
	}
}

func TestAssembleForwardBranch(t *testing.T) {
	source := `
.globals 0
.def <main> 0 0 1
	ICONST_1
	BRT done
	ICONST_0
done:
	STOP
`
	prog, errs := Assemble(source)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	code := prog.Functions[0].Code
	// Instruction layout: ICONST_1 at 0, BRT at 1, ICONST_0 at 6, STOP at 7.
	want := []byte{
		vm.OpICONST1,
		vm.OpBRT, 0, 0, 0, 7,
		vm.OpICONST0,
		vm.OpSTOP,
	}
	if !reflect.DeepEqual(code, want) {
		t.Errorf("code = %v; want %v", code, want)
	}
}

func TestAssembleBackwardBranch(t *testing.T) {
	source := `
.globals 0
.def <main> 0 0 1
start:
	ICONST_1
	FD
	BR start
`
	prog, errs := Assemble(source)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	code := prog.Functions[0].Code
	want := []byte{
		vm.OpICONST1,
		vm.OpFD,
		vm.OpBR, 0, 0, 0, 0,
	}
	if !reflect.DeepEqual(code, want) {
		t.Errorf("code = %v; want %v", code, want)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		message string
	}{
		{
			"unknown label",
			".def <main> 0 0 1\n\tBR nowhere\n",
			`unknown label "NOWHERE"`,
		},
		{
			"unknown function",
			".def <main> 0 0 1\n\tCALL missing\n",
			`unknown function "missing"`,
		},
		{
			"unknown instruction",
			".def <main> 0 0 1\n\tFLY 3\n",
			"unknown instruction FLY",
		},
		{
			"duplicate label",
			".def <main> 0 0 1\nhere:\n\tSTOP\nhere:\n\tSTOP\n",
			`duplicate label "here"`,
		},
		{
			"duplicate function",
			".def f 0 0 1\n\tRET\n.def f 0 0 1\n\tRET\n",
			`function "f" already defined`,
		},
		{
			"instruction outside function",
			"\tSTOP\n",
			"instruction outside a function: STOP",
		},
		{
			"missing entry",
			".def f 0 0 1\n\tRET\n",
			"no entry procedure defined",
		},
		{
			"empty source",
			"",
			"no functions defined",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prog, errs := Assemble(tc.source)
			if prog != nil {
				t.Fatal("expected no program")
			}
			if len(errs) == 0 {
				t.Fatal("expected errors")
			}
			found := false
			for _, e := range errs {
				if e.Message == tc.message {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not include %q", errs, tc.message)
			}
		})
	}
}

func TestAssembleReportsEveryUnresolvedReference(t *testing.T) {
	source := `
.def <main> 0 0 1
	BR one
	BR two
	CALL three
`
	_, errs := Assemble(source)
	if len(errs) != 3 {
		t.Fatalf("error count = %d; want 3: %v", len(errs), errs)
	}
}

func TestAssembleCaseInsensitiveMnemonics(t *testing.T) {
	source := `
.globals 0
.def <main> 0 0 1
	iconst_90
	rt
	stop
`
	prog, errs := Assemble(source)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []byte{vm.OpICONST90, vm.OpRT, vm.OpSTOP}
	if !reflect.DeepEqual(prog.Functions[0].Code, want) {
		t.Errorf("code = %v; want %v", prog.Functions[0].Code, want)
	}
}
