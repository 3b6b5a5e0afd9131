package compiler

import "testing"

func TestDefineVariableAssignsDenseSlots(t *testing.T) {
	sc := NewScope(nil)
	for i, name := range []string{"a", "b", "c"} {
		slot, err := sc.DefineVariable(name)
		if err != nil {
			t.Fatalf("DefineVariable(%q): %v", name, err)
		}
		if slot != i {
			t.Errorf("slot for %q = %d; want %d", name, slot, i)
		}
	}
	if sc.VarCount() != 3 {
		t.Errorf("VarCount = %d; want 3", sc.VarCount())
	}
}

func TestDefineVariableRejectsDuplicates(t *testing.T) {
	sc := NewScope(nil)
	sc.DefineVariable("x")
	if _, err := sc.DefineVariable("x"); err == nil {
		t.Fatal("redefinition accepted")
	}
}

func TestResolveWalksToParent(t *testing.T) {
	global := NewScope(nil)
	global.DefineVariable("g")
	inner := NewScope(global)
	inner.DefineVariable("l")

	slot, owner, ok := inner.ResolveVariable("g")
	if !ok || owner != global || slot != 0 {
		t.Errorf("ResolveVariable(g) = %d, %p, %v", slot, owner, ok)
	}
	slot, owner, ok = inner.ResolveVariable("l")
	if !ok || owner != inner || slot != 0 {
		t.Errorf("ResolveVariable(l) = %d, %p, %v", slot, owner, ok)
	}
	if _, _, ok := inner.ResolveVariable("missing"); ok {
		t.Error("resolved a name that was never defined")
	}
}

func TestShadowingBindsInnermost(t *testing.T) {
	global := NewScope(nil)
	global.DefineVariable("x")
	inner := NewScope(global)
	inner.DefineVariable("x")

	_, owner, ok := inner.ResolveVariable("x")
	if !ok || owner != inner {
		t.Error("shadowed name did not bind to the inner scope")
	}
}

func TestTrackRecordsPeakDepth(t *testing.T) {
	sc := NewScope(nil)
	sc.Track(1, 0)
	sc.Track(1, 0)
	sc.Track(-1, 0)
	if sc.MaxDepth() != 2 {
		t.Errorf("MaxDepth = %d; want 2", sc.MaxDepth())
	}

	// A boost raises the peak without moving the running depth.
	sc.Track(0, 3)
	if sc.MaxDepth() != 4 {
		t.Errorf("MaxDepth after boost = %d; want 4", sc.MaxDepth())
	}
	sc.Track(1, 0)
	if sc.MaxDepth() != 4 {
		t.Errorf("MaxDepth = %d; the boost must not persist", sc.MaxDepth())
	}
}
