package utils

import (
	"path/filepath"
	"testing"
)

func TestResolvePath(t *testing.T) {
	full, dir, err := ResolvePath("sub/../prog.tasm")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if !filepath.IsAbs(full) {
		t.Errorf("full = %q; want an absolute path", full)
	}
	if filepath.Base(full) != "prog.tasm" {
		t.Errorf("full = %q; the ../ was not cleaned", full)
	}
	if dir != filepath.Dir(full) {
		t.Errorf("dir = %q; want %q", dir, filepath.Dir(full))
	}
}
