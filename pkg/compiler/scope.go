package compiler

import "fmt"

// ProcSym describes a defined procedure: its arity and the scope its body
// binds names in.
type ProcSym struct {
	Name       string
	ParamCount int
	Body       *Scope
}

// Scope is one lexical region. Variable slot indices follow definition
// order and are dense from 0; the global scope's slots become VM globals,
// a procedure scope's slots become frame locals (parameters first).
//
// Scopes also accumulate the operand-stack depth bookkeeping for the code
// that executes in them (see Track), which sizes the function's runtime
// frame.
type Scope struct {
	parent *Scope
	vars   map[string]int
	order  []string
	procs  map[string]*ProcSym

	depth    int
	maxDepth int
}

// NewScope creates a scope; a nil parent makes it the global scope.
func NewScope(parent *Scope) *Scope {
	return &Scope{
		parent: parent,
		vars:   make(map[string]int),
		procs:  make(map[string]*ProcSym),
	}
}

// IsGlobal reports whether this is the outermost scope.
func (s *Scope) IsGlobal() bool { return s.parent == nil }

// DefineVariable binds a new name to the next slot. Redefining a name from
// the same scope is an error; shadowing an outer scope is not.
func (s *Scope) DefineVariable(name string) (int, error) {
	if slot, ok := s.vars[name]; ok {
		return slot, fmt.Errorf("variable %q already defined", name)
	}
	slot := len(s.order)
	s.vars[name] = slot
	s.order = append(s.order, name)
	return slot, nil
}

// ResolveVariable searches this scope and then its parents. The returned
// owner identifies which scope holds the slot.
func (s *Scope) ResolveVariable(name string) (slot int, owner *Scope, ok bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if slot, ok := sc.vars[name]; ok {
			return slot, sc, true
		}
	}
	return 0, nil, false
}

// DefineProcedure registers a procedure in this scope.
func (s *Scope) DefineProcedure(name string, paramCount int, body *Scope) error {
	if _, ok := s.procs[name]; ok {
		return fmt.Errorf("procedure %q already defined", name)
	}
	s.procs[name] = &ProcSym{Name: name, ParamCount: paramCount, Body: body}
	return nil
}

// ResolveProcedure searches this scope and then its parents.
func (s *Scope) ResolveProcedure(name string) (*ProcSym, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if p, ok := sc.procs[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// VarCount is the number of slots this scope owns.
func (s *Scope) VarCount() int { return len(s.order) }

// Track records operand-stack traffic: net is the change that persists after
// the construct, boost a temporary peak beyond it (loop bookkeeping, the
// intermediate constant of unary negation). The running maximum becomes the
// function's declared operand-stack size.
func (s *Scope) Track(net, boost int) {
	s.depth += net
	if s.depth < 0 {
		s.depth = 0
	}
	if s.depth > s.maxDepth {
		s.maxDepth = s.depth
	}
	if s.depth+boost > s.maxDepth {
		s.maxDepth = s.depth + boost
	}
}

// MaxDepth is the worst-case operand-stack depth seen by Track.
func (s *Scope) MaxDepth() int { return s.maxDepth }
