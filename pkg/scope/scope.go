// Package scope tracks the names visible while parsing: one stack of frames for
// variables and one for functions.
package scope

import (
	"slices"

	"github.com/truffle-lang/truffle/pkg/ast"
)

// Decl is anything that can be registered in a frame.
type Decl interface{ Key() string }

type Variable struct {
	Name string
	Type ast.DataType
}

func (v Variable) Key() string { return v.Name }

type Function struct {
	Name       string
	ParamTypes []ast.DataType
	ReturnType ast.DataType
}

func (f Function) Key() string { return f.Name }

// Matches reports whether f has exactly the given signature.
func (f Function) Matches(params []ast.DataType, ret ast.DataType) bool {
	return f.ReturnType == ret && slices.Equal(f.ParamTypes, params)
}

// frame keeps declarations in insertion order. Redeclaring a name in the same
// frame replaces the earlier declaration.
type frame[T Decl] struct {
	order []string
	decls map[string]T
}

type Stack[T Decl] struct {
	frames []*frame[T]
	floor  int // frames below floor are hidden from Get
}

func (s *Stack[T]) PushStack() {
	s.frames = append(s.frames, &frame[T]{decls: make(map[string]T)})
}

// PopStack drops the innermost frame. Popping an empty stack is a no-op.
func (s *Stack[T]) PopStack() {
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// PushBack registers d in the innermost frame, creating one if needed.
func (s *Stack[T]) PushBack(d T) {
	if len(s.frames) == 0 {
		s.PushStack()
	}
	f := s.frames[len(s.frames)-1]
	if _, ok := f.decls[d.Key()]; !ok {
		f.order = append(f.order, d.Key())
	}
	f.decls[d.Key()] = d
}

// Get looks name up from the innermost frame outwards.
func (s *Stack[T]) Get(name string) (T, bool) {
	for i := len(s.frames) - 1; i >= s.floor; i-- {
		if d, ok := s.frames[i].decls[name]; ok {
			return d, true
		}
	}
	var zero T
	return zero, false
}

func (s *Stack[T]) Contains(name string) bool {
	_, ok := s.Get(name)
	return ok
}

func (s *Stack[T]) Depth() int { return len(s.frames) }

// Frame returns the declarations of frame i (0 is outermost) in insertion order.
func (s *Stack[T]) Frame(i int) []T {
	if i < 0 || i >= len(s.frames) {
		return nil
	}
	f := s.frames[i]
	res := make([]T, 0, len(f.order))
	for _, name := range f.order {
		res = append(res, f.decls[name])
	}
	return res
}

type FunctionStack struct{ Stack[Function] }

// ContainsSignature reports whether the innermost visible function called
// name has exactly the given signature.
func (s *FunctionStack) ContainsSignature(name string, params []ast.DataType, ret ast.DataType) bool {
	f, ok := s.Get(name)
	return ok && f.Matches(params, ret)
}

// Tracker pairs the variable and function stacks so both always have the
// same depth.
type Tracker struct {
	Vars  Stack[Variable]
	Funcs FunctionStack
}

func NewTracker() *Tracker { return &Tracker{} }

// Enter pushes a frame on both stacks and returns the function that pops
// them again. Callers defer it so the frame goes away on every exit path:
//
//	defer t.Enter()()
func (t *Tracker) Enter() (leave func()) {
	t.Vars.PushStack()
	t.Funcs.PushStack()
	depth := t.Vars.Depth()
	return func() {
		for t.Vars.Depth() >= depth {
			t.Vars.PopStack()
		}
		for t.Funcs.Depth() >= depth {
			t.Funcs.PopStack()
		}
	}
}

// EnterFunc is Enter for a function body: variables of the enclosing frames
// stay hidden until the returned function is called. Functions remain visible.
func (t *Tracker) EnterFunc() (leave func()) {
	leaveFrame := t.Enter()
	floor := t.Vars.floor
	t.Vars.floor = t.Vars.Depth() - 1
	return func() {
		t.Vars.floor = floor
		leaveFrame()
	}
}

func (t *Tracker) Depth() int { return t.Vars.Depth() }
