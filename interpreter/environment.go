package interpreter

import (
	"sort"

	"github.com/chazu/lox/syntax"
	"github.com/chazu/lox/value"
)

// Environment is a stack of scopes. Index 0 is the global scope and lives as
// long as the Environment; each block pushes a scope on entry and pops it on
// every exit path.
type Environment struct {
	scopes []map[string]value.Value
}

// Binding is one name/value pair, as returned by Globals.
type Binding struct {
	Name  string
	Value value.Value
}

// NewEnvironment returns an environment holding only an empty global scope.
func NewEnvironment() *Environment {
	return &Environment{scopes: []map[string]value.Value{{}}}
}

// Define binds name in the innermost scope. Redefinition replaces.
func (e *Environment) Define(name string, v value.Value) {
	e.scopes[len(e.scopes)-1][name] = v
}

// Get looks name up from the innermost scope outwards.
func (e *Environment) Get(name syntax.Token) (value.Value, error) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if v, ok := e.scopes[i][name.Lexeme]; ok {
			return v, nil
		}
	}
	return value.Nil, undefined(name)
}

// Assign updates the innermost scope that already binds name. It never
// creates a binding.
func (e *Environment) Assign(name syntax.Token, v value.Value) error {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if _, ok := e.scopes[i][name.Lexeme]; ok {
			e.scopes[i][name.Lexeme] = v
			return nil
		}
	}
	return undefined(name)
}

// Depth returns the number of scopes, 1 when only globals are active.
func (e *Environment) Depth() int {
	return len(e.scopes)
}

func (e *Environment) push() {
	e.scopes = append(e.scopes, map[string]value.Value{})
}

func (e *Environment) pop() {
	if len(e.scopes) == 1 {
		panic("interpreter: pop of global scope")
	}
	e.scopes[len(e.scopes)-1] = nil
	e.scopes = e.scopes[:len(e.scopes)-1]
}

// unwind drops every scope above depth.
func (e *Environment) unwind(depth int) {
	for len(e.scopes) > depth {
		e.pop()
	}
}

// Globals returns the global bindings sorted by name.
func (e *Environment) Globals() []Binding {
	out := make([]Binding, 0, len(e.scopes[0]))
	for name, v := range e.scopes[0] {
		out = append(out, Binding{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset drops every scope and every global binding.
func (e *Environment) Reset() {
	e.scopes = []map[string]value.Value{{}}
}

func undefined(name syntax.Token) *RuntimeError {
	return &RuntimeError{Token: name, Message: "Undefined variable '" + name.Lexeme + "'."}
}
