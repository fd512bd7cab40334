// Package interpreter evaluates syntax trees directly against a scope stack.
package interpreter

import (
	"errors"
	"fmt"
	"io"

	"github.com/chazu/lox/diag"
	"github.com/chazu/lox/syntax"
	"github.com/chazu/lox/value"
)

// Interpreter executes statements against one Environment. The Environment
// persists across Interpret calls, so an interactive session can build up
// state one line at a time. An Interpreter is not safe for concurrent use.
type Interpreter struct {
	out  io.Writer
	env  *Environment
	sink diag.Sink
}

// New creates an interpreter that prints to out. A nil env starts with fresh
// globals; a nil sink discards runtime diagnostics.
func New(out io.Writer, env *Environment, sink diag.Sink) *Interpreter {
	if env == nil {
		env = NewEnvironment()
	}
	return &Interpreter{out: out, env: env, sink: sink}
}

// Environment returns the environment the interpreter runs against.
func (in *Interpreter) Environment() *Environment {
	return in.env
}

// SetOutput redirects print output.
func (in *Interpreter) SetOutput(w io.Writer) {
	in.out = w
}

// Interpret runs stmts in order and stops at the first runtime error, which is
// reported to the sink and returned. Side effects that happened before the
// failure are kept.
func (in *Interpreter) Interpret(stmts []syntax.Stmt) error {
	depth := in.env.Depth()
	for _, s := range stmts {
		if err := in.execute(s); err != nil {
			in.env.unwind(depth)
			return in.report(err)
		}
	}
	return nil
}

// Evaluate computes the value of a single expression.
func (in *Interpreter) Evaluate(expr syntax.Expr) (value.Value, error) {
	v, err := in.evaluate(expr)
	if err != nil {
		return value.Nil, in.report(err)
	}
	return v, nil
}

func (in *Interpreter) report(err error) error {
	var rerr *RuntimeError
	if errors.As(err, &rerr) && in.sink != nil {
		in.sink.RuntimeError(rerr.Line(), rerr.Message)
	}
	return err
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (in *Interpreter) execute(stmt syntax.Stmt) error {
	switch s := stmt.(type) {
	case *syntax.ExprStmt:
		_, err := in.evaluate(s.Expr)
		return err

	case *syntax.PrintStmt:
		v, err := in.evaluate(s.Expr)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(in.out, v.String()); err != nil {
			return fmt.Errorf("interpreter: print: %w", err)
		}
		return nil

	case *syntax.VarStmt:
		v := value.Nil
		if s.Initializer != nil {
			var err error
			if v, err = in.evaluate(s.Initializer); err != nil {
				return err
			}
		}
		in.env.Define(s.Name.Lexeme, v)
		return nil

	case *syntax.BlockStmt:
		return in.executeBlock(s.Statements)

	case *syntax.IfStmt:
		cond, err := in.evaluate(s.Condition)
		if err != nil {
			return err
		}
		if cond.Truthy() {
			return in.execute(s.Then)
		}
		if s.Else != nil {
			return in.execute(s.Else)
		}
		return nil

	case *syntax.WhileStmt:
		for {
			cond, err := in.evaluate(s.Condition)
			if err != nil {
				return err
			}
			if !cond.Truthy() {
				return nil
			}
			if err := in.execute(s.Body); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("interpreter: unknown statement %T", stmt)
}

// executeBlock runs stmts in a new innermost scope, which is dropped on every
// return path.
func (in *Interpreter) executeBlock(stmts []syntax.Stmt) error {
	depth := in.env.Depth()
	in.env.push()
	defer in.env.unwind(depth)

	for _, s := range stmts {
		if err := in.execute(s); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (in *Interpreter) evaluate(expr syntax.Expr) (value.Value, error) {
	switch e := expr.(type) {
	case *syntax.Literal:
		return e.Value, nil

	case *syntax.Grouping:
		return in.evaluate(e.Inner)

	case *syntax.Variable:
		return in.env.Get(e.Name)

	case *syntax.Assign:
		v, err := in.evaluate(e.Value)
		if err != nil {
			return value.Nil, err
		}
		if err := in.env.Assign(e.Name, v); err != nil {
			return value.Nil, err
		}
		return v, nil

	case *syntax.Unary:
		return in.unary(e)

	case *syntax.Binary:
		return in.binary(e)

	case *syntax.Logical:
		left, err := in.evaluate(e.Left)
		if err != nil {
			return value.Nil, err
		}
		if e.Operator.Type == syntax.TokenOr {
			if left.Truthy() {
				return left, nil
			}
		} else if !left.Truthy() {
			return left, nil
		}
		return in.evaluate(e.Right)

	case *syntax.Ternary:
		cond, err := in.evaluate(e.Condition)
		if err != nil {
			return value.Nil, err
		}
		if cond.Truthy() {
			return in.evaluate(e.Then)
		}
		return in.evaluate(e.Else)
	}
	return value.Nil, fmt.Errorf("interpreter: unknown expression %T", expr)
}

func (in *Interpreter) unary(e *syntax.Unary) (value.Value, error) {
	operand, err := in.evaluate(e.Operand)
	if err != nil {
		return value.Nil, err
	}

	switch e.Operator.Type {
	case syntax.TokenBang:
		return value.Bool(!operand.Truthy()), nil
	case syntax.TokenMinus:
		if !operand.IsNumber() {
			return value.Nil, &RuntimeError{Token: e.Operator, Message: "Operand must be a number."}
		}
		return value.Number(-operand.AsNumber()), nil
	}
	return value.Nil, fmt.Errorf("interpreter: unknown unary operator %s", e.Operator.Type)
}

func (in *Interpreter) binary(e *syntax.Binary) (value.Value, error) {
	left, err := in.evaluate(e.Left)
	if err != nil {
		return value.Nil, err
	}
	right, err := in.evaluate(e.Right)
	if err != nil {
		return value.Nil, err
	}

	op := e.Operator
	switch op.Type {
	case syntax.TokenComma:
		return right, nil

	case syntax.TokenEqualEqual:
		return value.Bool(left.Equal(right)), nil
	case syntax.TokenBangEqual:
		return value.Bool(!left.Equal(right)), nil

	case syntax.TokenPlus:
		switch {
		case left.IsNumber() && right.IsNumber():
			return value.Number(left.AsNumber() + right.AsNumber()), nil
		case left.IsString() && right.IsString():
			return value.String(left.AsString() + right.AsString()), nil
		}
		return value.Nil, &RuntimeError{Token: op, Message: "Operands must be two numbers or two strings."}
	}

	if !left.IsNumber() || !right.IsNumber() {
		return value.Nil, &RuntimeError{Token: op, Message: "Operands must be numbers."}
	}
	a, b := left.AsNumber(), right.AsNumber()

	switch op.Type {
	case syntax.TokenMinus:
		return value.Number(a - b), nil
	case syntax.TokenStar:
		return value.Number(a * b), nil
	case syntax.TokenSlash:
		return value.Number(a / b), nil
	case syntax.TokenGreater:
		return value.Bool(a > b), nil
	case syntax.TokenGreaterEqual:
		return value.Bool(a >= b), nil
	case syntax.TokenLess:
		return value.Bool(a < b), nil
	case syntax.TokenLessEqual:
		return value.Bool(a <= b), nil
	}
	return value.Nil, fmt.Errorf("interpreter: unknown binary operator %s", op.Type)
}
