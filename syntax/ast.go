package syntax

import "github.com/chazu/lox/value"

// ---------------------------------------------------------------------------
// AST: two closed node families, expressions and statements
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes. The set of implementations is
// closed; consumers switch over the concrete types.
type Expr interface {
	expr() // marker method
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	stmt() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Literal is a constant value.
type Literal struct {
	Value value.Value
}

// Grouping is a parenthesized expression.
type Grouping struct {
	Inner Expr
}

// Unary is a prefix operator application (! or -).
type Unary struct {
	Operator Token
	Operand  Expr
}

// Binary is an infix arithmetic, comparison, equality or comma operation.
type Binary struct {
	Left     Expr
	Operator Token
	Right    Expr
}

// Logical is a short-circuiting and/or.
type Logical struct {
	Left     Expr
	Operator Token
	Right    Expr
}

// Ternary is cond ? then : else.
type Ternary struct {
	Condition Expr
	Question  Token
	Then      Expr
	Colon     Token
	Else      Expr
}

// Variable is a reference to a named binding.
type Variable struct {
	Name Token
}

// Assign stores the value of Value into the binding Name.
type Assign struct {
	Name  Token
	Value Expr
}

func (*Literal) expr()  {}
func (*Grouping) expr() {}
func (*Unary) expr()    {}
func (*Binary) expr()   {}
func (*Logical) expr()  {}
func (*Ternary) expr()  {}
func (*Variable) expr() {}
func (*Assign) expr()   {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// ExprStmt evaluates an expression and discards the result.
type ExprStmt struct {
	Expr Expr
}

// PrintStmt evaluates an expression and prints its display form.
type PrintStmt struct {
	Expr Expr
}

// VarStmt declares a variable in the current scope. Initializer may be nil.
type VarStmt struct {
	Name        Token
	Initializer Expr
}

// BlockStmt runs its statements in a fresh nested scope.
type BlockStmt struct {
	Statements []Stmt
}

// IfStmt is a conditional. Else may be nil.
type IfStmt struct {
	Condition Expr
	Then      Stmt
	Else      Stmt
}

// WhileStmt loops while Condition is truthy.
type WhileStmt struct {
	Condition Expr
	Body      Stmt
}

func (*ExprStmt) stmt()  {}
func (*PrintStmt) stmt() {}
func (*VarStmt) stmt()   {}
func (*BlockStmt) stmt() {}
func (*IfStmt) stmt()    {}
func (*WhileStmt) stmt() {}
