package syntax

import (
	"errors"
	"fmt"

	"github.com/chazu/lox/diag"
	"github.com/chazu/lox/value"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent over a token slice
// ---------------------------------------------------------------------------

// SyntaxError is a parse failure at a specific token.
type SyntaxError struct {
	Token   Token
	Message string
}

// Where describes the error location the way diagnostics print it.
func (e *SyntaxError) Where() string {
	if e.Token.Type == TokenEOF {
		return " at end"
	}
	return fmt.Sprintf(" at '%s'", e.Token.Lexeme)
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("[line %d] Error%s: %s", e.Token.Line, e.Where(), e.Message)
}

// Parser builds statements from tokens. Syntax errors are reported to the
// sink as they are found; the parser then resynchronizes at the next
// statement boundary and keeps going.
type Parser struct {
	tokens  []Token
	current int
	sink    diag.Sink
	errors  []*SyntaxError
}

// NewParser creates a parser over tokens, which must end with EOF.
func NewParser(tokens []Token, sink diag.Sink) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokenEOF {
		line := 1
		if len(tokens) > 0 {
			line = tokens[len(tokens)-1].Line
		}
		tokens = append(tokens, Token{Type: TokenEOF, Line: line})
	}
	return &Parser{tokens: tokens, sink: sink}
}

// Errors returns every syntax error found so far.
func (p *Parser) Errors() []*SyntaxError {
	return p.errors
}

// Parse parses a whole program. It returns every statement that parsed
// successfully, even when errors were reported.
func (p *Parser) Parse() []Stmt {
	var stmts []Stmt
	for !p.isAtEnd() {
		if stmt := p.declarationOrRecover(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// ParseExpression parses a single expression that must span all the input.
func (p *Parser) ParseExpression() (Expr, error) {
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if !p.isAtEnd() {
		return nil, p.error(p.peek(), "Expect end of expression.")
	}
	return expr, nil
}

// ---------------------------------------------------------------------------
// Declarations and statements
// ---------------------------------------------------------------------------

// declarationOrRecover parses one declaration. On error it synchronizes and
// returns nil.
func (p *Parser) declarationOrRecover() Stmt {
	stmt, err := p.declaration()
	if err != nil {
		p.synchronize()
		return nil
	}
	return stmt
}

func (p *Parser) declaration() (Stmt, error) {
	if p.match(TokenVar) {
		return p.varDeclaration()
	}
	return p.statement()
}

func (p *Parser) varDeclaration() (Stmt, error) {
	name, err := p.expect(TokenIdentifier, "Expect variable name.")
	if err != nil {
		return nil, err
	}

	var initializer Expr
	if p.match(TokenEqual) {
		if initializer, err = p.expression(); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(TokenSemicolon, "Expect ';' after variable declaration."); err != nil {
		return nil, err
	}
	return &VarStmt{Name: name, Initializer: initializer}, nil
}

func (p *Parser) statement() (Stmt, error) {
	switch {
	case p.match(TokenPrint):
		return p.printStatement()
	case p.match(TokenIf):
		return p.ifStatement()
	case p.match(TokenWhile):
		return p.whileStatement()
	case p.match(TokenFor):
		return p.forStatement()
	case p.match(TokenLeftBrace):
		stmts, err := p.block()
		if err != nil {
			return nil, err
		}
		return &BlockStmt{Statements: stmts}, nil
	}
	return p.expressionStatement()
}

func (p *Parser) printStatement() (Stmt, error) {
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenSemicolon, "Expect ';' after value."); err != nil {
		return nil, err
	}
	return &PrintStmt{Expr: expr}, nil
}

func (p *Parser) expressionStatement() (Stmt, error) {
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenSemicolon, "Expect ';' after expression."); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: expr}, nil
}

func (p *Parser) ifStatement() (Stmt, error) {
	if _, err := p.expect(TokenLeftParen, "Expect '(' after 'if'."); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRightParen, "Expect ')' after if condition."); err != nil {
		return nil, err
	}

	then, err := p.statement()
	if err != nil {
		return nil, err
	}

	var els Stmt
	if p.match(TokenElse) {
		if els, err = p.statement(); err != nil {
			return nil, err
		}
	}
	return &IfStmt{Condition: cond, Then: then, Else: els}, nil
}

func (p *Parser) whileStatement() (Stmt, error) {
	if _, err := p.expect(TokenLeftParen, "Expect '(' after 'while'."); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRightParen, "Expect ')' after condition."); err != nil {
		return nil, err
	}

	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Condition: cond, Body: body}, nil
}

// forStatement desugars
//
//	for (init; cond; incr) body
//
// into
//
//	{ init; while (cond) { body; incr; } }
//
// with a missing condition replaced by true.
func (p *Parser) forStatement() (Stmt, error) {
	if _, err := p.expect(TokenLeftParen, "Expect '(' after 'for'."); err != nil {
		return nil, err
	}

	var (
		init Stmt
		err  error
	)
	switch {
	case p.match(TokenSemicolon):
	case p.match(TokenVar):
		init, err = p.varDeclaration()
	default:
		init, err = p.expressionStatement()
	}
	if err != nil {
		return nil, err
	}

	var cond Expr
	if !p.check(TokenSemicolon) {
		if cond, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokenSemicolon, "Expect ';' after loop condition."); err != nil {
		return nil, err
	}

	var incr Expr
	if !p.check(TokenRightParen) {
		if incr, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokenRightParen, "Expect ')' after for clauses."); err != nil {
		return nil, err
	}

	body, err := p.statement()
	if err != nil {
		return nil, err
	}

	if incr != nil {
		body = &BlockStmt{Statements: []Stmt{body, &ExprStmt{Expr: incr}}}
	}
	if cond == nil {
		cond = &Literal{Value: value.True}
	}
	body = &WhileStmt{Condition: cond, Body: body}
	if init != nil {
		body = &BlockStmt{Statements: []Stmt{init, body}}
	}
	return body, nil
}

// block parses declarations up to the closing brace. Errors inside the block
// are recovered from locally so the block still closes.
func (p *Parser) block() ([]Stmt, error) {
	var stmts []Stmt
	for !p.check(TokenRightBrace) && !p.isAtEnd() {
		if stmt := p.declarationOrRecover(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	if _, err := p.expect(TokenRightBrace, "Expect '}' after block."); err != nil {
		return nil, err
	}
	return stmts, nil
}

// ---------------------------------------------------------------------------
// Expressions, lowest precedence first
// ---------------------------------------------------------------------------

func (p *Parser) expression() (Expr, error) {
	return p.comma()
}

func (p *Parser) comma() (Expr, error) {
	expr, err := p.assignment()
	if err != nil {
		return nil, err
	}
	for p.match(TokenComma) {
		op := p.previous()
		right, err := p.assignment()
		if err != nil {
			return nil, err
		}
		expr = &Binary{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

// assignment parses the left side at ternary level and converts it into an
// assignment target if an '=' follows. Anything other than a bare variable is
// reported and the left side is returned unchanged.
func (p *Parser) assignment() (Expr, error) {
	expr, err := p.ternary()
	if err != nil {
		return nil, err
	}

	if p.match(TokenEqual) {
		equals := p.previous()
		val, err := p.assignment()
		if err != nil {
			return nil, err
		}
		if v, ok := expr.(*Variable); ok {
			return &Assign{Name: v.Name, Value: val}, nil
		}
		p.error(equals, "Invalid assignment target.")
	}
	return expr, nil
}

// ternary is right-associative: a ? b : c ? d : e groups as a ? b : (c ? d : e).
func (p *Parser) ternary() (Expr, error) {
	cond, err := p.or()
	if err != nil {
		return nil, err
	}
	if !p.match(TokenQuestion) {
		return cond, nil
	}

	question := p.previous()
	then, err := p.expression()
	if err != nil {
		return nil, err
	}
	colon, err := p.expect(TokenColon, "Expect ':' after then branch of conditional expression.")
	if err != nil {
		return nil, err
	}
	els, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return &Ternary{Condition: cond, Question: question, Then: then, Colon: colon, Else: els}, nil
}

func (p *Parser) or() (Expr, error) {
	expr, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.match(TokenOr) {
		op := p.previous()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		expr = &Logical{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) and() (Expr, error) {
	expr, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.match(TokenAnd) {
		op := p.previous()
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		expr = &Logical{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) equality() (Expr, error) {
	return p.binaryLevel(p.comparison, TokenBangEqual, TokenEqualEqual)
}

func (p *Parser) comparison() (Expr, error) {
	return p.binaryLevel(p.term, TokenGreater, TokenGreaterEqual, TokenLess, TokenLessEqual)
}

func (p *Parser) term() (Expr, error) {
	return p.binaryLevel(p.factor, TokenMinus, TokenPlus)
}

func (p *Parser) factor() (Expr, error) {
	return p.binaryLevel(p.unary, TokenSlash, TokenStar)
}

// binaryLevel parses a left-associative chain of operand (op operand)*.
func (p *Parser) binaryLevel(operand func() (Expr, error), ops ...TokenType) (Expr, error) {
	expr, err := operand()
	if err != nil {
		return nil, err
	}
	for p.match(ops...) {
		op := p.previous()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		expr = &Binary{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) unary() (Expr, error) {
	if p.match(TokenBang, TokenMinus) {
		op := p.previous()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Operator: op, Operand: operand}, nil
	}
	return p.primary()
}

func (p *Parser) primary() (Expr, error) {
	switch {
	case p.match(TokenFalse):
		return &Literal{Value: value.False}, nil
	case p.match(TokenTrue):
		return &Literal{Value: value.True}, nil
	case p.match(TokenNil):
		return &Literal{Value: value.Nil}, nil
	case p.match(TokenNumber, TokenString):
		return &Literal{Value: p.previous().Literal}, nil
	case p.match(TokenIdentifier):
		return &Variable{Name: p.previous()}, nil
	case p.match(TokenLeftParen):
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRightParen, "Expect ')' after expression."); err != nil {
			return nil, err
		}
		return &Grouping{Inner: inner}, nil
	}
	return nil, p.error(p.peek(), "Expect expression.")
}

// ---------------------------------------------------------------------------
// Token helpers and error recovery
// ---------------------------------------------------------------------------

func (p *Parser) match(types ...TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) check(t TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == t
}

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) previous() Token {
	return p.tokens[p.current-1]
}

// expect consumes a token of type t or reports message at the current token.
func (p *Parser) expect(t TokenType, message string) (Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	return Token{}, p.error(p.peek(), message)
}

// error reports a syntax error and returns it for the caller to propagate.
func (p *Parser) error(tok Token, message string) *SyntaxError {
	err := &SyntaxError{Token: tok, Message: message}
	p.errors = append(p.errors, err)
	if p.sink != nil {
		p.sink.SyntaxError(tok.Line, err.Where(), message)
	}
	return err
}

// synchronize discards tokens until just after a ';' or just before a token
// that can begin a declaration or statement.
func (p *Parser) synchronize() {
	p.advance()
	for !p.isAtEnd() {
		if p.previous().Type == TokenSemicolon {
			return
		}
		switch p.peek().Type {
		case TokenClass, TokenFun, TokenVar, TokenFor, TokenIf, TokenWhile, TokenPrint, TokenReturn:
			return
		}
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// Convenience entry points
// ---------------------------------------------------------------------------

// ErrScan is returned by ParseProgram when only the scanner reported errors.
var ErrScan = errors.New("syntax: scan failed")

// ParseProgram scans and parses source. Diagnostics go to sink. The returned
// error is the first syntax error, if any.
func ParseProgram(source string, sink diag.Sink) ([]Stmt, error) {
	flags := diag.NewFlags(sink)
	tokens := NewScanner(source, flags).ScanTokens()
	p := NewParser(tokens, flags)
	stmts := p.Parse()
	if errs := p.Errors(); len(errs) > 0 {
		return stmts, errs[0]
	}
	if flags.HadError() {
		return stmts, ErrScan
	}
	return stmts, nil
}
