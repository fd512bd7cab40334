package syntax

import (
	"fmt"

	"github.com/chazu/lox/value"
)

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Single-character tokens
	TokenLeftParen TokenType = iota
	TokenRightParen
	TokenLeftBrace
	TokenRightBrace
	TokenComma
	TokenDot
	TokenMinus
	TokenPlus
	TokenSemicolon
	TokenSlash
	TokenStar
	TokenColon
	TokenQuestion

	// One or two character tokens
	TokenBang
	TokenBangEqual
	TokenEqual
	TokenEqualEqual
	TokenGreater
	TokenGreaterEqual
	TokenLess
	TokenLessEqual

	// Literals
	TokenIdentifier
	TokenString
	TokenNumber

	// Keywords
	TokenAnd
	TokenClass
	TokenElse
	TokenFalse
	TokenFun
	TokenFor
	TokenIf
	TokenNil
	TokenOr
	TokenPrint
	TokenReturn
	TokenSuper
	TokenThis
	TokenTrue
	TokenVar
	TokenWhile

	TokenEOF
)

var tokenNames = map[TokenType]string{
	TokenLeftParen:    "LEFT_PAREN",
	TokenRightParen:   "RIGHT_PAREN",
	TokenLeftBrace:    "LEFT_BRACE",
	TokenRightBrace:   "RIGHT_BRACE",
	TokenComma:        "COMMA",
	TokenDot:          "DOT",
	TokenMinus:        "MINUS",
	TokenPlus:         "PLUS",
	TokenSemicolon:    "SEMICOLON",
	TokenSlash:        "SLASH",
	TokenStar:         "STAR",
	TokenColon:        "COLON",
	TokenQuestion:     "QUESTION",
	TokenBang:         "BANG",
	TokenBangEqual:    "BANG_EQUAL",
	TokenEqual:        "EQUAL",
	TokenEqualEqual:   "EQUAL_EQUAL",
	TokenGreater:      "GREATER",
	TokenGreaterEqual: "GREATER_EQUAL",
	TokenLess:         "LESS",
	TokenLessEqual:    "LESS_EQUAL",
	TokenIdentifier:   "IDENTIFIER",
	TokenString:       "STRING",
	TokenNumber:       "NUMBER",
	TokenAnd:          "AND",
	TokenClass:        "CLASS",
	TokenElse:         "ELSE",
	TokenFalse:        "FALSE",
	TokenFun:          "FUN",
	TokenFor:          "FOR",
	TokenIf:           "IF",
	TokenNil:          "NIL",
	TokenOr:           "OR",
	TokenPrint:        "PRINT",
	TokenReturn:       "RETURN",
	TokenSuper:        "SUPER",
	TokenThis:         "THIS",
	TokenTrue:         "TRUE",
	TokenVar:          "VAR",
	TokenWhile:        "WHILE",
	TokenEOF:          "EOF",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// IsKeyword reports whether t is a reserved word.
func (t TokenType) IsKeyword() bool {
	return t >= TokenAnd && t <= TokenWhile
}

// Token represents a lexical token. Tokens are created by the Scanner and
// never mutated afterwards.
type Token struct {
	Type    TokenType
	Lexeme  string      // exact source text
	Literal value.Value // set for NUMBER, STRING, TRUE and FALSE
	Line    int         // 1-based line the token starts on
	Column  int         // 1-based column the token starts at
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenNumber, TokenString, TokenTrue, TokenFalse:
		return fmt.Sprintf("%s %s %#v", t.Type, t.Lexeme, t.Literal)
	}
	return fmt.Sprintf("%s %s", t.Type, t.Lexeme)
}

// Keywords maps reserved words to their token types.
var Keywords = map[string]TokenType{
	"and":    TokenAnd,
	"class":  TokenClass,
	"else":   TokenElse,
	"false":  TokenFalse,
	"for":    TokenFor,
	"fun":    TokenFun,
	"if":     TokenIf,
	"nil":    TokenNil,
	"or":     TokenOr,
	"print":  TokenPrint,
	"return": TokenReturn,
	"super":  TokenSuper,
	"this":   TokenThis,
	"true":   TokenTrue,
	"var":    TokenVar,
	"while":  TokenWhile,
}
