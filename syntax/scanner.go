package syntax

import (
	"strconv"

	"github.com/chazu/lox/diag"
	"github.com/chazu/lox/value"
)

// ---------------------------------------------------------------------------
// Scanner: source text to tokens
// ---------------------------------------------------------------------------

// Scanner converts source text into tokens in a single left-to-right pass.
// Errors are reported to the sink and scanning continues.
type Scanner struct {
	source    string
	sink      diag.Sink
	tokens    []Token
	start     int // offset of the token being scanned
	current   int // offset of the next unread byte
	line      int // current line (1-based)
	lineStart int // offset of the current line start
	startLine int
	startCol  int
}

// NewScanner creates a scanner for source. Diagnostics go to sink, which may
// be nil.
func NewScanner(source string, sink diag.Sink) *Scanner {
	return &Scanner{
		source: source,
		sink:   sink,
		line:   1,
	}
}

// ScanTokens scans the whole input. The result always ends with an EOF token.
func (s *Scanner) ScanTokens() []Token {
	for !s.isAtEnd() {
		s.start = s.current
		s.startLine = s.line
		s.startCol = s.current - s.lineStart + 1
		s.scanToken()
	}

	s.tokens = append(s.tokens, Token{
		Type:   TokenEOF,
		Line:   s.line,
		Column: s.current - s.lineStart + 1,
	})
	return s.tokens
}

func (s *Scanner) scanToken() {
	c := s.advance()
	switch c {
	case '(':
		s.addToken(TokenLeftParen)
	case ')':
		s.addToken(TokenRightParen)
	case '{':
		s.addToken(TokenLeftBrace)
	case '}':
		s.addToken(TokenRightBrace)
	case ',':
		s.addToken(TokenComma)
	case '.':
		s.addToken(TokenDot)
	case '-':
		s.addToken(TokenMinus)
	case '+':
		s.addToken(TokenPlus)
	case ';':
		s.addToken(TokenSemicolon)
	case '*':
		s.addToken(TokenStar)
	case '?':
		s.addToken(TokenQuestion)
	case ':':
		s.addToken(TokenColon)

	case '/':
		switch {
		case s.match('/'):
			for s.peek() != '\n' && !s.isAtEnd() {
				s.advance()
			}
		case s.match('*'):
			s.blockComment()
		default:
			s.addToken(TokenSlash)
		}

	case '=':
		s.addToken(s.pick('=', TokenEqualEqual, TokenEqual))
	case '!':
		s.addToken(s.pick('=', TokenBangEqual, TokenBang))
	case '>':
		s.addToken(s.pick('=', TokenGreaterEqual, TokenGreater))
	case '<':
		s.addToken(s.pick('=', TokenLessEqual, TokenLess))

	case ' ', '\r', '\t':
	case '\n':
		s.newline()

	case '"':
		s.string()

	default:
		switch {
		case isDigit(c):
			s.number()
		case isAlpha(c):
			s.identifier()
		default:
			s.error("Unexpected character.")
		}
	}
}

// blockComment consumes up to and including the first "*/".
func (s *Scanner) blockComment() {
	for !s.isAtEnd() && !(s.peek() == '*' && s.peekNext() == '/') {
		if s.peek() == '\n' {
			s.advance()
			s.newline()
			continue
		}
		s.advance()
	}
	if s.isAtEnd() {
		s.error("Unterminated block comment.")
		return
	}
	s.advance() // *
	s.advance() // /
}

func (s *Scanner) string() {
	for s.peek() != '"' && !s.isAtEnd() {
		if s.peek() == '\n' {
			s.advance()
			s.newline()
			continue
		}
		s.advance()
	}

	if s.isAtEnd() {
		s.error("Unterminated string.")
		return
	}

	s.advance() // closing "
	text := s.source[s.start+1 : s.current-1]
	s.addLiteral(TokenString, value.String(text))
}

func (s *Scanner) number() {
	for isDigit(s.peek()) {
		s.advance()
	}

	// A '.' is part of the number only when a digit follows it.
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}

	n, err := strconv.ParseFloat(s.source[s.start:s.current], 64)
	if err != nil {
		s.error("Invalid number literal.")
		return
	}
	s.addLiteral(TokenNumber, value.Number(n))
}

func (s *Scanner) identifier() {
	for isAlphaNumeric(s.peek()) {
		s.advance()
	}

	text := s.source[s.start:s.current]
	typ, ok := Keywords[text]
	if !ok {
		s.addToken(TokenIdentifier)
		return
	}

	switch typ {
	case TokenTrue:
		s.addLiteral(typ, value.True)
	case TokenFalse:
		s.addLiteral(typ, value.False)
	default:
		s.addToken(typ)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *Scanner) isAtEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) advance() byte {
	c := s.source[s.current]
	s.current++
	return c
}

func (s *Scanner) match(expected byte) bool {
	if s.isAtEnd() || s.source[s.current] != expected {
		return false
	}
	s.current++
	return true
}

// pick consumes next and returns long if it follows, otherwise short.
func (s *Scanner) pick(next byte, long, short TokenType) TokenType {
	if s.match(next) {
		return long
	}
	return short
}

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return 0
	}
	return s.source[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return 0
	}
	return s.source[s.current+1]
}

// newline is called after a '\n' has been consumed.
func (s *Scanner) newline() {
	s.line++
	s.lineStart = s.current
}

func (s *Scanner) addToken(typ TokenType) {
	s.addLiteral(typ, value.Nil)
}

func (s *Scanner) addLiteral(typ TokenType, lit value.Value) {
	s.tokens = append(s.tokens, Token{
		Type:    typ,
		Lexeme:  s.source[s.start:s.current],
		Literal: lit,
		Line:    s.startLine,
		Column:  s.startCol,
	})
}

func (s *Scanner) error(message string) {
	if s.sink != nil {
		s.sink.SyntaxError(s.line, "", message)
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isAlphaNumeric(c byte) bool {
	return isAlpha(c) || isDigit(c)
}

// Tokenize scans input and returns its tokens, discarding diagnostics.
func Tokenize(input string) []Token {
	return NewScanner(input, nil).ScanTokens()
}
