package interpreter

import (
	"fmt"

	"github.com/chazu/lox/syntax"
)

// RuntimeError aborts the current unit. Token is the operator or name the
// failure is attributed to.
type RuntimeError struct {
	Token   syntax.Token
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s\n[line %d]", e.Message, e.Token.Line)
}

// Line returns the source line of the offending token.
func (e *RuntimeError) Line() int {
	return e.Token.Line
}
