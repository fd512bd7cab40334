package syntax

import (
	"fmt"
	"strings"
)

// Print renders a node in parenthesized prefix form, e.g. (+ 1 (group 2)).
// Strings are quoted so they can be told apart from numbers.
func Print(node any) string {
	var sb strings.Builder
	switch n := node.(type) {
	case Expr:
		writeExpr(&sb, n)
	case Stmt:
		writeStmt(&sb, n)
	case []Stmt:
		for i, s := range n {
			if i > 0 {
				sb.WriteByte('\n')
			}
			writeStmt(&sb, s)
		}
	default:
		fmt.Fprintf(&sb, "<%T>", node)
	}
	return sb.String()
}

func writeExpr(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *Literal:
		sb.WriteString(n.Value.GoString())
	case *Grouping:
		parens(sb, "group", n.Inner)
	case *Unary:
		parens(sb, n.Operator.Lexeme, n.Operand)
	case *Binary:
		parens(sb, n.Operator.Lexeme, n.Left, n.Right)
	case *Logical:
		parens(sb, n.Operator.Lexeme, n.Left, n.Right)
	case *Ternary:
		parens(sb, "?:", n.Condition, n.Then, n.Else)
	case *Variable:
		sb.WriteString(n.Name.Lexeme)
	case *Assign:
		sb.WriteString("(= ")
		sb.WriteString(n.Name.Lexeme)
		sb.WriteByte(' ')
		writeExpr(sb, n.Value)
		sb.WriteByte(')')
	case nil:
		sb.WriteString("nil")
	default:
		fmt.Fprintf(sb, "<%T>", e)
	}
}

func parens(sb *strings.Builder, name string, parts ...Expr) {
	sb.WriteByte('(')
	sb.WriteString(name)
	for _, p := range parts {
		sb.WriteByte(' ')
		writeExpr(sb, p)
	}
	sb.WriteByte(')')
}

func writeStmt(sb *strings.Builder, s Stmt) {
	switch n := s.(type) {
	case *ExprStmt:
		parens(sb, ";", n.Expr)
	case *PrintStmt:
		parens(sb, "print", n.Expr)
	case *VarStmt:
		sb.WriteString("(var ")
		sb.WriteString(n.Name.Lexeme)
		if n.Initializer != nil {
			sb.WriteByte(' ')
			writeExpr(sb, n.Initializer)
		}
		sb.WriteByte(')')
	case *BlockStmt:
		sb.WriteString("(block")
		for _, inner := range n.Statements {
			sb.WriteByte(' ')
			writeStmt(sb, inner)
		}
		sb.WriteByte(')')
	case *IfStmt:
		sb.WriteString("(if ")
		writeExpr(sb, n.Condition)
		sb.WriteByte(' ')
		writeStmt(sb, n.Then)
		if n.Else != nil {
			sb.WriteByte(' ')
			writeStmt(sb, n.Else)
		}
		sb.WriteByte(')')
	case *WhileStmt:
		sb.WriteString("(while ")
		writeExpr(sb, n.Condition)
		sb.WriteByte(' ')
		writeStmt(sb, n.Body)
		sb.WriteByte(')')
	default:
		fmt.Fprintf(sb, "<%T>", s)
	}
}
