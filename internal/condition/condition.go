package condition

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Comparator is one of the five supported comparison operators.
type Comparator string

const (
	CmpGTE Comparator = ">="
	CmpLTE Comparator = "<="
	CmpGT  Comparator = ">"
	CmpLT  Comparator = "<"
	CmpEQ  Comparator = "=="
)

// ParseError reports an expression that does not match the threshold grammar.
type ParseError struct {
	Expr   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse condition %q: %s", e.Expr, e.Reason)
}

// Condition is a parsed threshold rule: compare a resolved price against a
// fixed number.
type Condition struct {
	Cmp       Comparator
	Threshold float64
}

// Parse accepts exactly the grammar "price <comparator> <number>" with
// whitespace-separated tokens. The expression is untrusted user input, so
// anything outside the grammar is a ParseError; there is no code execution
// path of any kind.
func Parse(expr string) (Condition, error) {
	fields := strings.Fields(expr)
	if len(fields) != 3 {
		return Condition{}, &ParseError{Expr: expr, Reason: "want exactly: price <comparator> <number>"}
	}
	if !strings.EqualFold(fields[0], "price") {
		return Condition{}, &ParseError{Expr: expr, Reason: fmt.Sprintf("unknown identifier %q", fields[0])}
	}

	var cmp Comparator
	switch fields[1] {
	case ">=":
		cmp = CmpGTE
	case "<=":
		cmp = CmpLTE
	case ">":
		cmp = CmpGT
	case "<":
		cmp = CmpLT
	case "==":
		cmp = CmpEQ
	default:
		return Condition{}, &ParseError{Expr: expr, Reason: fmt.Sprintf("unknown comparator %q", fields[1])}
	}

	threshold, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Condition{}, &ParseError{Expr: expr, Reason: fmt.Sprintf("invalid threshold %q", fields[2])}
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return Condition{}, &ParseError{Expr: expr, Reason: "threshold must be finite"}
	}

	return Condition{Cmp: cmp, Threshold: threshold}, nil
}

// Eval compares a price against the threshold using IEEE-754 double
// semantics. CmpEQ is exact floating-point equality, which rarely holds for
// live prices; prefer >= or <= in practice.
func (c Condition) Eval(price float64) bool {
	switch c.Cmp {
	case CmpGTE:
		return price >= c.Threshold
	case CmpLTE:
		return price <= c.Threshold
	case CmpGT:
		return price > c.Threshold
	case CmpLT:
		return price < c.Threshold
	case CmpEQ:
		return price == c.Threshold
	default:
		return false
	}
}
