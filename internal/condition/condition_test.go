package condition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndEval(t *testing.T) {
	tests := []struct {
		expr  string
		price float64
		want  bool
	}{
		{"price >= 33.0", 33.0, true},
		{"price >= 33.0", 32.999999, false},
		{"price >= 33.0", 33.5, true},
		{"price <= 800", 800.0, true},
		{"price <= 800", 800.01, false},
		{"price > 100", 100, false},
		{"price > 100", 100.000001, true},
		{"price < 0.5", 0.499, true},
		{"price == 42", 42, true},
		{"price == 42", 41.999999, false},
		{"PRICE >= 10", 11, true},   // identifier is case-insensitive
		{"price  >=  33.0", 33, true}, // extra whitespace is fine
		{"price >= -5", 0, true},
	}
	for _, tt := range tests {
		cond, err := Parse(tt.expr)
		require.NoError(t, err, "expr %q", tt.expr)
		assert.Equal(t, tt.want, cond.Eval(tt.price), "expr %q price %v", tt.expr, tt.price)
	}
}

func TestParse_Rejects(t *testing.T) {
	exprs := []string{
		"",
		"price",
		"price >=",
		"price >= 33 extra",
		"price = 33",
		"price => 33",
		"price >= abc",
		"price >= NaN",
		"price >= Inf",
		"volume >= 33",
		"price + 1 >= 33",
		"price >= price",
		"DROP TABLE alerts",
		"__import__('os').system('rm -rf /')",
		"price>=33", // grammar requires whitespace-separated tokens
	}
	for _, expr := range exprs {
		_, err := Parse(expr)
		require.Error(t, err, "expr %q", expr)
		var perr *ParseError
		assert.True(t, errors.As(err, &perr), "expr %q: want *ParseError, got %T", expr, err)
	}
}

func TestParse_Fields(t *testing.T) {
	cond, err := Parse("price >= 33.0")
	require.NoError(t, err)
	assert.Equal(t, CmpGTE, cond.Cmp)
	assert.Equal(t, 33.0, cond.Threshold)
}
