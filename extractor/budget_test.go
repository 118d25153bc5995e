package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBudget(t *testing.T) {
	cases := []struct {
		text    string
		wantMin string
		wantMax string
		ok      bool
	}{
		{"around 750k", "750000", "", true},
		{"my budget is 1.2m", "1200000", "", true},
		{"500,000 max", "500000", "", true},
		{"700-900k", "700000", "900000", true},
		{"between 500k and 700k", "500000", "700000", true},
		{"900k down to 700k", "700000", "900000", true},
		{"3 bedrooms please", "", "", false},
		{"no idea yet", "", "", false},
	}
	for _, tc := range cases {
		min, max, ok := ParseBudget(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		assert.Equal(t, tc.wantMin, min, tc.text)
		assert.Equal(t, tc.wantMax, max, tc.text)
	}
}

func TestParseBudgetIgnoresImplausibleFigures(t *testing.T) {
	// Small counts and huge identifiers are not budgets.
	_, _, ok := ParseBudget("2 parking spots")
	assert.False(t, ok)

	min, _, ok := ParseBudget("unit 4021, budget 800k")
	assert.True(t, ok)
	assert.Equal(t, "800000", min)
}
