package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasPlans(t *testing.T) {
	c := Default()

	plan, ok := c.Lookup("basic")
	require.True(t, ok)
	assert.Equal(t, "hostprov_basic", plan.Package)
	assert.Equal(t, "Plan Básico", plan.Name)
	assert.Len(t, c.Plans(), 3)
}

func TestParse_NameDefaultsToID(t *testing.T) {
	c, err := Parse([]byte("plans:\n  - id: tiny\n    package: pkg_tiny\n"))
	require.NoError(t, err)

	plan, ok := c.Lookup("tiny")
	require.True(t, ok)
	assert.Equal(t, "tiny", plan.Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"empty", "plans: []\n", ErrEmptyCatalog},
		{"missing id", "plans:\n  - package: p\n", ErrPlanIDRequired},
		{"missing package", "plans:\n  - id: a\n", ErrPackageRequired},
		{"duplicate", "plans:\n  - id: a\n    package: p\n  - id: a\n    package: q\n", ErrDuplicatePlanID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("plans: [::"))
	assert.Error(t, err)
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := Default().Lookup("gold")
	assert.False(t, ok)
}
