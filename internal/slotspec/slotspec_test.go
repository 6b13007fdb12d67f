package slotspec

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/zenkaedev/Zenkae-sub000/internal/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		expected []models.Slot
	}{
		{
			name: "standard trinity",
			spec: "1,1,3",
			expected: []models.Slot{
				{Role: "Tank", Capacity: 1, Members: []string{}},
				{Role: "Healer", Capacity: 1, Members: []string{}},
				{Role: "DPS", Capacity: 3, Members: []string{}},
			},
		},
		{
			name: "zero capacity role omitted",
			spec: "0,2,2",
			expected: []models.Slot{
				{Role: "Healer", Capacity: 2, Members: []string{}},
				{Role: "DPS", Capacity: 2, Members: []string{}},
			},
		},
		{
			name: "whitespace tolerated",
			spec: " 1 , 1 , 3 ",
			expected: []models.Slot{
				{Role: "Tank", Capacity: 1, Members: []string{}},
				{Role: "Healer", Capacity: 1, Members: []string{}},
				{Role: "DPS", Capacity: 3, Members: []string{}},
			},
		},
		{
			name: "missing trailing values default to zero",
			spec: "2",
			expected: []models.Slot{
				{Role: "Tank", Capacity: 2, Members: []string{}},
			},
		},
		{
			name: "malformed integer counts as zero",
			spec: "x,1,3",
			expected: []models.Slot{
				{Role: "Healer", Capacity: 1, Members: []string{}},
				{Role: "DPS", Capacity: 3, Members: []string{}},
			},
		},
		{
			name: "negative counts as zero",
			spec: "-1,1,3",
			expected: []models.Slot{
				{Role: "Healer", Capacity: 1, Members: []string{}},
				{Role: "DPS", Capacity: 3, Members: []string{}},
			},
		},
		{
			name:     "empty descriptor yields no slots",
			spec:     "",
			expected: []models.Slot{},
		},
		{
			name:     "all zero yields no slots",
			spec:     "0,0,0",
			expected: []models.Slot{},
		},
		{
			name:     "garbage yields no slots",
			spec:     "banana",
			expected: []models.Slot{},
		},
		{
			name: "extra values beyond role set ignored",
			spec: "1,1,3,7,9",
			expected: []models.Slot{
				{Role: "Tank", Capacity: 1, Members: []string{}},
				{Role: "Healer", Capacity: 1, Members: []string{}},
				{Role: "DPS", Capacity: 3, Members: []string{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Parse(tt.spec))
		})
	}
}

func TestParse_NeverFails(t *testing.T) {
	// Free-text inputs straight from a creation form must never panic
	inputs := []string{
		",,,", "1,,3", ",2,", "1;2;3", "１，２，３", "\t\n", "1,1,999999",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Parse(in) }, "input %q", in)
	}
}

// TestProperty_ParseWellFormedDescriptors verifies that any descriptor built
// from non-negative integers parses into slots whose capacities, roles, and
// order match the positive entries.
func TestProperty_ParseWellFormedDescriptors(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property test in short mode")
	}

	properties := gopter.NewProperties(nil)

	properties.Property("positive capacities map to slots in fixed role order",
		prop.ForAll(
			func(caps []int) bool {
				parts := make([]string, len(caps))
				for i, c := range caps {
					parts[i] = fmt.Sprintf("%d", c)
				}
				slots := Parse(strings.Join(parts, ","))

				// Expected slots: positive entries within the role set, in order
				expected := 0
				for i, c := range caps {
					if i >= len(RoleLabels) {
						break
					}
					if c > 0 {
						expected++
					}
				}
				if len(slots) != expected {
					return false
				}

				j := 0
				for i, c := range caps {
					if i >= len(RoleLabels) || c <= 0 {
						continue
					}
					if slots[j].Role != RoleLabels[i] || slots[j].Capacity != c {
						return false
					}
					if len(slots[j].Members) != 0 {
						return false
					}
					j++
				}
				return true
			},
			gen.SliceOfN(3, gen.IntRange(0, 10)),
		))

	properties.Property("parsing never yields a zero-capacity slot",
		prop.ForAll(
			func(spec string) bool {
				for _, slot := range Parse(spec) {
					if slot.Capacity <= 0 {
						return false
					}
				}
				return true
			},
			gen.AnyString(),
		))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
