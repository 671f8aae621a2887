package workout_test

import (
	"testing"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/workout"
	"github.com/google/go-cmp/cmp"
)

func TestParseRepTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  *workout.RepTarget
	}{
		{name: "range", input: "6-8", want: &workout.RepTarget{Kind: workout.RepTargetRange, Min: 6, Max: 8}},
		{name: "range with spaces", input: " 8 - 12 ", want: &workout.RepTarget{
			Kind: workout.RepTargetRange, Min: 8, Max: 12,
		}},
		{name: "fixed", input: "5", want: &workout.RepTarget{Kind: workout.RepTargetFixed, Value: 5}},
		{name: "fixed with spaces", input: "  10 ", want: &workout.RepTarget{Kind: workout.RepTargetFixed, Value: 10}},
		{name: "descending range", input: "8-6", want: nil},
		{name: "degenerate range", input: "8-8", want: nil},
		{name: "zero", input: "0", want: nil},
		{name: "zero in range", input: "0-5", want: nil},
		{name: "empty", input: "", want: nil},
		{name: "blank", input: "   ", want: nil},
		{name: "three bounds", input: "6-8-10", want: nil},
		{name: "open range", input: "6-", want: nil},
		{name: "negative", input: "-5", want: nil},
		{name: "decimal", input: "5.5", want: nil},
		{name: "text", input: "AMRAP", want: nil},
		{name: "signed", input: "+5", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := workout.ParseRepTarget(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseRepTarget(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}
