package ptr_test

import (
	"testing"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/ptr"
)

func TestRef(t *testing.T) {
	weight := 60.0
	p := ptr.Ref(weight)
	if p == nil {
		t.Fatal("Ref() returned nil")
	}
	if *p != weight {
		t.Errorf("*Ref() = %v, want %v", *p, weight)
	}
	weight = 62.5
	if *p == weight {
		t.Error("Ref() must copy the value")
	}
}

func TestDeref(t *testing.T) {
	tests := []struct {
		name     string
		p        *string
		fallback string
		want     string
	}{
		{name: "nil pointer", p: nil, fallback: "", want: ""},
		{name: "nil pointer with fallback", p: nil, fallback: "8-12", want: "8-12"},
		{name: "set pointer", p: ptr.Ref("5"), fallback: "8-12", want: "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ptr.Deref(tt.p, tt.fallback); got != tt.want {
				t.Errorf("Deref() = %q, want %q", got, tt.want)
			}
		})
	}
}
