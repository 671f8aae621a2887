package envstruct_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/envstruct"
	"github.com/google/go-cmp/cmp"
)

func unset(_ string) (string, bool) { return "", false }

func TestPopulate(t *testing.T) {
	type sessionConfig struct {
		Addr        string        `env:"ADDR" envDefault:"localhost:8081"`
		Increment   float64       `env:"INCREMENT" envDefault:"2.5"`
		MaxSets     int           `env:"MAX_SETS" envDefault:"10"`
		Metrics     bool          `env:"METRICS" envDefault:"true"`
		IdleTimeout time.Duration `env:"IDLE_TIMEOUT" envDefault:"3h"`
		Untagged    string
	}

	tests := []struct {
		name      string
		v         any
		lookupEnv func(string) (string, bool)
		want      any
		wantErr   error
	}{
		{
			name:      "nil",
			v:         nil,
			lookupEnv: unset,
			wantErr:   envstruct.ErrInvalidValue,
		},
		{
			name:      "not pointer",
			v:         struct{}{},
			lookupEnv: unset,
			wantErr:   envstruct.ErrInvalidValue,
		},
		{
			name:      "pointer to non-struct",
			v:         new(string),
			lookupEnv: unset,
			wantErr:   envstruct.ErrInvalidValue,
		},
		{
			name:      "empty struct",
			v:         &struct{}{},
			lookupEnv: unset,
			want:      &struct{}{},
		},
		{
			name: "missing without default",
			v: &struct { //nolint:exhaustruct // populated later
				SqliteURL string `env:"SQLITE_URL"`
			}{},
			lookupEnv: unset,
			wantErr:   envstruct.ErrEnvNotSet,
		},
		{
			name:      "defaults for every supported type",
			v:         &sessionConfig{}, //nolint:exhaustruct // populated later
			lookupEnv: unset,
			want: &sessionConfig{
				Addr:        "localhost:8081",
				Increment:   2.5,
				MaxSets:     10,
				Metrics:     true,
				IdleTimeout: 3 * time.Hour,
				Untagged:    "",
			},
		},
		{
			name: "environment overrides defaults",
			v:    &sessionConfig{}, //nolint:exhaustruct // populated later
			lookupEnv: func(key string) (string, bool) {
				values := map[string]string{
					"ADDR":         "localhost:0",
					"INCREMENT":    "1.25",
					"MAX_SETS":     "5",
					"METRICS":      "false",
					"IDLE_TIMEOUT": "90m",
				}
				v, ok := values[key]
				return v, ok
			},
			want: &sessionConfig{
				Addr:        "localhost:0",
				Increment:   1.25,
				MaxSets:     5,
				Metrics:     false,
				IdleTimeout: 90 * time.Minute,
				Untagged:    "",
			},
		},
		{
			name: "picks correct variable",
			v: &struct { //nolint:exhaustruct // populated later
				A string `env:"ENV_A"`
				B string `env:"ENV_B"`
			}{},
			lookupEnv: func(s string) (string, bool) { return strings.ToLower(s), true },
			want: &struct {
				A string `env:"ENV_A"`
				B string `env:"ENV_B"`
			}{A: "env_a", B: "env_b"},
		},
		{
			name: "unparsable number",
			v: &struct { //nolint:exhaustruct // populated later
				MaxSets int `env:"MAX_SETS"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "ten", true },
			wantErr:   envstruct.ErrUnparsable,
		},
		{
			name: "unsupported type",
			v: &struct { //nolint:exhaustruct // populated later
				Muscles []string `env:"MUSCLES"`
			}{},
			lookupEnv: func(_ string) (string, bool) { return "chest", true },
			wantErr:   envstruct.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := envstruct.Populate(tt.v, tt.lookupEnv)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Populate() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Populate() unexpected error = %v", err)
			}
			if diff := cmp.Diff(tt.want, tt.v); diff != "" {
				t.Errorf("Populate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
