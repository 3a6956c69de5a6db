package classify

import "testing"

func TestParsePattern(t *testing.T) {
	tests := []struct {
		in        string
		want      Pattern
		wantErr   bool
		matches   []string
		unmatched []string
	}{
		{
			in:        `/stand[- ]?up/i`,
			want:      Pattern{Source: `stand[- ]?up`, Flags: "i"},
			matches:   []string{"daily standup", "stand-up"},
			unmatched: []string{"standard"},
		},
		{
			in:      `formation`,
			want:    Pattern{Source: `formation`, Flags: "i"},
			matches: []string{"FORMATION"},
		},
		{
			in:        `/^point/y`,
			want:      Pattern{Source: `^point`, Flags: "y"},
			matches:   []string{"point hebdo"},
			unmatched: []string{"le point"},
		},
		{
			in:        `/atelier/gy`,
			want:      Pattern{Source: `atelier`, Flags: "gy"},
			matches:   []string{"atelier ux"},
			unmatched: []string{"un atelier"},
		},
		{
			in:      `/a/b/i`,
			want:    Pattern{Source: `a/b`, Flags: "i"},
			matches: []string{"A/B"},
		},
		{
			in:        `/Board/`,
			want:      Pattern{Source: `Board`, Flags: ""},
			unmatched: []string{"board"},
		},
		{in: `/x/ii`, wantErr: true},
		{in: `/x/q`, wantErr: true},
		{in: `/(x/`, wantErr: true},
		{in: `(?=lookahead)`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePattern(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePattern(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("ParsePattern(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			re, err := got.Compile()
			if err != nil {
				t.Fatal(err)
			}
			for _, s := range tt.matches {
				if !re.MatchString(s) {
					t.Errorf("%s should match %q", got, s)
				}
			}
			for _, s := range tt.unmatched {
				if re.MatchString(s) {
					t.Errorf("%s should not match %q", got, s)
				}
			}
		})
	}
}

func TestCategoryOutcome(t *testing.T) {
	for _, c := range Categories {
		color, reason := c.Outcome()
		if reason == "" {
			t.Errorf("%s has empty reason", c)
		}
		if color.String() == "gray" {
			t.Errorf("%s maps to the default color", c)
		}
	}
}

func TestDefaultConfigIsFresh(t *testing.T) {
	a := DefaultConfig()
	a.NoFlex.Keywords[0] = "changed"
	b := DefaultConfig()
	if b.NoFlex.Keywords[0] == "changed" {
		t.Error("DefaultConfig returns shared slices")
	}
}
