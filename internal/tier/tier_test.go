package tier

import "testing"

func TestName(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{1, "Bronze V"},
		{5, "Bronze I"},
		{6, "Silver V"},
		{11, "Gold V"},
		{20, "Platinum I"},
		{21, "Diamond V"},
		{30, "Ruby I"},
		{0, "Unknown"},
		{31, "Unknown"},
		{-3, "Unknown"},
	}

	for _, tt := range tests {
		if got := Name(tt.level); got != tt.want {
			t.Errorf("Name(%d) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestGroup(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{3, "Bronze"},
		{8, "Silver"},
		{13, "Gold"},
		{18, "Platinum"},
		{23, "Diamond"},
		{28, "Ruby"},
		{0, "Unknown"},
	}

	for _, tt := range tests {
		if got := Group(tt.level); got != tt.want {
			t.Errorf("Group(%d) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestValidateRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
		wantErr  bool
	}{
		{"full band", 1, 20, false},
		{"single tier", 5, 5, false},
		{"min too low", 0, 10, true},
		{"max too high", 1, 21, true},
		{"inverted", 12, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRange(tt.min, tt.max)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRange(%d, %d) error = %v, wantErr %v", tt.min, tt.max, err, tt.wantErr)
			}
		})
	}
}

func TestParsePreset(t *testing.T) {
	for _, s := range []string{"EASY", "NORMAL", "HARD", "CUSTOM"} {
		if _, err := ParsePreset(s); err != nil {
			t.Errorf("ParsePreset(%q): %v", s, err)
		}
	}
	if _, err := ParsePreset("easy"); err == nil {
		t.Error("lowercase preset should be rejected")
	}
	if _, err := ParsePreset("IMPOSSIBLE"); err == nil {
		t.Error("unknown preset should be rejected")
	}
}
