package identity

import "testing"

func TestValidUsername(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"abc", true},
		{"alice_99", true},
		{"A-b_C-9", true},
		{"abcdefghijklmnopqrstuvwxyz", true}, // 26
		{"ab", false},
		{"abcdefghijklmnopqrstuvwxyz0", false}, // 27
		{"has space", false},
		{"dot.name", false},
		{"ünïcode", false},
		{" alice", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidUsername(tc.in); got != tc.want {
			t.Fatalf("ValidUsername(%q) = %v, want %v", tc.in, got, tc.want)
		}
		err := ValidateUsername(tc.in)
		if tc.want && err != nil {
			t.Fatalf("ValidateUsername(%q) error: %v", tc.in, err)
		}
		if !tc.want && !IsInvalidInput(err) {
			t.Fatalf("ValidateUsername(%q) = %v, want invalid input", tc.in, err)
		}
	}
}
