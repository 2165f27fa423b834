package crawler

import "testing"

func TestNormalizeTerm(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"happy", "happy"},
		{"  Happy ", "happy"},
		{"well-chosen", "well chosen"},
		{"well chosen", "well chosen"},
		{"WELL  \t chosen", "well chosen"},
		{"-", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeTerm(c.in); got != c.want {
			t.Errorf("NormalizeTerm(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsCandidate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"happy", true},
		{"well chosen", true},
		{"a", false},
		{"", false},
		{"it's", false},
		{"catch-22", false},
		{"no1", false},
	}
	for _, c := range cases {
		if got := IsCandidate(c.in); got != c.want {
			t.Errorf("IsCandidate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestURLTerm(t *testing.T) {
	if got := urlTerm("well chosen"); got != "well-chosen" {
		t.Errorf("urlTerm = %q, want %q", got, "well-chosen")
	}
	if got := urlTerm("happy"); got != "happy" {
		t.Errorf("urlTerm = %q, want %q", got, "happy")
	}
}
