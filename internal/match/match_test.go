// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import "testing"

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"10.1145/3297858.3304076", "10.1145/3297858.3304076"},
		{"https://doi.org/10.1145/3297858", "10.1145/3297858"},
		{"http://dx.doi.org/10.1000/XYZ", "10.1000/xyz"},
		{"DOI:10.1000/xyz", "10.1000/xyz"},
		{"  10.1000/XYZ  ", "10.1000/xyz"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeDOI(tt.input); got != tt.want {
			t.Errorf("NormalizeDOI(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Paxos Made Live: An Engineering Perspective", "paxos made live an engineering perspective"},
		{"  Multiple   spaces\tand\ttabs ", "multiple spaces and tabs"},
		{"Résumé-driven Développement!", "resumedriven developpement"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.input); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTitleRatio(t *testing.T) {
	tests := []struct {
		a, b string
		min  int
		max  int
	}{
		{"paxos made live", "paxos made live", 100, 100},
		{"paxos made live", "paxos made lIve", 90, 99},
		{"paxos made live", "completely different", 0, 50},
		{"", "", 100, 100},
	}
	for _, tt := range tests {
		got := TitleRatio(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("TitleRatio(%q, %q) = %d, want within [%d, %d]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}

func TestWithinLengthWindow(t *testing.T) {
	if !WithinLengthWindow("abcdef", "abc", 10) {
		t.Error("expected short diff inside window")
	}
	if WithinLengthWindow("abc", "abcdefghijklmnop", 10) {
		t.Error("expected long diff outside window")
	}
}
