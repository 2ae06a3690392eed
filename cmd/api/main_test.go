package main

import "testing"

func TestPathEndsWith(t *testing.T) {
	tests := []struct {
		path   string
		suffix string
		want   bool
	}{
		{"/students/abc/matches", "/matches", true},
		{"/students/abc/matches/", "/matches", true},
		{"/students/abc/invalidate", "/matches", false},
		{"/listings/xyz/invalidate", "/invalidate", true},
		{"/matches/a/b/history", "/history", true},
		{"/matches", "/history", false},
		{"", "/matches", false},
	}

	for _, tt := range tests {
		if got := pathEndsWith(tt.path, tt.suffix); got != tt.want {
			t.Errorf("pathEndsWith(%q, %q) = %v, want %v", tt.path, tt.suffix, got, tt.want)
		}
	}
}
