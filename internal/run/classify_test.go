package run

import "testing"

func TestClassifyStatuses(t *testing.T) {
	tests := []struct {
		status      int
		stopOnError bool
		want        Class
	}{
		{401, false, AuthFailure},
		{401, true, AuthFailure},
		{403, false, AuthFailure},
		{403, true, AuthFailure},
		{409, false, Conflict},
		{409, true, Conflict},
		{422, false, Conflict},
		{422, true, Conflict},
		{500, false, Recoverable},
		{500, true, Fatal},
		{404, false, Recoverable},
		{404, true, Fatal},
		{0, false, Recoverable},
		{0, true, Fatal},
	}
	for _, tt := range tests {
		got := Classify(tt.status, tt.stopOnError)
		if got != tt.want {
			t.Errorf("Classify(%d, stop=%v) = %s, want %s", tt.status, tt.stopOnError, got, tt.want)
		}
	}
}

func TestClassStrings(t *testing.T) {
	tests := []struct {
		class Class
		want  string
	}{
		{Recoverable, "recoverable"},
		{Conflict, "conflict"},
		{AuthFailure, "auth_failure"},
		{Fatal, "fatal"},
		{Class(99), "unknown"},
	}
	for _, tt := range tests {
		if tt.class.String() != tt.want {
			t.Errorf("Class(%d).String() = %s, want %s", int(tt.class), tt.class.String(), tt.want)
		}
	}
}
