package calls

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to CallStatus
		want     bool
	}{
		{CallStatusWaiting, CallStatusRinging, true},
		{CallStatusWaiting, CallStatusAnswered, true},
		{CallStatusRinging, CallStatusAnswered, true},
		{CallStatusAnswered, CallStatusCompleted, true},
		{CallStatusWaiting, CallStatusMissed, true},
		{CallStatusRinging, CallStatusAbandoned, true},
		{CallStatusAnswered, CallStatusTransferred, true},
		{CallStatusWaiting, CallStatusFailed, true},

		// No regression from terminal states.
		{CallStatusCompleted, CallStatusRinging, false},
		{CallStatusCompleted, CallStatusAnswered, false},
		{CallStatusMissed, CallStatusCompleted, false},
		{CallStatusAbandoned, CallStatusAnswered, false},
		{CallStatusFailed, CallStatusWaiting, false},

		// Completed only from answered.
		{CallStatusWaiting, CallStatusCompleted, false},
		{CallStatusRinging, CallStatusCompleted, false},

		// Pre-answer states never come back.
		{CallStatusAnswered, CallStatusRinging, false},
		{CallStatusAnswered, CallStatusWaiting, false},
		{CallStatusRinging, CallStatusWaiting, false},

		// Same status is a no-op.
		{CallStatusAnswered, CallStatusAnswered, true},
		{CallStatusCompleted, CallStatusCompleted, true},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []CallStatus{CallStatusCompleted, CallStatusMissed, CallStatusAbandoned, CallStatusTransferred, CallStatusFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []CallStatus{CallStatusWaiting, CallStatusRinging, CallStatusAnswered} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
