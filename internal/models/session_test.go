package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionTransitions(t *testing.T) {
	cases := []struct {
		status    SessionStatus
		canStart  bool
		canEnd    bool
		canCancel bool
	}{
		{SessionScheduled, true, false, true},
		{SessionLive, false, true, false},
		{SessionEnded, false, false, false},
		{SessionCancelled, false, false, false},
	}
	for _, tc := range cases {
		s := &Session{Status: tc.status}
		assert.Equal(t, tc.canStart, s.CanStart(), "CanStart from %s", tc.status)
		assert.Equal(t, tc.canEnd, s.CanEnd(), "CanEnd from %s", tc.status)
		assert.Equal(t, tc.canCancel, s.CanCancel(), "CanCancel from %s", tc.status)
	}
}

func TestIsUpcomingGraceWindow(t *testing.T) {
	now := time.Now()

	future := &Session{Status: SessionScheduled, ScheduledAt: now.Add(time.Hour)}
	assert.True(t, future.IsUpcoming(now))

	withinGrace := &Session{Status: SessionScheduled, ScheduledAt: now.Add(-30 * time.Minute)}
	assert.True(t, withinGrace.IsUpcoming(now), "a session half an hour late can still be started")

	pastGrace := &Session{Status: SessionScheduled, ScheduledAt: now.Add(-2 * time.Hour)}
	assert.False(t, pastGrace.IsUpcoming(now))

	cancelled := &Session{Status: SessionCancelled, ScheduledAt: now.Add(time.Hour)}
	assert.False(t, cancelled.IsUpcoming(now))
}
