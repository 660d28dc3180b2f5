package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuizValid(t *testing.T) {
	q := &Quiz{Options: []string{"a", "b", "c"}, CorrectAnswer: 2}
	assert.True(t, q.Valid())

	q.CorrectAnswer = 3
	assert.False(t, q.Valid(), "correct answer past the last option")

	q.CorrectAnswer = -1
	assert.False(t, q.Valid())

	assert.False(t, (&Quiz{Options: []string{"only"}, CorrectAnswer: 0}).Valid(), "needs at least two options")
}

func TestQuizAcceptsAnswers(t *testing.T) {
	now := time.Now()
	before := now.Add(-time.Minute)
	after := now.Add(time.Minute)

	open := &Quiz{Launched: true, StartsAt: &before, EndsAt: &after}
	assert.True(t, open.AcceptsAnswers(now))

	assert.False(t, (&Quiz{StartsAt: &before, EndsAt: &after}).AcceptsAnswers(now), "not launched")

	closed := &Quiz{Launched: true, Closed: true, StartsAt: &before, EndsAt: &after}
	assert.False(t, closed.AcceptsAnswers(now))

	ended := &Quiz{Launched: true, StartsAt: &before, EndsAt: &before}
	assert.False(t, ended.AcceptsAnswers(now))

	notStarted := &Quiz{Launched: true, StartsAt: &after, EndsAt: &after}
	assert.False(t, notStarted.AcceptsAnswers(now))

	noWindow := &Quiz{Launched: true}
	assert.True(t, noWindow.AcceptsAnswers(now), "nil bounds mean no time limit")
}
