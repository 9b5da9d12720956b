package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to EmailStatus
		want     bool
	}{
		{StatusPending, StatusSent, true},
		{StatusPending, StatusFailed, true},
		{StatusSent, StatusFailed, true},
		{StatusSent, StatusClicked, true},
		{StatusPending, StatusOpened, true},
		{StatusOpened, StatusSubmitted, true},
		{StatusClicked, StatusOpened, false},
		{StatusOpened, StatusOpened, false},
		{StatusSubmitted, StatusClicked, false},
		{StatusOpened, StatusFailed, false},
		{StatusFailed, StatusOpened, false},
		{StatusFailed, StatusSent, false},
		{StatusFailed, StatusFailed, false},
		{EmailStatus("bogus"), StatusSent, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestPredecessors(t *testing.T) {
	assert.Equal(t, []EmailStatus{StatusPending}, Predecessors(StatusSent))
	assert.Equal(t, []EmailStatus{StatusPending, StatusSent}, Predecessors(StatusOpened))
	assert.Equal(t, []EmailStatus{StatusPending, StatusSent, StatusOpened}, Predecessors(StatusClicked))
	assert.Equal(t, []EmailStatus{StatusPending, StatusSent}, Predecessors(StatusFailed))
	assert.Empty(t, Predecessors(StatusPending))
}

func TestInteractionKindStatus(t *testing.T) {
	assert.Equal(t, StatusOpened, InteractionOpen.Status())
	assert.Equal(t, StatusClicked, InteractionClick.Status())
	assert.Equal(t, StatusSubmitted, InteractionSubmission.Status())
	assert.False(t, InteractionKind("email_open").Valid())
}

func TestCountStatuses(t *testing.T) {
	emails := []EmailRecord{
		{Status: StatusSent},
		{Status: StatusSent},
		{Status: StatusFailed},
		{Status: StatusClicked},
		{Status: StatusPending},
	}
	c := CountStatuses(emails)
	assert.Equal(t, 5, c.Total)
	assert.Equal(t, 2, c.Sent)
	assert.Equal(t, 1, c.Failed)
	assert.Equal(t, 1, c.Clicked)
	assert.Equal(t, 1, c.Pending)
	assert.Zero(t, c.Opened)
}
