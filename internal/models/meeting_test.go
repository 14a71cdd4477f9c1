package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var chain = []string{
	StatusRequesting, StatusJoining, StatusInSession, StatusLeaving, StatusEnded,
	StatusRecordingReady, StatusTranscribing, StatusQueued, StatusProcessing, StatusCompleted,
}

func TestStatusAdvances_Monotonic(t *testing.T) {
	for i, from := range chain {
		for j, to := range chain {
			got := StatusAdvances(from, to)
			if from == StatusCompleted {
				assert.False(t, got, "%s -> %s: completed is terminal", from, to)
				continue
			}
			assert.Equal(t, j > i, got, "%s -> %s", from, to)
		}
	}
}

func TestStatusAdvances_AbsorbingStates(t *testing.T) {
	for _, from := range chain[:len(chain)-1] {
		assert.True(t, StatusAdvances(from, StatusFailed), from)
		assert.True(t, StatusAdvances(from, StatusCancelled), from)
	}
	// Terminal states never move again.
	for _, from := range []string{StatusCompleted, StatusFailed, StatusCancelled} {
		assert.False(t, StatusAdvances(from, StatusFailed), from)
		assert.False(t, StatusAdvances(from, StatusQueued), from)
	}
}

func TestStatusesBefore(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{StatusRequesting, StatusJoining},
		StatusesBefore(StatusInSession))

	// The guard for completed is every chain state below it.
	assert.Len(t, StatusesBefore(StatusCompleted), len(chain)-1)

	// Failed is reachable from everything non-terminal.
	before := StatusesBefore(StatusFailed)
	assert.NotContains(t, before, StatusCompleted)
	assert.Len(t, before, len(chain)-1)

	assert.Empty(t, StatusesBefore(StatusRequesting), "nothing precedes the first state")
	assert.Nil(t, StatusesBefore("bogus"))
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusTerminal(StatusCompleted))
	assert.True(t, StatusTerminal(StatusFailed))
	assert.True(t, StatusTerminal(StatusCancelled))
	assert.False(t, StatusTerminal(StatusProcessing))
}
