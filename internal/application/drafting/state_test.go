package drafting

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

func fixedClock() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateFactsPending, StateFactsPending, true},
		{StateFactsPending, StateFactsOK, true},
		{StateFactsPending, StateLawSectionBuilt, false},
		{StateFactsOK, StateLawSectionBuilt, true},
		{StateLawSectionBuilt, StateCompensationPending, true},
		{StateLawSectionBuilt, StateFailed, false},
		{StateCalcTagsOK, StateSummaryPending, true},
		{StateSummaryPending, StateDone, true},
		{StateDone, StateFactsPending, false},
		{StateFailed, StateFactsPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestMachine_RecordsEveryMove(t *testing.T) {
	m := newMachine(fixedClock)
	v := Verdict{Passed: true}

	require.NoError(t, m.move(StateFactsPending, Event{Stage: StageFacts, Attempt: 1, Verdict: &v}))
	require.NoError(t, m.move(StateFactsOK, Event{Stage: StageFacts}))

	assert.Equal(t, StateFactsOK, m.state)
	require.Len(t, m.trace.Events, 2)
	assert.Equal(t, StateFactsPending, m.trace.Events[0].From)
	assert.Equal(t, StateFactsOK, m.trace.Final())
	assert.Equal(t, fixedClock(), m.trace.Events[1].At)
	assert.Len(t, m.trace.Attempts(StageFacts), 1)
}

func TestMachine_RejectsIllegalMove(t *testing.T) {
	m := newMachine(fixedClock)
	err := m.move(StateDone, Event{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeInvalidTransition))
	assert.Equal(t, StateFactsPending, m.state)
	assert.Empty(t, m.trace.Events)
}

func TestMachine_Fail(t *testing.T) {
	m := newMachine(fixedClock)
	m.fail(StageFacts, errors.New("llm down"))
	assert.Equal(t, StateFailed, m.state)
	assert.Equal(t, "llm down", m.trace.Events[0].Note)

	// terminal states stay put
	m.fail(StageFacts, errors.New("again"))
	assert.Len(t, m.trace.Events, 1)

	m = newMachine(fixedClock)
	require.NoError(t, m.move(StateFactsOK, Event{}))
	require.NoError(t, m.move(StateLawSectionBuilt, Event{}))
	m.fail(StageLawSection, errors.New("x"))
	assert.Equal(t, StateLawSectionBuilt, m.state)
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateSummaryPending.Terminal())
}
