package drafting

import (
	"time"

	pkgerrors "github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// State is a node of the drafting state machine.
type State string

const (
	StateFactsPending        State = "FACTS_PENDING"
	StateFactsOK             State = "FACTS_OK"
	StateLawSectionBuilt     State = "LAW_SECTION_BUILT"
	StateCompensationPending State = "COMPENSATION_PENDING"
	StateCompensationOK      State = "COMPENSATION_OK"
	StateCalcTagsPending     State = "CALC_TAGS_PENDING"
	StateCalcTagsOK          State = "CALC_TAGS_OK"
	StateSummaryPending      State = "SUMMARY_PENDING"
	StateDone                State = "DONE"
	StateFailed              State = "FAILED"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// transitions lists the legal successors of every state. Pending states
// loop on themselves once per attempt.
var transitions = map[State][]State{
	StateFactsPending:        {StateFactsPending, StateFactsOK, StateFailed},
	StateFactsOK:             {StateLawSectionBuilt, StateFailed},
	StateLawSectionBuilt:     {StateCompensationPending},
	StateCompensationPending: {StateCompensationPending, StateCompensationOK, StateFailed},
	StateCompensationOK:      {StateCalcTagsPending},
	StateCalcTagsPending:     {StateCalcTagsPending, StateCalcTagsOK, StateFailed},
	StateCalcTagsOK:          {StateSummaryPending},
	StateSummaryPending:      {StateSummaryPending, StateDone, StateFailed},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Stage names a generation step.
type Stage string

const (
	StageSummary      Stage = "case_summary"
	StageFacts        Stage = "facts"
	StageLawSection   Stage = "law_section"
	StageCompensation Stage = "compensation"
	StageCalcTags     Stage = "calc_tags"
	StageConclusion   Stage = "conclusion"
)

// Event is one recorded transition. Attempt events loop on a pending state
// and carry the verdict of that attempt.
type Event struct {
	From    State     `json:"from"`
	To      State     `json:"to"`
	Stage   Stage     `json:"stage"`
	Attempt int       `json:"attempt,omitempty"`
	Verdict *Verdict  `json:"verdict,omitempty"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

// Trace is the ordered transition log of one run.
type Trace struct {
	Events []Event `json:"events"`
}

// Attempts returns the attempt events of stage.
func (t *Trace) Attempts(stage Stage) []Event {
	var out []Event
	for _, e := range t.Events {
		if e.Stage == stage && e.Attempt > 0 {
			out = append(out, e)
		}
	}
	return out
}

// Final is the state reached by the last event, or "" for an empty trace.
func (t *Trace) Final() State {
	if len(t.Events) == 0 {
		return ""
	}
	return t.Events[len(t.Events)-1].To
}

// machine enforces the transition table and appends every move to trace.
type machine struct {
	state State
	trace *Trace
	now   func() time.Time
}

func newMachine(now func() time.Time) *machine {
	return &machine{state: StateFactsPending, trace: &Trace{}, now: now}
}

func (m *machine) move(to State, ev Event) error {
	if !CanTransition(m.state, to) {
		return pkgerrors.Newf(pkgerrors.ErrCodeInvalidTransition, "illegal transition %s -> %s", m.state, to)
	}
	ev.From, ev.To, ev.At = m.state, to, m.now().UTC()
	m.trace.Events = append(m.trace.Events, ev)
	m.state = to
	return nil
}

// fail moves to FAILED when the current state allows it.
func (m *machine) fail(stage Stage, cause error) {
	if m.state.Terminal() || !CanTransition(m.state, StateFailed) {
		return
	}
	_ = m.move(StateFailed, Event{Stage: stage, Note: cause.Error()})
}
