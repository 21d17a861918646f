// Package replay implements the state machine that layers backward
// navigation on top of a forward-only question/answer engine. After a
// back-navigation restart it decides, ask by ask, whether recorded answers
// can be served without user interaction or the live UI must take over.
// Fail-closed: any mismatch between a live question set and its recorded
// counterpart ends the replay instead of supplying stale answers.
package replay

import (
	"github.com/sushiljain1989/yeoman-ui/pkg/history"
	"github.com/sushiljain1989/yeoman-ui/pkg/prompt"
)

// State is the replay phase of the current session.
type State int

const (
	// StateIdle — no history is being replayed; every ask is live.
	StateIdle State = iota
	// StateReplaying — recorded answers are being fed back without user
	// interaction.
	StateReplaying
	// StateEndingReplay — the single transitional step past the replayed
	// prefix: asked live, pre-filled with any captured partial answers.
	StateEndingReplay
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReplaying:
		return "replaying"
	case StateEndingReplay:
		return "ending-replay"
	default:
		return "unknown"
	}
}

// Mode tells the orchestrator how to answer one ask.
type Mode int

const (
	// ModeLive — forward the question set to the UI as-is.
	ModeLive Mode = iota
	// ModeServeRecorded — return the recorded answers, no UI round trip.
	ModeServeRecorded
	// ModeLiveSeeded — forward to the UI pre-filled with partial answers
	// captured when the user navigated back.
	ModeLiveSeeded
)

// Decision is the outcome of consulting the machine for one ask.
type Decision struct {
	Mode   Mode
	Record prompt.StepRecord // set for ModeServeRecorded
	Seed   prompt.Answers    // set for ModeLiveSeeded
}

// Machine tracks the replay phase across asks and restarts. It persists
// across engine restarts triggered by back-navigation — only a fresh
// generator selection resets it.
type Machine struct {
	state   State
	pending prompt.Answers // partial answers for the step the user left
}

// New creates a machine in the idle state.
func New() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current replay phase.
func (m *Machine) State() State {
	return m.state
}

// Begin enters the replaying phase. partial holds the answers the user had
// already filled in on the step being left; they are merged into the step
// the user lands on once replay catches up.
func (m *Machine) Begin(partial prompt.Answers) {
	m.state = StateReplaying
	m.pending = partial.Clone()
}

// Reset returns the machine to idle and drops pending partial answers.
// Called on fresh generator selection, never on back-navigation.
func (m *Machine) Reset() {
	m.state = StateIdle
	m.pending = nil
}

// Decide inspects the recorded history for the step about to be asked.
// position is the dense step position within the logical session (equal to
// the number of non-empty asks already answered this run), questions the
// live question set the engine just produced.
//
// While replaying, a recorded step is served only when the live step still
// matches it: same position, same derived step name and name-for-name equal
// question sets. A missing record means replay caught up with the target
// step; a mismatched one means the conversation diverged (an earlier answer
// changed the engine's branching). Both end the replay the same way.
func (m *Machine) Decide(buf *history.Buffer, position int, questions []prompt.Question) Decision {
	switch m.state {
	case StateReplaying:
		rec, ok := buf.RecordedAt(position)
		if ok && matches(rec, questions, position) {
			return Decision{Mode: ModeServeRecorded, Record: rec}
		}
		// Ending the replay: anything still recorded at or past this
		// position belongs to the pre-rewind conversation and can no
		// longer be reached. A no-op in the caught-up case, where the
		// buffer already ends here.
		buf.Truncate(position)
		m.state = StateEndingReplay
		return Decision{Mode: ModeLiveSeeded, Seed: m.pending}
	case StateEndingReplay:
		return Decision{Mode: ModeLiveSeeded, Seed: m.pending}
	default:
		return Decision{Mode: ModeLive}
	}
}

// StepDone marks one ask as completed. The transitional ending-replay step
// returns the machine to idle and releases the pending partial answers.
func (m *Machine) StepDone() {
	if m.state == StateEndingReplay {
		m.state = StateIdle
		m.pending = nil
	}
}

// matches applies the replay matching rule between a recorded step and the
// live question set at the same position.
func matches(rec prompt.StepRecord, questions []prompt.Question, position int) bool {
	if rec.Name != prompt.StepName(questions, position) {
		return false
	}
	return prompt.SameQuestionNames(rec.Questions, questions)
}
