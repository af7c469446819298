// Package trial implements the reaction-time trial state machine.
package trial

import "time"

// TrialsPerSession is the number of reactions that make up one session.
const TrialsPerSession = 3

// Phase is the current step of a trial.
type Phase int

const (
	// PhaseIdle accepts a trigger to arm the next trial.
	PhaseIdle Phase = iota
	// PhaseWaiting has the stimulus timer armed; a trigger here is a false start.
	PhaseWaiting
	// PhaseReady has the stimulus showing; a trigger here records a reaction.
	PhaseReady
	// PhaseGameOver holds a finished session until Reset.
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWaiting:
		return "waiting"
	case PhaseReady:
		return "ready"
	case PhaseGameOver:
		return "gameover"
	default:
		return "unknown"
	}
}

// Session is a copy of the machine state at one instant.
type Session struct {
	Phase Phase
	// StimulusAt is zero unless Phase is PhaseReady.
	StimulusAt time.Time
	// TimerPending reports whether a stimulus timer is armed.
	TimerPending bool
	// Times holds the completed reactions in trial order.
	Times []time.Duration
}

// SessionResult is the aggregate of a finished session.
type SessionResult struct {
	Times   [TrialsPerSession]time.Duration
	Average time.Duration
}

func newSessionResult(times []time.Duration) SessionResult {
	var r SessionResult
	var sum time.Duration
	for i, t := range times {
		r.Times[i] = t
		sum += t
	}
	r.Average = sum / TrialsPerSession
	return r
}

// AverageMillis returns the average as fractional milliseconds.
func (r SessionResult) AverageMillis() float64 {
	return Millis(r.Average)
}

// Millis converts a duration to fractional milliseconds, the unit used on the wire.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FromMillis converts fractional milliseconds back to a duration.
func FromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// OutcomeKind classifies the result of a trigger.
type OutcomeKind int

const (
	OutcomeIgnored OutcomeKind = iota
	OutcomeArmed
	OutcomeFalseStart
	OutcomeTrialRecorded
	OutcomeSessionFinished
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeArmed:
		return "armed"
	case OutcomeFalseStart:
		return "false_start"
	case OutcomeTrialRecorded:
		return "trial_recorded"
	case OutcomeSessionFinished:
		return "session_finished"
	default:
		return "unknown"
	}
}

// Outcome is returned by Machine.HandleTrigger. Only the fields relevant to
// Kind are set.
type Outcome struct {
	Kind OutcomeKind
	// Delay is the stimulus delay drawn for an Armed outcome.
	Delay time.Duration
	// Reaction and Trial are set for TrialRecorded and SessionFinished.
	Reaction time.Duration
	Trial    int
	// Result is set for SessionFinished.
	Result *SessionResult
}

// DelayMillis returns Delay in whole milliseconds.
func (o Outcome) DelayMillis() int {
	return int(o.Delay / time.Millisecond)
}
