package trial

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Machine runs one game session: arm, wait, react, three times over.
//
// HandleTrigger and Reset are called by a single owner. The stimulus timer
// fires on its own goroutine, so all three entry points share one mutex, and a
// generation counter captured when the timer is armed makes a fire that lost
// the race against a false start inert.
type Machine struct {
	mu sync.Mutex

	phase      Phase
	stimulusAt time.Time
	timer      clockwork.Timer
	generation uint64
	times      []time.Duration

	clock      clockwork.Clock
	delays     DelayRange
	logger     zerolog.Logger
	onStimulus func(at time.Time)
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the clock used to arm the stimulus timer and stamp its firing.
func WithClock(c clockwork.Clock) Option {
	return func(m *Machine) {
		m.clock = c
	}
}

// WithDelayRange overrides the stimulus delay range.
func WithDelayRange(r DelayRange) Option {
	return func(m *Machine) {
		m.delays = r
	}
}

// WithLogger sets the logger for the machine.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// WithStimulusHook sets a callback invoked after the machine enters PhaseReady.
func WithStimulusHook(fn func(at time.Time)) Option {
	return func(m *Machine) {
		m.onStimulus = fn
	}
}

// NewMachine creates a machine in PhaseIdle with no recorded times.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		phase:  PhaseIdle,
		times:  make([]time.Duration, 0, TrialsPerSession),
		clock:  clockwork.NewRealClock(),
		delays: DefaultDelayRange(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnStimulus sets the stimulus callback. Can be called after NewMachine but
// before the first trigger.
func (m *Machine) OnStimulus(fn func(at time.Time)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStimulus = fn
}

// HandleTrigger applies one activation at instant now.
func (m *Machine) HandleTrigger(now time.Time) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseIdle:
		return m.arm()
	case PhaseWaiting:
		return m.falseStart()
	case PhaseReady:
		return m.react(now)
	default:
		m.logger.Debug().Str("phase", m.phase.String()).Msg("trigger ignored")
		return Outcome{Kind: OutcomeIgnored}
	}
}

func (m *Machine) arm() Outcome {
	delay := m.delays.Draw()
	m.generation++
	gen := m.generation
	m.timer = m.clock.AfterFunc(delay, func() {
		m.onStimulusFire(gen, m.clock.Now())
	})
	m.phase = PhaseWaiting

	m.logger.Debug().Dur("delay", delay).Uint64("generation", gen).Msg("stimulus armed")
	return Outcome{Kind: OutcomeArmed, Delay: delay}
}

func (m *Machine) falseStart() Outcome {
	m.cancelTimer()
	m.phase = PhaseIdle

	m.logger.Info().Int("completed", len(m.times)).Msg("false start")
	return Outcome{Kind: OutcomeFalseStart}
}

func (m *Machine) react(now time.Time) Outcome {
	reaction := now.Sub(m.stimulusAt)
	if reaction < 0 {
		panic(fmt.Sprintf("trial: trigger at %s precedes stimulus at %s", now, m.stimulusAt))
	}
	m.times = append(m.times, reaction)
	m.stimulusAt = time.Time{}
	trial := len(m.times)

	m.logger.Info().Dur("reaction", reaction).Int("trial", trial).Msg("reaction recorded")

	if trial == TrialsPerSession {
		result := newSessionResult(m.times)
		m.phase = PhaseGameOver
		m.logger.Info().Dur("average", result.Average).Msg("session finished")
		return Outcome{
			Kind:     OutcomeSessionFinished,
			Reaction: reaction,
			Trial:    trial,
			Result:   &result,
		}
	}

	m.phase = PhaseIdle
	return Outcome{Kind: OutcomeTrialRecorded, Reaction: reaction, Trial: trial}
}

// cancelTimer stops the pending timer and invalidates its generation. Caller
// holds mu.
func (m *Machine) cancelTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.generation++
}

// onStimulusFire is the timer callback. It only takes effect while the
// machine is still waiting on the timer that was armed with gen.
func (m *Machine) onStimulusFire(gen uint64, now time.Time) {
	m.mu.Lock()
	if m.phase != PhaseWaiting || gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug().Uint64("generation", gen).Msg("stale stimulus fire dropped")
		return
	}
	m.timer = nil
	m.stimulusAt = now
	m.phase = PhaseReady
	hook := m.onStimulus
	m.mu.Unlock()

	m.logger.Debug().Time("at", now).Msg("stimulus fired")
	if hook != nil {
		hook(now)
	}
}

// Reset clears a finished session. Outside PhaseGameOver it is a contract
// violation: the state is left untouched and ErrResetNotGameOver is returned.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseGameOver {
		m.logger.Warn().Str("phase", m.phase.String()).Msg("reset outside game over")
		return fmt.Errorf("%w (phase %s)", ErrResetNotGameOver, m.phase)
	}
	m.times = m.times[:0]
	m.phase = PhaseIdle
	return nil
}

// Stop cancels any pending stimulus and returns the machine to PhaseIdle if
// it was waiting. Recorded times are kept.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseWaiting {
		m.cancelTimer()
		m.phase = PhaseIdle
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Snapshot returns a copy of the session state.
func (m *Machine) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	times := make([]time.Duration, len(m.times))
	copy(times, m.times)
	return Session{
		Phase:        m.phase,
		StimulusAt:   m.stimulusAt,
		TimerPending: m.timer != nil,
		Times:        times,
	}
}
