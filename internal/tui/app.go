// Package tui provides the interactive reaction-time game.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/fentz26/reflex/internal/reporter"
	"github.com/fentz26/reflex/internal/trial"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	idleColor    = lipgloss.Color("#2563EB")
	waitColor    = lipgloss.Color("#EF4444")
	goColor      = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	successColor = lipgloss.Color("#10B981")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	restartStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(fgColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)
)

const (
	modeGame    = "game"
	modeAccount = "account"

	msgStart      = "Press SPACE or TAP to start"
	msgWait       = "Wait for green..."
	msgGo         = "GO!"
	msgFalseStart = "Too soon! Press SPACE or TAP to try again"
)

// App is the game's bubbletea model.
type App struct {
	machine  *trial.Machine
	clock    clockwork.Clock
	client   *reporter.Client
	reporter *reporter.Reporter
	logger   zerolog.Logger

	input  textinput.Model
	mode   string
	width  int
	height int

	message      string
	status       string
	lastReaction *time.Duration
	result       *trial.SessionResult
	identity     *reporter.Identity
}

// New creates the game. clock drives both the stimulus timer and the
// timestamps of triggers.
func New(client *reporter.Client, logger zerolog.Logger, clock clockwork.Clock) *App {
	ti := textinput.New()
	ti.Placeholder = "Enter username (optional)"
	ti.CharLimit = 64
	ti.Width = 40

	machine := trial.NewMachine(
		trial.WithClock(clock),
		trial.WithLogger(logger.With().Str("component", "trial").Logger()),
	)

	return &App{
		machine:  machine,
		clock:    clock,
		client:   client,
		reporter: reporter.New(client, logger.With().Str("component", "reporter").Logger()),
		logger:   logger,
		input:    ti,
		mode:     modeGame,
		message:  msgStart,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithMouseCellMotion())
	a.machine.OnStimulus(func(at time.Time) {
		p.Send(stimulusMsg{at: at})
	})
	defer a.machine.Stop()

	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.MouseMsg:
		if a.mode == modeGame && msg.Type == tea.MouseLeft {
			a.trigger()
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = min(40, max(10, msg.Width-8))

	case stimulusMsg:
		if a.machine.Phase() == trial.PhaseReady {
			a.message = msgGo
		}

	case loginResultMsg:
		a.handleLogin(msg)

	case registerResultMsg:
		a.handleRegister(msg)

	case submitResultMsg:
		a.handleSubmit(msg.outcome)
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "tab":
		if a.mode == modeGame {
			a.mode = modeAccount
			return a, a.input.Focus()
		}
		a.mode = modeGame
		a.input.Blur()
		return a, nil
	}

	if a.mode == modeAccount {
		return a.handleAccountKey(msg)
	}

	switch msg.String() {
	case " ":
		a.trigger()
	case "enter":
		return a, a.restart()
	case "q":
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) handleAccountKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = modeGame
		a.input.Blur()
		return a, nil
	case "enter":
		return a, a.login(a.input.Value())
	case "ctrl+r":
		return a, a.register(a.input.Value())
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// trigger delivers one activation to the machine and updates the display.
func (a *App) trigger() {
	out := a.machine.HandleTrigger(a.clock.Now())

	switch out.Kind {
	case trial.OutcomeArmed:
		a.message = msgWait
		a.lastReaction = nil
	case trial.OutcomeFalseStart:
		a.message = msgFalseStart
	case trial.OutcomeTrialRecorded:
		a.lastReaction = &out.Reaction
		a.message = fmt.Sprintf("Run %d/%d done. Press SPACE or TAP for next.", out.Trial, trial.TrialsPerSession)
	case trial.OutcomeSessionFinished:
		a.lastReaction = &out.Reaction
		a.result = out.Result
		a.message = fmt.Sprintf("Average: %.2f ms", out.Result.AverageMillis())
	}
}

// restart resets a finished session and hands its result to the reporter in
// the background.
func (a *App) restart() tea.Cmd {
	if a.machine.Phase() != trial.PhaseGameOver || a.result == nil {
		return nil
	}
	result := *a.result

	if err := a.machine.Reset(); err != nil {
		a.logger.Error().Err(err).Msg("reset failed")
		return nil
	}
	a.result = nil
	a.lastReaction = nil
	a.message = msgStart

	var id *reporter.Identity
	if a.identity != nil {
		snapshot := *a.identity
		id = &snapshot
	}
	return a.submit(result, id)
}

func (a *App) submit(result trial.SessionResult, id *reporter.Identity) tea.Cmd {
	return func() tea.Msg {
		return submitResultMsg{outcome: a.reporter.Submit(context.Background(), result, id)}
	}
}

func (a *App) login(username string) tea.Cmd {
	if a.identity.Authenticated() {
		a.status = fmt.Sprintf("Already logged in as %s", a.identity.Username)
		return nil
	}
	if strings.TrimSpace(username) == "" {
		a.status = "Error: " + reporter.ErrEmptyUsername.Error()
		return nil
	}
	return func() tea.Msg {
		id, err := a.client.Login(context.Background(), username)
		return loginResultMsg{identity: id, err: err}
	}
}

func (a *App) register(username string) tea.Cmd {
	if a.identity.Authenticated() {
		a.status = fmt.Sprintf("Already logged in as %s", a.identity.Username)
		return nil
	}
	if strings.TrimSpace(username) == "" {
		a.status = "Error: " + reporter.ErrEmptyUsername.Error()
		return nil
	}
	return func() tea.Msg {
		err := a.client.Register(context.Background(), username)
		return registerResultMsg{username: strings.TrimSpace(username), err: err}
	}
}

func (a *App) handleLogin(msg loginResultMsg) {
	switch {
	case errors.Is(msg.err, reporter.ErrUserNotFound):
		a.status = "Error: User not found. Please register first."
	case msg.err != nil:
		a.logger.Error().Err(msg.err).Msg("login failed")
		a.status = "Error: " + msg.err.Error()
	default:
		a.identity = msg.identity
		a.mode = modeGame
		a.input.Blur()
		a.status = fmt.Sprintf("Logged in! Your best time: %s", formatBest(a.identity.BestTime))
	}
}

func (a *App) handleRegister(msg registerResultMsg) {
	if msg.err != nil {
		var se *reporter.ServiceError
		if errors.As(msg.err, &se) {
			a.status = "Error: " + se.Message
		} else {
			a.logger.Error().Err(msg.err).Msg("register failed")
			a.status = "Error: " + msg.err.Error()
		}
		return
	}
	a.status = fmt.Sprintf("User %s registered! Now log in.", msg.username)
}

func (a *App) handleSubmit(out reporter.SubmitOutcome) {
	switch out.Kind {
	case reporter.SubmitNewBest:
		if a.identity != nil {
			best := out.Best
			a.identity.BestTime = &best
		}
		a.status = fmt.Sprintf("New best time: %s", formatBest(&out.Best))
	case reporter.SubmitNoImprovement:
		a.status = "Score saved."
	case reporter.SubmitFailed:
		a.status = "Error: failed to send score: " + out.Err.Error()
	}
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	header := titleStyle.Render("⚡ REFLEX")
	if a.identity.Authenticated() {
		header += "  " + lipgloss.NewStyle().Foreground(successColor).Render(fmt.Sprintf("● %s", a.identity.Username))
		header += "  " + lipgloss.NewStyle().Foreground(mutedColor).Render("Best Time: "+formatBest(a.identity.BestTime))
	} else {
		header += "  " + lipgloss.NewStyle().Foreground(mutedColor).Render("○ playing anonymously")
	}
	b.WriteString(header + "\n")

	if a.mode == modeAccount {
		b.WriteString(inputBoxStyle.Render(a.input.View()) + "\n")
		b.WriteString(helpStyle.Render("  enter: login | ctrl+r: register | esc: back") + "\n")
	}

	b.WriteString(a.renderStimulus())

	// Message bar
	if a.status != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.status, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.status))
	}
	b.WriteString("\n")

	// Status bar
	var status string
	switch a.mode {
	case modeAccount:
		status = " Account | Tab:game | Ctrl+C:quit"
	default:
		status = " SPACE/click:react | Tab:account | q:quit"
	}
	b.WriteString(statusBarStyle.Width(max(a.width, lipgloss.Width(status)+2)).Render(status))

	return b.String()
}

func (a *App) renderStimulus() string {
	s := a.machine.Snapshot()

	lines := []string{a.message}
	if a.lastReaction != nil {
		lines = append(lines, fmt.Sprintf("Reaction Time: %d ms", a.lastReaction.Milliseconds()))
	}
	lines = append(lines, fmt.Sprintf("Runs: %d/%d", len(s.Times), trial.TrialsPerSession))
	if s.Phase == trial.PhaseGameOver {
		lines = append(lines, "", restartStyle.Render("Enter: Restart & Save Score"))
	}

	width := max(a.width, 40)
	height := max(a.height-6, 9)
	if a.mode == modeAccount {
		height = max(height-4, 9)
	}

	return lipgloss.NewStyle().
		Background(stimulusColor(s.Phase)).
		Foreground(fgColor).
		Bold(true).
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(strings.Join(lines, "\n"))
}

// stimulusColor maps a phase to the panel color.
func stimulusColor(p trial.Phase) lipgloss.Color {
	switch p {
	case trial.PhaseWaiting:
		return waitColor
	case trial.PhaseReady:
		return goColor
	default:
		return idleColor
	}
}

func formatBest(best *time.Duration) string {
	if best == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f ms", trial.Millis(*best))
}
