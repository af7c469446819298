package tui

import (
	"time"

	"github.com/fentz26/reflex/internal/reporter"
)

// stimulusMsg is sent by the machine's stimulus hook.
type stimulusMsg struct {
	at time.Time
}

type loginResultMsg struct {
	identity *reporter.Identity
	err      error
}

type registerResultMsg struct {
	username string
	err      error
}

type submitResultMsg struct {
	outcome reporter.SubmitOutcome
}
