package reporter

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fentz26/reflex/internal/trial"
)

// Identity is a logged-in account as seen by the client.
type Identity struct {
	Username string
	// BestTime is nil until the account has a recorded average.
	BestTime *time.Duration
	LoggedIn bool
}

// Authenticated reports whether scores may be attached to this identity.
func (id *Identity) Authenticated() bool {
	return id != nil && id.LoggedIn && id.Username != ""
}

// SubmitKind classifies a submission outcome.
type SubmitKind int

const (
	SubmitSkipped SubmitKind = iota
	SubmitNewBest
	SubmitNoImprovement
	SubmitFailed
)

func (k SubmitKind) String() string {
	switch k {
	case SubmitSkipped:
		return "skipped"
	case SubmitNewBest:
		return "new_best"
	case SubmitNoImprovement:
		return "no_improvement"
	case SubmitFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SubmitOutcome is the result of Reporter.Submit.
type SubmitOutcome struct {
	Kind SubmitKind
	// Best is the new best average for SubmitNewBest.
	Best time.Duration
	// Err is set for SubmitFailed.
	Err error
}

// Scorer is the part of the scoring service the reporter needs.
type Scorer interface {
	UpdateScore(ctx context.Context, username string, average time.Duration) (*UpdateAck, error)
}

// Reporter decides whether a finished session is sent to the scoring service.
type Reporter struct {
	scorer Scorer
	logger zerolog.Logger
}

// New creates a reporter.
func New(scorer Scorer, logger zerolog.Logger) *Reporter {
	return &Reporter{scorer: scorer, logger: logger}
}

// Submit sends result for id. Anonymous sessions are skipped without a
// request; failures are returned as SubmitFailed and never retried.
func (r *Reporter) Submit(ctx context.Context, result trial.SessionResult, id *Identity) SubmitOutcome {
	if !id.Authenticated() {
		r.logger.Debug().Msg("score not submitted: anonymous session")
		return SubmitOutcome{Kind: SubmitSkipped}
	}

	ack, err := r.scorer.UpdateScore(ctx, id.Username, result.Average)
	if err != nil {
		r.logger.Error().Err(err).Str("username", id.Username).Msg("failed to send score")
		return SubmitOutcome{Kind: SubmitFailed, Err: err}
	}

	r.logger.Info().
		Str("username", id.Username).
		Dur("average", result.Average).
		Str("ack", ack.Message).
		Msg("score submitted")

	if id.BestTime == nil || result.Average < *id.BestTime {
		return SubmitOutcome{Kind: SubmitNewBest, Best: result.Average}
	}
	return SubmitOutcome{Kind: SubmitNoImprovement}
}
