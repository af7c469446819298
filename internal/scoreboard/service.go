// Package scoreboard provides the HTTP API and service layer of the scoring
// service.
package scoreboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fentz26/reflex/internal/audit"
	"github.com/fentz26/reflex/internal/models"
	"github.com/fentz26/reflex/internal/store"
)

// Service provides the scoreboard business logic.
type Service struct {
	store  *store.Store
	audit  *audit.Writer
	logger zerolog.Logger
}

// NewService creates a new scoreboard service.
func NewService(s *store.Store, w *audit.Writer, logger zerolog.Logger) *Service {
	return &Service{
		store:  s,
		audit:  w,
		logger: logger,
	}
}

// ScoreUpdate is the result of UpdateScore.
type ScoreUpdate struct {
	User     *models.User
	Improved bool
}

// Register creates a new user.
func (s *Service) Register(username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}

	user, err := s.store.CreateUser(username)
	if errors.Is(err, store.ErrUsernameTaken) {
		s.record("user.register", map[string]string{"username": username}, audit.OutcomeRejected, username, "duplicate")
		return nil, ErrUserExists
	}
	if err != nil {
		s.record("user.register", map[string]string{"username": username}, audit.OutcomeError, username, err.Error())
		return nil, err
	}

	s.record("user.register", map[string]string{"username": username}, audit.OutcomeSuccess, username, "")
	s.logger.Info().Str("username", username).Msg("user registered")
	return user, nil
}

// Login returns the stored user for username.
func (s *Service) Login(username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}

	user, err := s.store.GetUser(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateScore records a session average in milliseconds, keeping the lowest.
func (s *Service) UpdateScore(username string, timeMs float64) (*ScoreUpdate, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if timeMs <= 0 || math.IsNaN(timeMs) || math.IsInf(timeMs, 0) {
		return nil, ErrInvalidTime
	}

	inputs := map[string]any{"username": username, "reactionTime": timeMs}
	user, improved, err := s.store.RecordScore(username, timeMs)
	if errors.Is(err, store.ErrUserNotFound) {
		s.record("score.update", inputs, audit.OutcomeRejected, username, "unknown user")
		return nil, ErrUserNotFound
	}
	if err != nil {
		s.record("score.update", inputs, audit.OutcomeError, username, err.Error())
		return nil, err
	}

	s.record("score.update", inputs, audit.OutcomeSuccess, username, fmt.Sprintf("improved=%t", improved))
	s.logger.Info().
		Str("username", username).
		Float64("reaction_ms", timeMs).
		Bool("improved", improved).
		Msg("score updated")
	return &ScoreUpdate{User: user, Improved: improved}, nil
}

// ListAudit returns the audit trail for username, newest first. An empty
// username lists every entry.
func (s *Service) ListAudit(username string) ([]models.AuditEntry, error) {
	return s.store.ListAudit(strings.TrimSpace(username))
}

// Ping checks the backing database.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// record writes an audit entry; a failed write is logged and never fails the
// request.
func (s *Service) record(action string, inputs any, outcome, username, details string) {
	if _, err := s.audit.Record(action, inputs, outcome, username, details); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to write audit entry")
	}
}
