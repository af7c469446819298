// Package models defines the domain types stored by the scoring service.
package models

import "time"

// User is a registered player.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	// BestTimeMs is the lowest session average in milliseconds, nil until the
	// first score arrives.
	BestTimeMs *float64  `json:"reactionTime"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AuditEntry records a state-changing action taken by the scoring service.
type AuditEntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	Username   string    `json:"username,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
