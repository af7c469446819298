// Package audit records state-changing scoreboard actions.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/reflex/internal/models"
	"github.com/fentz26/reflex/internal/store"
)

// Outcomes recorded with each entry.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Writer writes audit entries for scoreboard actions.
type Writer struct {
	store *store.Store
}

// NewWriter creates a new audit writer.
func NewWriter(s *store.Store) *Writer {
	return &Writer{store: s}
}

// Record writes an entry for action. Inputs are stored only as a hash.
func (w *Writer) Record(action string, inputs any, outcome, username, details string) (*models.AuditEntry, error) {
	return w.store.WriteAudit(action, hashInputs(inputs), outcome, username, details)
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs any) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
