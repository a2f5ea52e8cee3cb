package referral

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Audit action codes, following the FHIR AuditEvent action vocabulary.
const (
	ActionCreate  = "C"
	ActionUpdate  = "U"
	ActionDelete  = "D"
	ActionExecute = "E"
)

// AuditEntry is one action taken against the referral registry.
type AuditEntry struct {
	ID          uuid.UUID `json:"id"`
	Recorded    time.Time `json:"recorded"`
	Action      string    `json:"action"`
	ReferralID  string    `json:"referral_id"`
	Description string    `json:"description"`
}

// AuditLog is an append-only, in-memory trail of registry actions. Entries are
// mirrored to the structured logger as they are recorded; the log itself is
// not persisted and is lost when the process exits.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	logger  zerolog.Logger
}

// NewAuditLog creates an empty AuditLog that mirrors entries to logger.
func NewAuditLog(logger zerolog.Logger) *AuditLog {
	return &AuditLog{logger: logger}
}

// Record appends an entry and returns it.
func (l *AuditLog) Record(action, referralID, description string) AuditEntry {
	e := AuditEntry{
		ID:          uuid.New(),
		Recorded:    time.Now().UTC(),
		Action:      action,
		ReferralID:  referralID,
		Description: description,
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	l.logger.Info().
		Str("audit_id", e.ID.String()).
		Str("action", e.Action).
		Str("referral_id", e.ReferralID).
		Time("recorded", e.Recorded).
		Msg(e.Description)
	return e
}

// Entries returns a copy of the trail in recording order.
func (l *AuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded entries.
func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
