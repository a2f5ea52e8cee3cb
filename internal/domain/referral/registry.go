package referral

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrNilReferral = errors.New("referral is required")
	ErrNotFound    = errors.New("referral not found")
	ErrDuplicateID = errors.New("referral id already registered")
)

// idPrefix and counterSeed define the R<n> identifier space. The first
// generated id is R1001.
const (
	idPrefix    = "R"
	counterSeed = 1000
)

// Notifier renders a human-readable notice for a sent referral.
type Notifier interface {
	NotifyReferral(ctx context.Context, r *Referral) error
}

// Registry is the single authority for referral identity, status and audit
// history. The application constructs exactly one and hands it to every
// component that needs referrals.
type Registry struct {
	mu        sync.Mutex
	referrals []*Referral
	counter   int

	audit    *AuditLog
	notifier Notifier
	logger   zerolog.Logger
}

// NewRegistry returns an empty Registry. notifier may be nil, in which case
// sent referrals produce no notice.
func NewRegistry(notifier Notifier, logger zerolog.Logger) *Registry {
	logger = logger.With().Str("component", "referral_registry").Logger()
	logger.Debug().Msg("referral registry created")
	return &Registry{
		counter:  counterSeed,
		audit:    NewAuditLog(logger),
		notifier: notifier,
		logger:   logger,
	}
}

// Add registers a new referral. A referral without an id is given the next
// generated one; an id that is already registered is rejected.
func (g *Registry) Add(r *Referral) error {
	if r == nil {
		return ErrNilReferral
	}

	g.mu.Lock()
	if r.ID == "" {
		r.ID = g.nextIDLocked()
	} else if g.indexLocked(r.ID) >= 0 {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
	}
	if r.CreatedDate == "" {
		r.CreatedDate = today()
	}
	g.referrals = append(g.referrals, r)
	g.observeIDLocked(r.ID)
	g.mu.Unlock()

	g.audit.Record(ActionCreate, r.ID, "Added referral: "+r.ID)
	return nil
}

// Register inserts a referral read from storage, replacing any registered
// referral with the same id so that loading the same file twice is harmless.
// It reports whether an existing entry was replaced.
func (g *Registry) Register(r *Referral) (bool, error) {
	if r == nil {
		return false, ErrNilReferral
	}

	g.mu.Lock()
	i := g.indexLocked(r.ID)
	if i >= 0 {
		g.referrals[i] = r
	} else {
		g.referrals = append(g.referrals, r)
	}
	g.observeIDLocked(r.ID)
	g.mu.Unlock()

	if i >= 0 {
		g.audit.Record(ActionUpdate, r.ID, "Reloaded referral: "+r.ID)
		return true, nil
	}
	g.audit.Record(ActionCreate, r.ID, "Added referral: "+r.ID)
	return false, nil
}

// All returns a snapshot of the registered referrals in insertion order.
func (g *Registry) All() []*Referral {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Referral, len(g.referrals))
	copy(out, g.referrals)
	return out
}

func (g *Registry) Find(id string) (*Referral, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i := g.indexLocked(id); i >= 0 {
		return g.referrals[i], true
	}
	return nil, false
}

// Update replaces the referral registered under id. The replacement may
// carry a new id unless another referral already holds it.
func (g *Registry) Update(id string, updated *Referral) error {
	if updated == nil {
		return ErrNilReferral
	}

	g.mu.Lock()
	i := g.indexLocked(id)
	if i < 0 {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if updated.ID != id && g.indexLocked(updated.ID) >= 0 {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, updated.ID)
	}
	g.referrals[i] = updated
	g.observeIDLocked(updated.ID)
	g.mu.Unlock()

	g.audit.Record(ActionUpdate, id, "Updated referral: "+id)
	return nil
}

// Delete removes every referral registered under id.
func (g *Registry) Delete(id string) error {
	g.mu.Lock()
	kept := g.referrals[:0]
	for _, r := range g.referrals {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	removed := len(g.referrals) - len(kept)
	for i := len(kept); i < len(g.referrals); i++ {
		g.referrals[i] = nil
	}
	g.referrals = kept
	g.mu.Unlock()

	if removed == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	g.audit.Record(ActionDelete, id, "Deleted referral: "+id)
	return nil
}

// Accept transitions the registered referral to Accepted. It returns false
// when the referral is not in a state that can be accepted.
func (g *Registry) Accept(id string) (bool, error) {
	g.mu.Lock()
	i := g.indexLocked(id)
	if i < 0 {
		g.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ok := g.referrals[i].Accept()
	g.mu.Unlock()

	if ok {
		g.audit.Record(ActionUpdate, id, "Accepted referral: "+id)
	}
	return ok, nil
}

// Send marks the referral as sent, renders its notice and records the action.
// The referral does not have to be registered. A failing notifier is logged
// and does not fail the send.
func (g *Registry) Send(ctx context.Context, r *Referral) error {
	if r == nil {
		return ErrNilReferral
	}

	g.mu.Lock()
	r.Send()
	g.mu.Unlock()

	if g.notifier != nil {
		if err := g.notifier.NotifyReferral(ctx, r); err != nil {
			g.logger.Error().Err(err).Str("referral_id", r.ID).Msg("failed to render referral notice")
		}
	}
	g.audit.Record(ActionExecute, r.ID, "Sent referral: "+r.ID)
	return nil
}

// GenerateID returns the next referral identifier. Ids are never reused
// within a process and always sort after every R<n> id already registered.
func (g *Registry) GenerateID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextIDLocked()
}

func (g *Registry) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.referrals)
}

// AuditTrail returns a copy of every action recorded so far.
func (g *Registry) AuditTrail() []AuditEntry {
	return g.audit.Entries()
}

func (g *Registry) nextIDLocked() string {
	g.counter++
	return idPrefix + strconv.Itoa(g.counter)
}

// maxSequence is the largest referral number that moves the counter.
const maxSequence = math.MaxInt32

// observeIDLocked raises the counter past id when id is a well-formed R<n>
// with n below maxSequence.
func (g *Registry) observeIDLocked(id string) {
	if !strings.HasPrefix(id, idPrefix) {
		return
	}
	n, err := strconv.Atoi(id[len(idPrefix):])
	if err != nil || n < 0 || n >= maxSequence {
		return
	}
	if n > g.counter {
		g.counter = n
	}
}

func (g *Registry) indexLocked(id string) int {
	for i, r := range g.referrals {
		if r.ID == id {
			return i
		}
	}
	return -1
}
