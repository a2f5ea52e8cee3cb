package referral

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// -- Mock Notifier --

type mockNotifier struct {
	mu   sync.Mutex
	sent []*Referral
	err  error
}

func (m *mockNotifier) NotifyReferral(_ context.Context, r *Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, r)
	return m.err
}

func newTestRegistry() (*Registry, *mockNotifier) {
	n := &mockNotifier{}
	return NewRegistry(n, zerolog.Nop()), n
}

func seeded(id string) *Referral {
	r := New()
	r.ID = id
	r.PatientID = "P001"
	return r
}

func TestRegistry_GenerateID_StartsAfterSeed(t *testing.T) {
	g, _ := newTestRegistry()
	if got := g.GenerateID(); got != "R1001" {
		t.Errorf("first id = %q, want R1001", got)
	}
	if got := g.GenerateID(); got != "R1002" {
		t.Errorf("second id = %q, want R1002", got)
	}
}

func TestRegistry_Add(t *testing.T) {
	g, _ := newTestRegistry()

	if err := g.Add(nil); !errors.Is(err, ErrNilReferral) {
		t.Fatalf("expected ErrNilReferral, got %v", err)
	}

	r := New()
	if err := g.Add(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ID != "R1001" {
		t.Errorf("expected generated id R1001, got %q", r.ID)
	}
	if r.CreatedDate == "" {
		t.Error("expected created date to be stamped")
	}
	if g.Count() != 1 {
		t.Errorf("expected 1 referral, got %d", g.Count())
	}

	dup := seeded("R1001")
	if err := g.Add(dup); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if g.Count() != 1 {
		t.Errorf("duplicate add changed the count to %d", g.Count())
	}

	trail := g.AuditTrail()
	if len(trail) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(trail))
	}
	if trail[0].Action != ActionCreate || trail[0].ReferralID != "R1001" {
		t.Errorf("unexpected audit entry %+v", trail[0])
	}
}

func TestRegistry_Register_IsDuplicateSafe(t *testing.T) {
	g, _ := newTestRegistry()

	first := seeded("R1005")
	replaced, err := g.Register(first)
	if err != nil || replaced {
		t.Fatalf("Register() = %v, %v; want false, nil", replaced, err)
	}

	again := seeded("R1005")
	again.Notes = "reloaded"
	replaced, err = g.Register(again)
	if err != nil || !replaced {
		t.Fatalf("Register() = %v, %v; want true, nil", replaced, err)
	}

	if g.Count() != 1 {
		t.Fatalf("expected 1 referral after reload, got %d", g.Count())
	}
	got, _ := g.Find("R1005")
	if got.Notes != "reloaded" {
		t.Errorf("expected reloaded copy to win, got notes %q", got.Notes)
	}
}

func TestRegistry_CounterSeededFromRegisteredIDs(t *testing.T) {
	g, _ := newTestRegistry()
	for _, id := range []string{"R1003", "R1010", "RXYZ", "legacy-7"} {
		if _, err := g.Register(seeded(id)); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}
	if got := g.GenerateID(); got != "R1011" {
		t.Errorf("GenerateID() = %q, want R1011", got)
	}

	// ids below the seed never pull the counter backwards
	g2, _ := newTestRegistry()
	g2.Register(seeded("R0007"))
	if got := g2.GenerateID(); got != "R1001" {
		t.Errorf("GenerateID() = %q, want R1001", got)
	}
}

func TestRegistry_OversizedIDDoesNotOverflowCounter(t *testing.T) {
	g, _ := newTestRegistry()
	g.Register(seeded("R1004"))
	g.Register(seeded("R9223372036854775807"))
	g.Register(seeded("R2147483647"))

	if got := g.GenerateID(); got != "R1005" {
		t.Errorf("GenerateID() = %q, want R1005", got)
	}
}

func TestRegistry_Find(t *testing.T) {
	g, _ := newTestRegistry()
	g.Add(seeded("R2000"))

	if r, ok := g.Find("R2000"); !ok || r.ID != "R2000" {
		t.Errorf("Find(R2000) = %v, %v", r, ok)
	}
	if r, ok := g.Find("R9999"); ok || r != nil {
		t.Errorf("Find(R9999) = %v, %v; want nil, false", r, ok)
	}
}

func TestRegistry_Update(t *testing.T) {
	g, _ := newTestRegistry()
	g.Add(seeded("R2000"))
	g.Add(seeded("R2001"))

	repl := seeded("R2000")
	repl.Reason = "cardiology review"
	if err := g.Update("R2000", repl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := g.Find("R2000")
	if got.Reason != "cardiology review" {
		t.Errorf("update not applied: %+v", got)
	}
	other, _ := g.Find("R2001")
	if other.Reason != "" {
		t.Errorf("update leaked into R2001: %+v", other)
	}

	if err := g.Update("R2001", seeded("R2000")); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if other, _ := g.Find("R2001"); other.ID != "R2001" {
		t.Errorf("rejected update replaced R2001: %+v", other)
	}
	if n := len(g.All()); n != 2 {
		t.Errorf("expected 2 referrals, got %d", n)
	}

	if err := g.Update("R404", seeded("R404")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := g.Update("R2000", nil); !errors.Is(err, ErrNilReferral) {
		t.Errorf("expected ErrNilReferral, got %v", err)
	}

	trail := g.AuditTrail()
	last := trail[len(trail)-1]
	if last.Action != ActionUpdate || last.ReferralID != "R2000" {
		t.Errorf("unexpected last audit entry %+v", last)
	}
}

func TestRegistry_Delete(t *testing.T) {
	g, _ := newTestRegistry()
	g.Add(seeded("R2000"))
	g.Add(seeded("R2001"))

	if err := g.Delete("R404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if g.Count() != 2 {
		t.Fatalf("failed delete changed the count to %d", g.Count())
	}
	auditBefore := len(g.AuditTrail())

	if err := g.Delete("R2000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := g.Find("R2000"); ok {
		t.Error("R2000 still present after delete")
	}
	if g.Count() != 1 {
		t.Errorf("expected 1 referral, got %d", g.Count())
	}
	trail := g.AuditTrail()
	if len(trail) != auditBefore+1 || trail[len(trail)-1].Action != ActionDelete {
		t.Errorf("expected a delete audit entry, got %+v", trail)
	}
}

func TestRegistry_Send(t *testing.T) {
	g, n := newTestRegistry()

	if err := g.Send(context.Background(), nil); !errors.Is(err, ErrNilReferral) {
		t.Fatalf("expected ErrNilReferral, got %v", err)
	}

	// sending an unregistered referral is allowed
	r := seeded("R3000")
	if err := g.Send(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != StatusSent {
		t.Errorf("expected Sent, got %q", r.Status)
	}
	if r.LastUpdated != todayString() {
		t.Errorf("expected last updated %s, got %q", todayString(), r.LastUpdated)
	}
	if len(n.sent) != 1 || n.sent[0] != r {
		t.Errorf("expected notifier to receive the referral, got %v", n.sent)
	}
	if g.Count() != 0 {
		t.Errorf("send must not register the referral, count = %d", g.Count())
	}

	trail := g.AuditTrail()
	if len(trail) != 1 || trail[0].Action != ActionExecute {
		t.Errorf("expected one execute audit entry, got %+v", trail)
	}
}

func TestRegistry_Send_NotifierFailureIsNotFatal(t *testing.T) {
	g, n := newTestRegistry()
	n.err = errors.New("disk full")

	r := seeded("R3001")
	if err := g.Send(context.Background(), r); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	if r.Status != StatusSent {
		t.Errorf("expected Sent, got %q", r.Status)
	}
}

func TestRegistry_Send_NilNotifier(t *testing.T) {
	g := NewRegistry(nil, zerolog.Nop())
	if err := g.Send(context.Background(), seeded("R1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegistry_Accept(t *testing.T) {
	g, _ := newTestRegistry()
	g.Add(seeded("R4000"))

	ok, err := g.Accept("R4000")
	if err != nil || !ok {
		t.Fatalf("Accept() = %v, %v; want true, nil", ok, err)
	}
	ok, err = g.Accept("R4000")
	if err != nil || ok {
		t.Fatalf("second Accept() = %v, %v; want false, nil", ok, err)
	}
	if _, err := g.Accept("R404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_All_IsSnapshot(t *testing.T) {
	g, _ := newTestRegistry()
	g.Add(seeded("R1"))
	all := g.All()
	all[0] = nil

	if g.Count() != 1 {
		t.Errorf("mutating the snapshot changed the registry, count = %d", g.Count())
	}
	if r, ok := g.Find("R1"); !ok || r == nil {
		t.Error("R1 lost after snapshot mutation")
	}
}

func TestAuditLog_EntriesAreCopies(t *testing.T) {
	l := NewAuditLog(zerolog.Nop())
	l.Record(ActionCreate, "R1", "Added referral: R1")
	entries := l.Entries()
	entries[0].Description = "tampered"

	if l.Entries()[0].Description != "Added referral: R1" {
		t.Error("audit trail was mutated through a copy")
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", l.Len())
	}
	if entries[0].ID.String() == "" || entries[0].Recorded.IsZero() {
		t.Error("expected id and timestamp to be set")
	}
}
