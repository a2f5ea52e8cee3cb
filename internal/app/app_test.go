package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ehr/clinic/internal/config"
	"github.com/ehr/clinic/internal/domain/medication"
	"github.com/ehr/clinic/internal/domain/referral"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:          "test",
		LogLevel:     "info",
		DataDir:      "data",
		OutputDir:    "output",
		NoticeFormat: "text",
		NoticeFrom:   "noreply@clinic.local",
		IOTimeout:    time.Second,
		PhoneRegion:  "GB",
	}
}

func TestNew_SingleRegistry(t *testing.T) {
	a, err := New(testConfig(), afero.NewMemMapFs(), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Registry() == nil {
		t.Fatal("expected a registry")
	}
	if a.Registry() != a.Store().Registry() {
		t.Error("store and app must share the same registry instance")
	}

	r := referral.New()
	if err := a.Store().AddReferral(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := a.Registry().Find(r.ID); !ok {
		t.Error("referral added through the store is not visible in the registry")
	}
}

func TestNew_RejectsUnknownNoticeFormat(t *testing.T) {
	cfg := testConfig()
	cfg.NoticeFormat = "fax"
	if _, err := New(cfg, afero.NewMemMapFs(), zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown notice format")
	}
}

func TestApp_NoticesReachOutputDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, err := New(testConfig(), fs, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	rx := medication.NewPrescription()
	rx.PatientID = "P001"
	rx.MedicationName = "Aspirin"
	rx.Dosage = "75mg"
	if err := a.Store().AddPrescription(ctx, rx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := afero.ReadFile(fs, "output/prescription_RX001.txt")
	if err != nil {
		t.Fatalf("expected prescription notice: %v", err)
	}
	if !strings.Contains(string(raw), "Medication: Aspirin") {
		t.Errorf("unexpected notice:\n%s", raw)
	}

	r := referral.New()
	a.Store().AddReferral(r)
	if err := a.Store().SendReferral(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := afero.Exists(fs, "output/referral_R1001.txt"); !ok {
		t.Error("expected referral notice")
	}
	if got := a.Notices().Stats()["sent"]; got != 2 {
		t.Errorf("expected 2 sent notices, got %d", got)
	}
}

func TestApp_SaveThenLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	a, _ := New(testConfig(), fs, zerolog.Nop())
	a.Store().AddReferral(referral.New())
	if err := a.Save(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, _ := New(testConfig(), fs, zerolog.Nop())
	res := b.Load(ctx)
	if !res.OK() {
		t.Fatalf("unexpected load errors: %v", res.Errors)
	}
	if b.Registry().Count() != 1 {
		t.Errorf("expected 1 referral, got %d", b.Registry().Count())
	}
	if err := b.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
