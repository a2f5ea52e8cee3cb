package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ---------------------------------------------------------------------------
// Config defaults
// ---------------------------------------------------------------------------

func TestTelemetryConfig_Defaults(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})
	defer tp.Shutdown(context.Background())

	if tp.cfg.ServiceName != "clinic" {
		t.Fatalf("expected default ServiceName='clinic', got %q", tp.cfg.ServiceName)
	}
	if tp.cfg.Environment != "development" {
		t.Fatalf("expected default Environment='development', got %q", tp.cfg.Environment)
	}
	if !tp.cfg.metricsOn() {
		t.Fatal("expected MetricsEnabled=true by default")
	}
}

// ---------------------------------------------------------------------------
// Collectors
// ---------------------------------------------------------------------------

func TestObserveOperation(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})

	tp.ObserveOperation("patient", "add", nil)
	tp.ObserveOperation("patient", "add", nil)
	tp.ObserveOperation("patient", "add", errors.New("duplicate"))

	if got := testutil.ToFloat64(tp.operations.WithLabelValues("patient", "add", OutcomeOK)); got != 2 {
		t.Errorf("expected 2 ok operations, got %v", got)
	}
	if got := testutil.ToFloat64(tp.operations.WithLabelValues("patient", "add", OutcomeError)); got != 1 {
		t.Errorf("expected 1 failed operation, got %v", got)
	}
}

func TestSetRecordsAndDiagnostics(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})

	tp.SetRecords("referral", 4)
	tp.SetRecords("referral", 3)
	tp.ObserveDiagnostic("prescriptions.csv", "short_row")

	if got := testutil.ToFloat64(tp.records.WithLabelValues("referral")); got != 3 {
		t.Errorf("expected gauge 3, got %v", got)
	}
	if got := testutil.ToFloat64(tp.diagnostics.WithLabelValues("prescriptions.csv", "short_row")); got != 1 {
		t.Errorf("expected 1 diagnostic, got %v", got)
	}
	n, err := testutil.GatherAndCount(tp.Registry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 series, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Noop behavior when disabled
// ---------------------------------------------------------------------------

func TestNoop_WhenDisabled(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{MetricsEnabled: BoolPtr(false)})

	tp.ObserveOperation("patient", "add", nil)
	tp.SetRecords("patient", 1)
	tp.ObserveDiagnostic("patients.csv", "lossy")
	if err := tp.WriteTextfile(); err != nil {
		t.Fatalf("expected disabled textfile dump to be a no-op, got %v", err)
	}
	n, err := testutil.GatherAndCount(tp.Registry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no series when disabled, got %d", n)
	}

	var nilProvider *TelemetryProvider
	nilProvider.ObserveOperation("patient", "add", nil)
	if err := nilProvider.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Textfile
// ---------------------------------------------------------------------------

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinic.prom")
	tp := NewTelemetryProvider(TelemetryConfig{TextfilePath: path})
	tp.SetRecords("patient", 7)

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(raw), `clinic_records{entity="patient",env="development",service="clinic"} 7`) {
		t.Errorf("unexpected textfile contents:\n%s", raw)
	}

	// second shutdown is a no-op
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown should not error: %v", err)
	}
}

func TestWriteTextfile_NoPath(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})
	if err := tp.WriteTextfile(); !errors.Is(err, ErrNoTextfile) {
		t.Errorf("expected ErrNoTextfile, got %v", err)
	}
}
