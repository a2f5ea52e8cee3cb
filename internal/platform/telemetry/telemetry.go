// Package telemetry exposes clinic store metrics on a private Prometheus
// registry. Metrics are dumped in node-exporter textfile format; the process
// never listens on a port.
package telemetry

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// TelemetryConfig holds all configuration for the telemetry provider.
type TelemetryConfig struct {
	ServiceName    string `json:"service_name"`
	Environment    string `json:"environment"`
	MetricsEnabled *bool  `json:"metrics_enabled"` // nil = use default (true)
	// TextfilePath is where WriteTextfile dumps metrics. Empty disables the dump.
	TextfilePath string `json:"textfile_path"`
}

// metricsOn returns whether metrics are enabled (defaults to true).
func (c *TelemetryConfig) metricsOn() bool {
	if c.MetricsEnabled == nil {
		return true
	}
	return *c.MetricsEnabled
}

func (c *TelemetryConfig) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "clinic"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// BoolPtr is a helper to create a *bool for TelemetryConfig fields.
func BoolPtr(b bool) *bool {
	return &b
}

// ---------------------------------------------------------------------------
// TelemetryProvider
// ---------------------------------------------------------------------------

// TelemetryProvider owns the metric collectors. A nil provider, or one with
// metrics disabled, accepts every call and records nothing.
type TelemetryProvider struct {
	cfg      TelemetryConfig
	registry *prometheus.Registry

	operations  *prometheus.CounterVec
	records     *prometheus.GaugeVec
	diagnostics *prometheus.CounterVec

	shutdownOnce sync.Once
}

// NewTelemetryProvider creates and registers the clinic collectors.
func NewTelemetryProvider(cfg TelemetryConfig) *TelemetryProvider {
	cfg.applyDefaults()

	tp := &TelemetryProvider{cfg: cfg, registry: prometheus.NewRegistry()}
	if !cfg.metricsOn() {
		return tp
	}

	constLabels := prometheus.Labels{"service": cfg.ServiceName, "env": cfg.Environment}
	tp.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "clinic_store_operations_total",
		Help:        "Record store operations by entity, operation and outcome.",
		ConstLabels: constLabels,
	}, []string{"entity", "op", "outcome"})
	tp.records = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "clinic_records",
		Help:        "Records currently held in memory per entity.",
		ConstLabels: constLabels,
	}, []string{"entity"})
	tp.diagnostics = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "clinic_codec_diagnostics_total",
		Help:        "Row-level problems found while reading or writing flat files.",
		ConstLabels: constLabels,
	}, []string{"file", "kind"})

	tp.registry.MustRegister(tp.operations, tp.records, tp.diagnostics)
	return tp
}

func (tp *TelemetryProvider) enabled() bool {
	return tp != nil && tp.operations != nil
}

// Registry returns the private registry the collectors are registered on.
func (tp *TelemetryProvider) Registry() *prometheus.Registry {
	if tp == nil {
		return nil
	}
	return tp.registry
}

// ObserveOperation counts one store operation. A nil err counts as ok.
func (tp *TelemetryProvider) ObserveOperation(entity, op string, err error) {
	if !tp.enabled() {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	tp.operations.WithLabelValues(entity, op, outcome).Inc()
}

// SetRecords sets the in-memory record count for entity.
func (tp *TelemetryProvider) SetRecords(entity string, n int) {
	if !tp.enabled() {
		return
	}
	tp.records.WithLabelValues(entity).Set(float64(n))
}

// ObserveDiagnostic counts one flat-file diagnostic.
func (tp *TelemetryProvider) ObserveDiagnostic(file, kind string) {
	if !tp.enabled() {
		return
	}
	tp.diagnostics.WithLabelValues(file, kind).Inc()
}

// ErrNoTextfile is returned by WriteTextfile when no path is configured.
var ErrNoTextfile = errors.New("telemetry: no textfile path configured")

// WriteTextfile dumps every metric to the configured textfile path.
func (tp *TelemetryProvider) WriteTextfile() error {
	if !tp.enabled() {
		return nil
	}
	if tp.cfg.TextfilePath == "" {
		return ErrNoTextfile
	}
	return prometheus.WriteToTextfile(tp.cfg.TextfilePath, tp.registry)
}

// Shutdown writes a final textfile dump when one is configured. Calling it
// more than once is harmless.
func (tp *TelemetryProvider) Shutdown(_ context.Context) error {
	if tp == nil {
		return nil
	}
	var err error
	tp.shutdownOnce.Do(func() {
		if tp.enabled() && tp.cfg.TextfilePath != "" {
			err = tp.WriteTextfile()
		}
	})
	return err
}
