// Package app wires the clinic's components together: one referral registry,
// the record store on top of the flat-file codec, the notice sink and metrics.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ehr/clinic/internal/config"
	"github.com/ehr/clinic/internal/domain/referral"
	"github.com/ehr/clinic/internal/platform/flatfile"
	"github.com/ehr/clinic/internal/platform/notice"
	"github.com/ehr/clinic/internal/platform/telemetry"
	"github.com/ehr/clinic/internal/store"
)

// App owns every long-lived component. Construct it with New; there is
// exactly one referral registry per App.
type App struct {
	cfg       *config.Config
	logger    zerolog.Logger
	registry  *referral.Registry
	store     *store.Store
	notices   *notice.Manager
	telemetry *telemetry.TelemetryProvider

	lastLoad store.LoadResult
}

// New builds an App whose files live on fs.
func New(cfg *config.Config, fs afero.Fs, logger zerolog.Logger) (*App, error) {
	format, err := notice.ParseFormat(cfg.NoticeFormat)
	if err != nil {
		return nil, fmt.Errorf("notice format: %w", err)
	}
	sink, err := notice.NewSink(format, fs, cfg.OutputDir, cfg.NoticeFrom)
	if err != nil {
		return nil, err
	}

	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		Environment:  cfg.Env,
		TextfilePath: cfg.MetricsFile,
	})
	notices := notice.NewManager(sink, nil, logger)
	registry := referral.NewRegistry(notices, logger)
	codec := flatfile.New(fs, cfg.DataDir,
		flatfile.WithTimeout(cfg.IOTimeout),
		flatfile.WithLogger(logger),
	)
	st := store.New(codec, registry,
		store.WithLogger(logger),
		store.WithPrescriptionNotifier(notices),
		store.WithMetrics(tp),
		store.WithPhoneRegion(cfg.PhoneRegion),
	)

	return &App{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		store:     st,
		notices:   notices,
		telemetry: tp,
	}, nil
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Logger() zerolog.Logger { return a.logger }

// Registry returns the application's referral registry.
func (a *App) Registry() *referral.Registry { return a.registry }

func (a *App) Store() *store.Store { return a.store }

func (a *App) Notices() *notice.Manager { return a.notices }

func (a *App) Telemetry() *telemetry.TelemetryProvider { return a.telemetry }

// Load reads every data file into memory.
func (a *App) Load(ctx context.Context) store.LoadResult {
	a.lastLoad = a.store.LoadAll(ctx)
	return a.lastLoad
}

// LastLoad returns the result of the most recent Load.
func (a *App) LastLoad() store.LoadResult { return a.lastLoad }

// Save writes every collection back to disk.
func (a *App) Save(ctx context.Context) error {
	return a.store.SaveAll(ctx)
}

// Close flushes the metrics textfile when one is configured.
func (a *App) Close(ctx context.Context) error {
	if err := a.telemetry.Shutdown(ctx); err != nil && !errors.Is(err, telemetry.ErrNoTextfile) {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
