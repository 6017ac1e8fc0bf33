// Package app wires configuration, storage, transport, and the session manager into one
// explicitly passed application context.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/waabox/deviceauth/internal/auth"
	"github.com/waabox/deviceauth/internal/config"
	"github.com/waabox/deviceauth/internal/facade"
	"github.com/waabox/deviceauth/internal/metrics"
	"github.com/waabox/deviceauth/internal/secret"
	"github.com/waabox/deviceauth/internal/session"
)

// PassphraseEnv names the environment variable holding the file store passphrase.
const PassphraseEnv = "DEVICEAUTH_PASSPHRASE"

// Options tunes New. Zero values pick production defaults.
type Options struct {
	Debug    bool
	Logger   *zap.Logger
	Secrets  secret.Store
	Registry *secret.Registry
	// BaseURL overrides https://{domain} for the authorization server.
	BaseURL string
	// MetricsFile, when set, receives the counters in Prometheus text format on Close.
	MetricsFile string
	Prompter    session.Prompter
	OnState     func(session.State)
	Now         func() time.Time
	Sleep       func(ctx context.Context, d time.Duration) error
}

// App is the application context handed to every command.
type App struct {
	Config   config.Config
	Log      *zap.SugaredLogger
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Secrets  secret.Store
	Sessions *session.Manager
	Auth     *facade.Facade

	logger      *zap.Logger
	metricsFile string
}

// New builds the App for cfg.
func New(cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		if logger, err = newLogger(opts.Debug); err != nil {
			return nil, err
		}
	}
	log := logger.Sugar()

	secrets := opts.Secrets
	if secrets == nil {
		registry := opts.Registry
		if registry == nil {
			registry = secret.DefaultRegistry()
		}
		var err error
		secrets, err = registry.Open(cfg.Store.Backend, secret.Options{
			Service:    cfg.Store.Service,
			Path:       cfg.Store.Path,
			Passphrase: os.Getenv(PassphraseEnv),
		})
		if err != nil {
			return nil, fmt.Errorf("opening secret store: %w", err)
		}
	}

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	client := auth.NewClient(opts.BaseURL, cfg.HTTPTimeout())
	manager := session.NewManager(cfg.Auth, client, secrets, session.Options{
		Logger:   log.Named("session"),
		Metrics:  m,
		Prompter: opts.Prompter,
		OnState:  opts.OnState,
		Now:      opts.Now,
		Sleep:    opts.Sleep,
	})

	log.Debugw("application ready", "store", cfg.Store.Backend, "domain", cfg.Auth.Domain)
	return &App{
		Config:   cfg,
		Log:      log,
		Metrics:  m,
		Registry: promRegistry,
		Secrets:  secrets,
		Sessions: manager,
		Auth:     facade.New(manager, cfg.SignInScopes, log.Named("facade")),
		logger:      logger,
		metricsFile: opts.MetricsFile,
	}, nil
}

// WriteMetrics writes every registered counter to path in the Prometheus text format,
// ready for the node_exporter textfile collector.
func (a *App) WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, a.Registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

// Close writes the metrics file, if one was configured, and flushes buffered log entries.
func (a *App) Close() {
	if a.metricsFile != "" {
		if err := a.WriteMetrics(a.metricsFile); err != nil {
			a.Log.Warnw("could not export metrics", "error", err)
		}
	}
	_ = a.logger.Sync()
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	if !debug {
		// Keep the terminal quiet unless something went wrong.
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
