// Package app wires all voxflow subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run accepts calls until the context is cancelled, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithPlatform,
// WithMeterProvider, etc.). When an option is not provided, New creates the
// real implementation from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/voxflow/voxflow/internal/auth"
	"github.com/voxflow/voxflow/internal/config"
	"github.com/voxflow/voxflow/internal/dispatch"
	"github.com/voxflow/voxflow/internal/engine"
	"github.com/voxflow/voxflow/internal/handlers"
	"github.com/voxflow/voxflow/internal/health"
	"github.com/voxflow/voxflow/internal/observe"
	"github.com/voxflow/voxflow/internal/session"
	"github.com/voxflow/voxflow/pkg/flow"
	"github.com/voxflow/voxflow/pkg/host"
	"github.com/voxflow/voxflow/pkg/host/eventsock"
	hostmock "github.com/voxflow/voxflow/pkg/host/mock"
)

// Version is stamped by the build; the default marks a source build.
var Version = "dev"

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config
	log *slog.Logger

	store    *config.Store
	poller   *config.Poller
	auth     *auth.Manager
	disp     *dispatch.Dispatcher
	metrics  *observe.Metrics
	platform host.Platform
	httpSrv  *http.Server

	meterProvider   metric.MeterProvider
	shutdownMetrics func(context.Context) error

	// activeCalls tracks per-call goroutines for drain on shutdown.
	activeCalls sync.WaitGroup

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithPlatform injects a switch platform instead of creating one from
// config.
func WithPlatform(p host.Platform) Option {
	return func(a *App) { a.platform = p }
}

// WithMeterProvider injects a meter provider (e.g. one backed by a manual
// reader) instead of initialising the global Prometheus-backed provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(a *App) { a.meterProvider = mp }
}

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// New creates an App by wiring all subsystems together.
//
// Initialisation is synchronous: flow documents are loaded (the call flow
// must parse and validate, auxiliary catalogs are optional), the OAuth2
// manager is configured, the dispatcher gets all handler families, and the
// diagnostics HTTP server is assembled. The switch platform starts listening
// in Run, not here.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg: cfg,
		log: slog.With("component", "app"),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Metrics ───────────────────────────────────────────────────────
	// First so the store and auth recorders below can feed instruments.
	if err := a.initMetrics(ctx); err != nil {
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}

	// ── 2. Flow document store ───────────────────────────────────────────
	a.store = config.NewStore(cfg.Switch.ScriptDir,
		config.WithFiles(map[string]string{
			config.DocIVR:        cfg.Flows.IVRFile,
			config.DocWebAPI:     cfg.Flows.WebAPIFile,
			config.DocExtensions: cfg.Flows.ExtensionsFile,
			config.DocRecording:  cfg.Flows.RecordingFile,
		}),
		config.WithReloadRecorder(func(name string) {
			a.metrics.RecordConfigReload(context.Background(), name)
		}),
	)
	if err := a.store.LoadAll(); err != nil {
		return nil, fmt.Errorf("app: load flow documents: %w", err)
	}
	if cfg.Flows.PollInterval > 0 {
		a.poller = config.NewPoller(a.store, cfg.Flows.PollInterval)
	}

	// ── 3. OAuth2 token manager ──────────────────────────────────────────
	a.auth = auth.New(auth.WithRecorder(func(status string) {
		a.metrics.RecordTokenRefresh(context.Background(), status)
	}))
	if cfg.Auth.TokenURL != "" {
		a.auth.Configure(auth.Options{
			TokenURL:           cfg.Auth.TokenURL,
			ClientID:           cfg.Auth.ClientID,
			ClientSecret:       cfg.Auth.ClientSecret,
			Scope:              cfg.Auth.Scope,
			InsecureSkipVerify: cfg.Auth.InsecureSkipVerify,
		})
	}

	// ── 4. Dispatcher + handler families ─────────────────────────────────
	a.disp = dispatch.New(
		dispatch.WithRecorder(func(op flow.Opcode, family, status string, elapsed time.Duration) {
			a.metrics.RecordDispatch(context.Background(), op.String(), family, status, elapsed)
		}),
	)
	handlers.RegisterAll(a.disp, handlers.Deps{
		Store:     a.store,
		Auth:      a.auth,
		Metrics:   a.metrics,
		SoundsDir: cfg.Switch.SoundsDir,
		TTSEngine: cfg.Engine.TTSEngine,
		TTSVoice:  cfg.Engine.TTSVoice,
	})

	// ── 5. Switch platform ───────────────────────────────────────────────
	if a.platform == nil {
		switch cfg.Switch.Platform {
		case "eventsock":
			a.platform = eventsock.New(cfg.Switch.ListenAddr)
		case "mock":
			a.platform = hostmock.NewPlatform(16)
		default:
			return nil, fmt.Errorf("app: unknown switch platform %q", cfg.Switch.Platform)
		}
	}

	// ── 6. Diagnostics HTTP server ───────────────────────────────────────
	a.httpSrv = a.buildHTTPServer()

	return a, nil
}

// initMetrics sets up the meter provider (global Prometheus-backed unless
// injected) and the instrument set.
func (a *App) initMetrics(ctx context.Context) error {
	if a.meterProvider == nil {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "voxflow",
			ServiceVersion: Version,
		})
		if err != nil {
			return err
		}
		a.shutdownMetrics = shutdown
		a.meterProvider = otel.GetMeterProvider()
	}
	m, err := observe.NewMetrics(a.meterProvider)
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

// buildHTTPServer assembles /healthz, /readyz and /metrics.
func (a *App) buildHTTPServer() *http.Server {
	checker := health.New(health.Checker{
		Name: "flows",
		Check: func(context.Context) error {
			if !a.store.Loaded() {
				return fmt.Errorf("call flow not loaded")
			}
			return nil
		},
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.Healthz)
	mux.HandleFunc("/readyz", checker.Readyz)
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Run starts the diagnostics server and the call accept loop, then blocks
// until ctx is cancelled or a subsystem fails fatally.
func (a *App) Run(ctx context.Context) error {
	if a.poller != nil {
		a.poller.Start()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("diagnostics server listening", "addr", a.httpSrv.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("diagnostics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.acceptCalls(ctx)
	})

	err := g.Wait()
	a.activeCalls.Wait()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// acceptCalls drains the platform's call channel, one goroutine per call.
func (a *App) acceptCalls(ctx context.Context) error {
	calls, err := a.platform.Calls(ctx)
	if err != nil {
		return fmt.Errorf("app: accept calls: %w", err)
	}
	a.log.Info("accepting calls", "platform", a.platform.Name())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case call, ok := <-calls:
			if !ok {
				a.log.Info("call channel closed")
				return nil
			}
			a.activeCalls.Add(1)
			go func() {
				defer a.activeCalls.Done()
				a.handleCall(ctx, call)
			}()
		}
	}
}

// handleCall interprets one call end to end. Panics in the walk are caught
// here so one broken call never takes the process down.
func (a *App) handleCall(ctx context.Context, call host.Call) {
	start := time.Now()
	a.metrics.ActiveCalls.Add(ctx, 1)
	defer func() {
		a.metrics.ActiveCalls.Add(ctx, -1)
		a.metrics.RecordCall(ctx, time.Since(start))
		if r := recover(); r != nil {
			a.log.Error("call handler panicked", "panic", r)
			_ = call.Session.Hangup()
		}
	}()

	sess := session.New(call.Session,
		session.WithVisitBudget(a.cfg.Engine.VisitBudget),
	)
	defer sess.Cleanup()

	eng := engine.New(sess, a.disp, a.store,
		engine.WithAPI(a.platform.API()),
		engine.WithMetrics(a.metrics),
		engine.WithSoundsDir(a.cfg.Switch.SoundsDir),
		engine.WithTTS(a.cfg.Engine.TTSEngine, a.cfg.Engine.TTSVoice),
		engine.WithLogger(sess.Logger().With("component", "engine")),
	)

	var err error
	if call.IsCallback {
		err = eng.RunCallback(ctx)
	} else {
		err = eng.Run(ctx)
	}
	if err != nil {
		a.log.Error("call failed", "call_uuid", sess.UUID(), "callback", call.IsCallback, "err", err)
	}
}

// Stats exposes the dispatcher counters, mainly for diagnostics and tests.
func (a *App) Stats() dispatch.Stats {
	return a.disp.Stats()
}

// Shutdown stops accepting calls and tears down all subsystems. Safe to call
// more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down")
		if a.poller != nil {
			a.poller.Stop()
		}
		if err := a.httpSrv.Shutdown(ctx); err != nil {
			a.log.Warn("diagnostics server shutdown error", "err", err)
		}
		if err := a.platform.Close(); err != nil {
			a.log.Warn("platform close error", "err", err)
		}
		if a.shutdownMetrics != nil {
			if err := a.shutdownMetrics(ctx); err != nil {
				a.log.Warn("metrics shutdown error", "err", err)
				shutdownErr = err
			}
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}
