// Package app assembles the enrollment daemon from its parts and owns their
// background lifecycle.
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/congo-pay/tokenwallet/internal/activation"
	"github.com/congo-pay/tokenwallet/internal/cardcrypto"
	"github.com/congo-pay/tokenwallet/internal/cards"
	"github.com/congo-pay/tokenwallet/internal/config"
	"github.com/congo-pay/tokenwallet/internal/enrollment"
	"github.com/congo-pay/tokenwallet/internal/notification"
	"github.com/congo-pay/tokenwallet/internal/pushtoken"
	"github.com/congo-pay/tokenwallet/internal/replenish"
	"github.com/congo-pay/tokenwallet/internal/sdk/simulator"
	"github.com/congo-pay/tokenwallet/internal/wse"
)

const refreshTimeout = 30 * time.Second

// Context holds every long-lived component.
type Context struct {
	Cfg    config.Config
	Logger *slog.Logger

	SDK          *simulator.SDK
	Gate         *wse.Gate
	Bridge       *pushtoken.Bridge
	Orchestrator *enrollment.Orchestrator
	Activations  *activation.Service
	Hub          *notification.Hub
	Router       *notification.Router
	Cards        *cards.Service

	cron   *cron.Cron
	cancel context.CancelFunc
	done   chan struct{}
}

// New wires the components. db and cache may be nil in development, in which
// case memory backends are used.
func New(ctx context.Context, cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Context, error) {
	device := simulator.New(simulator.ParseFlow(cfg.SimulatorFlow), cfg.SimulatorDelay)

	var tokenStore pushtoken.Store
	if cache != nil {
		tokenStore = pushtoken.NewRedisStore(cache)
	} else {
		tokenStore = pushtoken.NewMemoryStore()
	}

	var displayRepo cards.Repository
	if db != nil {
		pg := cards.NewPostgresRepository(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure display schema: %w", err)
		}
		displayRepo = pg
	} else {
		displayRepo = cards.NewMemoryRepository()
	}

	envelope, err := loadEnvelope(cfg, logger)
	if err != nil {
		return nil, err
	}
	refKey, err := referenceKey(cfg, logger)
	if err != nil {
		return nil, err
	}

	gate := wse.NewGate(device, cfg.WSEPollInterval, logger)
	bridge := pushtoken.NewBridge(tokenStore, device, cfg.PushRetryDelay, cfg.PushSendTimeout, logger)

	orch, err := enrollment.NewOrchestrator(enrollment.Deps{
		Wse:          gate,
		Encryptor:    envelope,
		Eligibility:  device,
		Digitizer:    device,
		PushTokens:   bridge,
		Expiry:       displayRepo,
		Language:     cfg.Language,
		ReferenceKey: refKey,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	activations := activation.NewService(device, orch, logger)
	hub := notification.NewHub(logger)
	router := notification.NewRouter(device, device, notification.Multi{notification.NewLoggerNotifier(logger), hub}, logger)
	trigger := replenish.NewTrigger(device, logger)
	cardSvc := cards.NewService(device, device, displayRepo, activations, trigger, logger)

	return &Context{
		Cfg:          cfg,
		Logger:       logger,
		SDK:          device,
		Gate:         gate,
		Bridge:       bridge,
		Orchestrator: orch,
		Activations:  activations,
		Hub:          hub,
		Router:       router,
		Cards:        cardSvc,
		cron:         cron.New(cron.WithLocation(time.UTC), cron.WithLogger(cronLogger{logger})),
		done:         make(chan struct{}),
	}, nil
}

// Start runs the event loop, schedules card maintenance and resumes any
// activation left pending by a previous run.
func (a *Context) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	go func() {
		defer close(a.done)
		if err := a.Orchestrator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error("enrollment event loop stopped", "error", err)
		}
	}()

	if _, err := a.cron.AddFunc(a.Cfg.ReplenishSchedule, func() { a.refreshCards(ctx) }); err != nil {
		return fmt.Errorf("schedule card refresh: %w", err)
	}
	a.cron.Start()

	// The simulator has no configuration step of its own.
	a.SDK.MarkInitialized()
	if err := a.Bridge.Resync(ctx); err != nil {
		a.Logger.Warn("push token resync", "error", err)
	}
	a.Gate.Prewarm(ctx)

	if _, err := a.Activations.ResumeAny(ctx); err != nil && !errors.Is(err, activation.ErrNoPendingActivation) {
		a.Logger.Warn("resume pending activation on launch", "error", err)
	}
	return nil
}

// Close stops background work.
func (a *Context) Close() {
	stopped := a.cron.Stop()
	<-stopped.Done()
	a.Bridge.Close()
	a.Orchestrator.Close()
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
}

func (a *Context) refreshCards(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	list, err := a.Cards.Refresh(ctx)
	if err != nil {
		a.Logger.Warn("scheduled card refresh failed", "error", err)
		return
	}
	a.Logger.Debug("scheduled card refresh", "cards", len(list))
}

func loadEnvelope(cfg config.Config, logger *slog.Logger) (*cardcrypto.Envelope, error) {
	if cfg.IssuerCertPath != "" {
		return cardcrypto.LoadEnvelope(cfg.IssuerCertPath)
	}
	if !cfg.IsDev() {
		return nil, cardcrypto.ErrNoRecipient
	}
	logger.Warn("no issuer certificate configured, using an ephemeral one")
	return cardcrypto.NewEphemeralEnvelope()
}

func referenceKey(cfg config.Config, logger *slog.Logger) ([]byte, error) {
	if len(cfg.ReferenceKey) > 0 {
		return cfg.ReferenceKey, nil
	}
	if !cfg.IsDev() {
		return nil, fmt.Errorf("card reference key is required")
	}
	logger.Warn("no card reference key configured, card references will not survive a restart")
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate reference key: %w", err)
	}
	return key, nil
}

// cronLogger routes cron diagnostics to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
