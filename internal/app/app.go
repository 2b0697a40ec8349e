// Package app is the composition root: it wires the store, preferences,
// notification dispatcher, trigger scheduler and reminder manager together
// and runs them until the process is told to stop.
package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"vitaremind/internal/config"
	"vitaremind/internal/logging"
	"vitaremind/internal/notify"
	"vitaremind/internal/prefs"
	"vitaremind/internal/reminder"
	"vitaremind/internal/store"
	"vitaremind/internal/trigger"
)

type App struct {
	cfgPath string
	cfg     *config.Config
	log     zerolog.Logger

	store      *store.Store
	prefs      *prefs.Store
	dispatcher *notify.Dispatcher
	sched      *trigger.Scheduler
	manager    *reminder.Manager

	closeLog func()
}

func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	busyTimeout, _ := config.ParseDuration(cfg.Storage.BusyTimeout, 5*time.Second)
	st, err := store.Open(store.Config{Path: cfg.Storage.Path, BusyTimeout: busyTimeout},
		log.With().Str("component", "store").Logger())
	if err != nil {
		closeLog()
		return nil, err
	}

	ps := prefs.New(st.DB(), log.With().Str("component", "prefs").Logger())

	sendTimeout, _ := config.ParseDuration(cfg.Notifier.SendTimeout, 0)
	gwTimeout, _ := config.ParseDuration(cfg.Notifier.Gateway.Timeout, 0)
	dispatcher := notify.New(notify.Config{
		Workers:     cfg.Notifier.Workers,
		QueueSize:   cfg.Notifier.QueueSize,
		RatePerSec:  cfg.Notifier.RatePerSec,
		SendTimeout: sendTimeout,
		Email:       notify.EmailConfig{Host: cfg.Notifier.Email.Host, Port: cfg.Notifier.Email.Port},
		Gateway:     notify.GatewayConfig{SessionURL: cfg.Notifier.Gateway.SessionURL, Timeout: gwTimeout},
	}, log.With().Str("component", "notify").Logger())

	// Fires hand their baked-in payload straight to the dispatcher. A full
	// queue or a stopped dispatcher costs one occurrence, never the job.
	dispatchLog := log.With().Str("component", "dispatch").Logger()
	sched := trigger.New(trigger.Config{Timezone: cfg.Scheduler.Timezone},
		log.With().Str("component", "trigger").Logger(),
		func(key trigger.JobKey, payload any) {
			p, ok := payload.(notify.Payload)
			if !ok {
				dispatchLog.Error().Str("job", key.String()).Msg("unexpected payload type")
				return
			}
			if err := dispatcher.Dispatch(context.Background(), p); err != nil {
				dispatchLog.Warn().Str("job", key.String()).Err(err).Msg("dispatch failed")
			}
		})

	manager := reminder.NewManager(sched, st, ps, log.With().Str("component", "reminder").Logger())

	return &App{
		cfgPath:    cfgPath,
		cfg:        cfg,
		log:        log,
		store:      st,
		prefs:      ps,
		dispatcher: dispatcher,
		sched:      sched,
		manager:    manager,
		closeLog:   closeLog,
	}, nil
}

// Manager exposes the reminder manager to callers layered above the daemon
// (a future UI or control surface).
func (a *App) Manager() *reminder.Manager { return a.manager }

func (a *App) Store() *store.Store { return a.store }

func (a *App) Prefs() *prefs.Store { return a.prefs }

// Run starts everything, blocks until ctx is done, then shuts down in
// reverse order.
func (a *App) Run(ctx context.Context) error {
	a.dispatcher.Start(ctx)
	a.sched.Start()

	if err := a.manager.Startup(ctx); err != nil {
		// Startup reconciliation is recoverable: the daemon stays up and
		// the UI layer can retry via LoadAll.
		a.log.Warn().Err(err).Msg("startup reminder load incomplete")
	}

	go func() {
		if err := config.Watch(ctx, a.cfgPath, a.log.With().Str("component", "config").Logger(), a.applyConfig); err != nil {
			a.log.Warn().Err(err).Msg("config watch unavailable")
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info().Msg("vitaremind running")

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.manager.Shutdown()
	stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	a.dispatcher.Stop(stopCtx)
	cancel()
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("store close failed")
	}
	a.log.Info().Msg("vitaremind stopped")
	a.closeLog()
	return nil
}

// applyConfig handles a config reload. Only the log level can change at
// runtime; everything else requires a restart.
func (a *App) applyConfig(cfg *config.Config) {
	lvl := logging.ParseLevel(cfg.Log.Level)
	a.log.Info().Str("level", lvl.String()).Msg("applying log level")
	zerolog.SetGlobalLevel(lvl)
}
