package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/donaldgifford/flight-price-tracker/internal/alert"
	"github.com/donaldgifford/flight-price-tracker/internal/config"
	"github.com/donaldgifford/flight-price-tracker/internal/engine"
	"github.com/donaldgifford/flight-price-tracker/internal/events"
	"github.com/donaldgifford/flight-price-tracker/internal/notify"
	"github.com/donaldgifford/flight-price-tracker/internal/provider"
	"github.com/donaldgifford/flight-price-tracker/internal/store"
	"github.com/donaldgifford/flight-price-tracker/pkg/aggregate"
	"github.com/donaldgifford/flight-price-tracker/pkg/evaluate"
)

const (
	quoteCachePrefix = "fpt:quotes:"
	deliveryClaimTTL = 24 * time.Hour
)

// app holds the wired service components shared by serve and poll.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	store     store.Store
	machine   *alert.Machine
	monitor   *engine.Monitor
	scheduler *engine.Scheduler

	closers []func()
}

// newApp connects the store, providers, and delivery channels and builds the
// monitoring engine. Call close when done.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	s, closeStore, err := store.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.store = s
	a.closers = append(a.closers, closeStore)

	if err := s.Migrate(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	var (
		cache   provider.Cache
		claimer notify.Claimer
	)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() {
			if err := rdb.Close(); err != nil {
				log.Warn("closing redis", "error", err)
			}
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, continuing without quote cache", "addr", cfg.Redis.Addr, "error", err)
		} else {
			cache = provider.NewRedisCache(rdb, quoteCachePrefix)
			claimer = notify.NewRedisClaimer(rdb)
		}
	}

	reg, err := provider.FromConfig(&cfg.Providers, cache)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("building providers: %w", err)
	}
	if reg.Len() == 0 {
		log.Warn("no quote providers enabled")
	}

	reliability := aggregate.NewTracker()
	gateway := provider.NewGateway(reg,
		provider.WithTimeout(cfg.Providers.Timeout),
		provider.WithRecorder(reliability),
		provider.WithLogger(log),
	)
	agg := aggregate.New(
		aggregate.NewRates(cfg.Currency.Base, cfg.Currency.Rates),
		aggregate.WithReliability(reliability),
	)

	a.machine = alert.NewMachine(s,
		alert.WithLogger(log),
		alert.WithPersistTimeout(cfg.Monitor.PersistTimeout),
	)

	senders, err := notify.SendersFromConfig(ctx, &cfg.Delivery, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("building delivery channels: %w", err)
	}
	dopts := []notify.DispatcherOption{
		notify.WithLogger(log),
		notify.WithRetry(cfg.Delivery.MaxRetries, cfg.Delivery.InitialBackoff, cfg.Delivery.MaxBackoff),
		notify.WithSendTimeout(cfg.Delivery.SendTimeout),
	}
	if claimer != nil {
		dopts = append(dopts, notify.WithClaimer(claimer, deliveryClaimTTL))
	}
	dispatcher := notify.NewDispatcher(s, senders, dopts...)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.Enabled {
		p, err := events.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Exchange, events.WithLogger(log))
		if err != nil {
			log.Warn("event publisher unavailable", "error", err)
		} else {
			publisher = p
			a.closers = append(a.closers, func() {
				if err := p.Close(); err != nil {
					log.Warn("closing event publisher", "error", err)
				}
			})
		}
	}

	board := engine.NewStatusBoard()
	a.monitor = engine.NewMonitor(s, gateway, agg, a.machine, dispatcher,
		engine.WithLogger(log),
		engine.WithPublisher(publisher),
		engine.WithConcurrency(cfg.Monitor.Concurrency),
		engine.WithCheckTimeout(cfg.Monitor.CheckTimeout),
		engine.WithMaxChecksPerCycle(cfg.Monitor.MaxChecksPerCycle),
		engine.WithTiers(cfg.Monitor.Tiers),
		engine.WithHealth(engine.NewHealth(cfg.Monitor.OutageThreshold, cfg.Monitor.MaxBackoffFactor)),
		engine.WithEvaluateOptions(evaluate.Options{FlexibleDateSlackDays: cfg.Monitor.SlackDays()}),
		engine.WithStatusBoard(board),
	)

	analyzer := engine.NewAnalyzer(s, cfg.Alerts.TrendWindow, log)
	cleaner := engine.NewCleaner(s, a.machine, cfg.Alerts, log)

	a.scheduler, err = engine.NewScheduler(a.monitor, analyzer, cleaner, s, engine.Intervals{
		Tick:       cfg.Monitor.TickInterval,
		Analysis:   cfg.Schedule.AnalysisInterval,
		Cleanup:    cfg.Schedule.CleanupInterval,
		JobTimeout: cfg.Schedule.JobTimeout,
	}, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	return a, nil
}

// drain stops new checks and waits for in-flight ones.
func (a *app) drain(ctx context.Context) {
	if err := a.monitor.Drain(ctx); err != nil {
		a.log.Warn("checks still running at shutdown", "error", err)
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
