package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"niftyfeed/internal/client/fyers"
	"niftyfeed/internal/feed"
	"niftyfeed/internal/market"
	"niftyfeed/internal/models"
	"niftyfeed/internal/registry"
	"niftyfeed/internal/repository"
	"niftyfeed/internal/service"
	"niftyfeed/internal/store"
	"niftyfeed/internal/strategy"
)

// Config carries everything the engine needs. Zero durations fall back to
// the service defaults; a nil Registry means the full NIFTY 50 universe.
type Config struct {
	Credentials fyers.Credentials
	BaseURL     string
	SocketURL   string
	HTTPClient  *http.Client

	PollInterval  time.Duration
	StaleAfter    time.Duration
	ReconnectWait time.Duration

	HistoryLookback   time.Duration
	HistoryPause      time.Duration
	HistoryErrorPause time.Duration
	HistoryAlways     bool

	Registry *registry.Registry
	Session  *market.Session
	Strategy strategy.Evaluator
	Repo     repository.Repository
	Logger   *zap.Logger
}

// Engine owns the whole ingestion pipeline: the REST poller, the push
// stream, the history sweep, and the reconciled quote table they feed.
// Construction wires everything; Start only verifies credentials and
// launches the workers, so the read surface works before and after Start.
type Engine struct {
	cfg       Config
	log       *zap.Logger
	registry  *registry.Registry
	store     *store.Store
	cache     *store.HistoryCache
	liveness  *feed.Liveness
	bus       *feed.Publisher
	client    *fyers.Client
	evaluator strategy.Evaluator

	poller   *service.QuotePollService
	streamer *service.QuoteStreamService
	history  *service.HistorySyncService
	journal  *service.QuoteJournalService

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status is the operational snapshot served by the status endpoint.
type Status struct {
	FeedState      feed.State `json:"feed_state"`
	FallbackActive bool       `json:"fallback_active"`
	LastPush       time.Time  `json:"last_push"`
	MarketStatus   string     `json:"market_status"`
	Instruments    int        `json:"instruments"`
	CachedSeries   int        `json:"cached_series"`
	MappedAliases  int        `json:"mapped_aliases"`
	Subscribers    int        `json:"subscribers"`
}

func New(cfg Config) (*Engine, error) {
	if !cfg.Credentials.Valid() {
		return nil, fmt.Errorf("engine: missing provider credentials")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	reg := cfg.Registry
	if reg == nil {
		var err error
		if reg, err = registry.New(); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}

	e := &Engine{
		cfg:      cfg,
		log:      log,
		registry: reg,
		store:    store.New(reg),
		cache:    store.NewHistoryCache(),
		bus:      feed.NewPublisher(log),
		client:   fyers.NewClient(cfg.HTTPClient, cfg.BaseURL, cfg.Credentials),
	}
	e.liveness = feed.NewLiveness(cfg.StaleAfter, log, e.journalTransition)
	e.evaluator = cfg.Strategy
	if e.evaluator == nil {
		e.evaluator = strategy.NewComposite()
	}

	e.poller = &service.QuotePollService{
		Client:   e.client,
		Registry: reg,
		Store:    e.store,
		Session:  cfg.Session,
		Liveness: e.liveness,
		Bus:      e.bus,
		Logger:   log,
		Interval: cfg.PollInterval,
	}
	e.streamer = &service.QuoteStreamService{
		Creds:         cfg.Credentials,
		Registry:      reg,
		Store:         e.store,
		Liveness:      e.liveness,
		Bus:           e.bus,
		Logger:        log,
		Poller:        e.poller,
		SocketURL:     cfg.SocketURL,
		ReconnectWait: cfg.ReconnectWait,
	}
	e.history = &service.HistorySyncService{
		Client:       e.client,
		Registry:     reg,
		Store:        e.store,
		Cache:        e.cache,
		Session:      cfg.Session,
		Strategy:     e.evaluator,
		Bus:          e.bus,
		Repo:         cfg.Repo,
		Logger:       log,
		Lookback:     cfg.HistoryLookback,
		PauseBetween: cfg.HistoryPause,
		ErrorPause:   cfg.HistoryErrorPause,
		Always:       cfg.HistoryAlways,
	}
	e.journal = &service.QuoteJournalService{Store: e.store, Repo: cfg.Repo, Logger: log}
	return e, nil
}

// Start verifies credentials and launches the poll and stream workers.
// Invalid credentials are fatal; a verification request that fails for any
// other reason is logged and the engine starts anyway.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		e.log.Warn("engine already started")
		return nil
	}
	e.started = true
	e.mu.Unlock()

	profile, err := e.client.Profile(ctx)
	switch {
	case errors.Is(err, fyers.ErrInvalidCredentials):
		return fmt.Errorf("engine: %w", err)
	case err != nil:
		e.log.Warn("could not verify credentials", zap.Error(err))
	default:
		e.log.Info("provider authenticated", zap.String("fy_id", profile.FyID), zap.String("name", profile.Name))
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	e.runWorker(runCtx, "quote poller", e.poller.Run)
	e.runWorker(runCtx, "quote stream", e.streamer.Run)
	e.log.Info("market data engine started", zap.Int("instruments", e.registry.Len()))
	return nil
}

func (e *Engine) runWorker(ctx context.Context, name string, run func(context.Context) error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Warn(name+" stopped", zap.Error(err))
		}
	}()
}

// Stop cancels the workers and waits for them to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.started = false
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	e.log.Info("market data engine stopped")
}

// RefreshHistory runs one candle sweep. Called by the scheduler and by the
// manual refresh endpoint.
func (e *Engine) RefreshHistory(ctx context.Context) error {
	return e.history.RefreshAll(ctx)
}

// CaptureJournal persists one snapshot of the quote table.
func (e *Engine) CaptureJournal(ctx context.Context) error {
	return e.journal.Capture(ctx)
}

// RegisterDataCallback subscribes fn to every published snapshot.
func (e *Engine) RegisterDataCallback(fn feed.Callback) {
	e.bus.Register(fn)
}

// UnregisterDataCallback removes a previously registered callback.
func (e *Engine) UnregisterDataCallback(fn feed.Callback) {
	e.bus.Unregister(fn)
}

// GetMarketData returns the reconciled quote table in publication order.
func (e *Engine) GetMarketData() []store.Quote {
	return e.store.SnapshotAll()
}

// Quote returns one instrument's quote. The symbol may be the short or the
// exchange-prefixed form, in any case.
func (e *Engine) Quote(symbol string) (store.Quote, bool) {
	return e.store.Get(normalizeSymbol(symbol))
}

// Series returns one instrument's cached daily history.
func (e *Engine) Series(symbol string) (store.Series, bool) {
	return e.cache.Get(normalizeSymbol(symbol))
}

// Evaluate recomputes the strategy over an instrument's cached history.
func (e *Engine) Evaluate(symbol string) (strategy.Evaluation, bool) {
	series, ok := e.cache.Get(normalizeSymbol(symbol))
	if !ok || series.Len() == 0 {
		return strategy.Evaluation{}, false
	}
	return e.evaluator.Evaluate(series), true
}

// Status reports the engine's operational state.
func (e *Engine) Status() Status {
	st := Status{
		FeedState:      e.liveness.State(),
		FallbackActive: e.liveness.FallbackActive(),
		LastPush:       e.liveness.LastPush(),
		Instruments:    e.registry.Len(),
		CachedSeries:   e.cache.Len(),
		MappedAliases:  e.streamer.MappingSize(),
		Subscribers:    e.bus.Count(),
	}
	if e.cfg.Session != nil {
		st.MarketStatus = e.cfg.Session.Status(time.Now())
	}
	return st
}

// Registry exposes the instrument universe.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Liveness exposes the push channel state machine.
func (e *Engine) Liveness() *feed.Liveness { return e.liveness }

// journalTransition records LIVE/FALLBACK edges when persistence is
// configured. Failures only log; a dead database must not touch feed
// handling.
func (e *Engine) journalTransition(state feed.State, reason string, at time.Time) {
	if e.cfg.Repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := e.cfg.Repo.InsertFeedTransition(ctx, &models.FeedTransition{
		State:      string(state),
		Reason:     reason,
		OccurredAt: at,
	})
	if err != nil {
		e.log.Warn("journal feed transition failed", zap.Error(err))
	}
}

func normalizeSymbol(symbol string) string {
	return registry.ShortName(strings.ToUpper(strings.TrimSpace(symbol)))
}
