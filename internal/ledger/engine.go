package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/odinsson/tradeledger/internal/model"
	"github.com/odinsson/tradeledger/internal/service"
)

// State is the engine's lifecycle state.
type State int

// Engine states.
const (
	// StateDetached means no log source has been scanned yet.
	StateDetached State = iota
	// StateAttached means a full-history rebuild is in progress.
	StateAttached
	// StateWatching is steady state: only new entries are scanned.
	StateWatching
)

// Update is emitted to the registered listener whenever the ledger
// changes. Listeners must be idempotent under redundant notifications;
// the engine does not suppress no-op emits.
type Update struct {
	Lines        map[string]model.LedgerLine
	Counterparty *model.Counterparty
	TradeKey     string
}

// Config holds engine configuration.
type Config struct {
	// SelfID is the local user's actor id, used to detect the counterparty.
	SelfID int64
	// PollInterval is the cadence of the safety-net scan. Structural
	// mutations reported by the source trigger an immediate scan as well.
	PollInterval time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{PollInterval: 1500 * time.Millisecond}
}

// Engine reconciles a live, append-only trade log into a quantity ledger.
// It assumes entries are never mutated in place after creation: an entry
// folded into the ledger is never re-parsed. A replaced log (generation
// change) triggers a full rebuild instead.
type Engine struct {
	source       service.LogSource
	logger       *slog.Logger
	seen         map[string]struct{}
	ledger       *Ledger
	counterparty *model.Counterparty
	listener     func(Update)
	kick         chan struct{}
	cancel       context.CancelFunc
	cfg          Config
	boundGen     int64
	state        State
	wg           sync.WaitGroup
	mu           sync.Mutex
}

// NewEngine creates an engine bound to the given log source.
func NewEngine(source service.LogSource, cfg Config, logger *slog.Logger) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		source: source,
		logger: logger.With("component", "ledger"),
		seen:   make(map[string]struct{}),
		ledger: NewLedger(),
		kick:   make(chan struct{}, 1),
		cfg:    cfg,
		state:  StateDetached,
	}
}

// OnChange registers the change listener. Only one listener is supported;
// a later call replaces the earlier one.
func (e *Engine) OnChange(fn func(Update)) {
	e.mu.Lock()
	e.listener = fn
	e.mu.Unlock()
}

// Start begins watching the log source: an immediate full sync, then a
// poll ticker with push-based invalidation layered on top. Mutation
// signals are at-least-once; redundant kicks coalesce.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.source.OnMutation(func() {
		select {
		case e.kick <- struct{}{}:
		default:
		}
	})

	e.wg.Add(1)
	go e.run(runCtx)

	e.logger.Info("ledger engine started", "poll_interval", e.cfg.PollInterval)
	return nil
}

// Stop shuts the engine down, waiting for the scan loop to exit.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("ledger engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	e.Sync()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.kick:
			e.Sync()
		case <-ticker.C:
			e.Sync()
		}
	}
}

// Sync performs one reconciliation pass: a full rebuild when the observed
// log generation differs from the bound one, otherwise an incremental
// scan of unseen entries.
func (e *Engine) Sync() {
	gen := e.source.Generation()

	e.mu.Lock()
	var changed bool
	if e.state == StateDetached || gen != e.boundGen {
		e.rebuildLocked(gen)
		changed = true
	} else {
		changed = e.scanLocked()
	}
	update, listener := e.snapshotLocked()
	e.mu.Unlock()

	if changed && listener != nil {
		listener(update)
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns the current ledger lines and counterparty.
func (e *Engine) Snapshot() (map[string]model.LedgerLine, *model.Counterparty) {
	e.mu.Lock()
	defer e.mu.Unlock()
	update, _ := e.snapshotLocked()
	return update.Lines, update.Counterparty
}

// rebuildLocked clears all state and re-scans every entry in document
// order. Counterparty detection restarts from scratch as well.
func (e *Engine) rebuildLocked(gen int64) {
	e.state = StateAttached
	e.boundGen = gen
	e.seen = make(map[string]struct{})
	e.ledger.Reset()
	e.counterparty = nil

	for _, entry := range e.source.Entries() {
		e.seen[entry.ID] = struct{}{}
		e.foldLocked(entry)
	}

	e.state = StateWatching
	e.logger.Debug("rebuilt ledger", "generation", gen, "lines", e.ledger.Len())
}

// scanLocked folds entries not yet in the seen set. Entries already seen
// are never re-parsed.
func (e *Engine) scanLocked() bool {
	changed := false
	for _, entry := range e.source.Entries() {
		if _, ok := e.seen[entry.ID]; ok {
			continue
		}
		e.seen[entry.ID] = struct{}{}
		if e.foldLocked(entry) {
			changed = true
		}
	}
	return changed
}

// foldLocked applies one entry to the ledger and counterparty state.
func (e *Engine) foldLocked(entry service.Entry) bool {
	changed := false

	if e.counterparty == nil && entry.ActorID > 0 && entry.ActorID != e.cfg.SelfID {
		e.counterparty = &model.Counterparty{ID: entry.ActorID, Name: entry.ActorName}
		changed = true
	}

	action, ok := ParseAction(entry.Text)
	if !ok {
		return changed
	}
	sign := 1
	if action.Type == ActionRemoved {
		sign = -1
	}
	for _, it := range action.Items {
		e.ledger.Apply(it.Name, sign*it.Quantity)
		changed = true
	}
	return changed
}

func (e *Engine) snapshotLocked() (Update, func(Update)) {
	var cp *model.Counterparty
	if e.counterparty != nil {
		c := *e.counterparty
		cp = &c
	}
	return Update{
		Lines:        e.ledger.Lines(),
		Counterparty: cp,
		TradeKey:     TradeKey(e.source),
	}, e.listener
}
