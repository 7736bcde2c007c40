package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odinsson/tradeledger/internal/cache"
	"github.com/odinsson/tradeledger/internal/catalog"
	"github.com/odinsson/tradeledger/internal/common"
	"github.com/odinsson/tradeledger/internal/config"
	"github.com/odinsson/tradeledger/internal/ledger"
	"github.com/odinsson/tradeledger/internal/model"
	"github.com/odinsson/tradeledger/internal/scheduler"
	"github.com/odinsson/tradeledger/internal/service"
)

// Store keys for the single-entry caches.
const (
	catalogIndexKey = "index"
	priceListKey    = "list"
)

// inflightCall tracks one in-progress snapshot fetch so concurrent
// requests for the same item await it instead of enqueuing a duplicate.
type inflightCall struct {
	done   chan struct{}
	err    error
	record model.PriceRecord
}

// Orchestrator ties the reconciled ledger to pricing data: it resolves
// each ledger line to a catalog id, consults the tiered caches, schedules
// bounded-concurrency fetches for misses, and notifies the consumer to
// recompute figures and redraw.
type Orchestrator struct {
	catalogSvc service.CatalogService
	pricingSvc service.PricingService
	source     service.LogSource
	sched      *scheduler.Scheduler
	logger     *slog.Logger

	catalogCache *cache.Cache[catalog.Index]
	snapshots    *cache.Cache[model.PriceRecord]
	priceLists   *cache.Cache[[]model.PriceListEntry]
	carts        *cache.Cache[[]ledger.CartLine]

	engine *ledger.Engine
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	index        *catalog.Index
	self         model.Counterparty
	priceList    map[int]model.PriceListEntry
	lines        map[string]model.LedgerLine
	counterparty *model.Counterparty
	tradeKey     string
	mode         ProfitMode
	feeCut       bool
	status       string
	listeners    []func()

	inflightMu sync.Mutex
	inflight   map[int]*inflightCall

	cfg config.Config
}

// New creates an orchestrator over the given collaborators. The scheduler
// instance is injected so the fetch budget is shared process-wide.
func New(cfg config.Config, store service.Store, catalogSvc service.CatalogService, pricingSvc service.PricingService, source service.LogSource, sched *scheduler.Scheduler, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pricing")

	catalogCache, err := cache.New[catalog.Index](cache.Config{
		Store: store, Name: "catalog", TTL: cfg.CatalogTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog cache: %w", err)
	}
	snapshots, err := cache.New[model.PriceRecord](cache.Config{
		Store: store, Name: "snapshots", TTL: cfg.SnapshotTTL, Capacity: cfg.SnapshotCacheCapacity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot cache: %w", err)
	}
	priceLists, err := cache.New[[]model.PriceListEntry](cache.Config{
		Store: store, Name: "pricelist", TTL: cfg.PriceListTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build price-list cache: %w", err)
	}
	carts, err := cache.New[[]ledger.CartLine](cache.Config{
		Store: store, Name: "carts", TTL: cfg.CartTTL, Capacity: cfg.CartCacheCapacity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build cart cache: %w", err)
	}

	mode := ProfitModeMarket
	if cfg.ProfitMode == string(ProfitModeBazaar) {
		mode = ProfitModeBazaar
	}

	return &Orchestrator{
		catalogSvc:   catalogSvc,
		pricingSvc:   pricingSvc,
		source:       source,
		sched:        sched,
		logger:       logger,
		catalogCache: catalogCache,
		snapshots:    snapshots,
		priceLists:   priceLists,
		carts:        carts,
		priceList:    make(map[int]model.PriceListEntry),
		lines:        make(map[string]model.LedgerLine),
		mode:         mode,
		inflight:     make(map[int]*inflightCall),
		cfg:          cfg,
	}, nil
}

// Start initializes identity, catalog, and price list, then begins
// watching the trade log and auto-refreshing the price list.
func (o *Orchestrator) Start(ctx context.Context) error {
	self, err := o.catalogSvc.FetchSelf(ctx, o.cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to identify user: %w", err)
	}
	o.mu.Lock()
	o.self = self
	o.mu.Unlock()

	if err := o.loadCatalog(ctx, false); err != nil {
		if errors.Is(err, common.ErrCredentialRejected) {
			return err
		}
		// Transient: surface as status, retry on the next natural trigger.
		o.setStatus("Catalog load failed: " + err.Error())
	}
	if err := o.RefreshPriceList(ctx, false); err != nil {
		o.setStatus("Price list load failed: " + err.Error())
	}

	o.engine = ledger.NewEngine(o.source, ledger.Config{
		SelfID:       self.ID,
		PollInterval: o.cfg.PollInterval,
	}, o.logger)
	o.engine.OnChange(o.handleUpdate)
	if err := o.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start ledger engine: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.wg.Add(1)
	go o.autoRefreshPriceList(runCtx)

	o.logger.Info("pricing orchestrator started", "user", self.Name, "user_id", self.ID)
	return nil
}

// Stop shuts down the engine and background refresh.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}
	if o.engine != nil {
		if err := o.engine.Stop(ctx); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync forces one synchronous reconciliation pass. Useful for one-shot
// commands that cannot wait for the poll cadence.
func (o *Orchestrator) Sync() {
	if o.engine != nil {
		o.engine.Sync()
	}
}

// OnChange registers a consumer notification callback. Callbacks receive
// no payload; consumers pull the current view via LedgerView. Redundant
// notifications are possible and must be tolerated.
func (o *Orchestrator) OnChange(fn func()) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// Status returns the last surfaced status string.
func (o *Orchestrator) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// SetProfitMode switches the profit base between market and bazaar.
func (o *Orchestrator) SetProfitMode(mode ProfitMode) {
	o.mu.Lock()
	o.mode = mode
	o.mu.Unlock()
	o.notify()
}

// SetFeeCut toggles the 5% market fee discount on the profit base.
func (o *Orchestrator) SetFeeCut(on bool) {
	o.mu.Lock()
	o.feeCut = on
	o.mu.Unlock()
	o.notify()
}

// Counterparty returns the detected trading counterparty, if any.
func (o *Orchestrator) Counterparty() *model.Counterparty {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counterparty == nil {
		return nil
	}
	c := *o.counterparty
	return &c
}

// LedgerView computes the quote for every current ledger line, sorted by
// display name. Unresolved figures stay zero-valued.
func (o *Orchestrator) LedgerView() []Quote {
	o.mu.Lock()
	idx := o.index
	mode := o.mode
	feeCut := o.feeCut
	lines := make([]model.LedgerLine, 0, len(o.lines))
	for _, l := range o.lines {
		lines = append(lines, l)
	}
	priceList := o.priceList
	o.mu.Unlock()

	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })

	ctx := context.Background()
	quotes := make([]Quote, 0, len(lines))
	for _, line := range lines {
		var itemID int
		category := model.CategoryOther
		displayLine := line
		if idx != nil {
			itemID = idx.Resolve(line.Name)
			if entry, ok := idx.Entry(itemID); ok {
				category = entry.Category
				displayLine.Name = catalog.StripStackSuffix(entry.Name, itemID)
			}
		}

		var plEntry *model.PriceListEntry
		if e, ok := priceList[itemID]; ok {
			plEntry = &e
		}

		var record *model.PriceRecord
		if itemID > 0 {
			if rec, ok, err := o.snapshots.Read(ctx, strconv.Itoa(itemID)); ok {
				record = &rec
			} else if err != nil {
				o.logger.Debug("snapshot cache miss with error", "item_id", itemID, "error", err)
			}
		}

		quotes = append(quotes, ComputeQuote(displayLine, itemID, category, plEntry, record, mode, feeCut))
	}
	return quotes
}

// PriceList returns the currently loaded price list entries, sorted by
// item name.
func (o *Orchestrator) PriceList() []model.PriceListEntry {
	o.mu.Lock()
	out := make([]model.PriceListEntry, 0, len(o.priceList))
	for _, e := range o.priceList {
		out = append(out, e)
	}
	o.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RefreshCatalog forces a catalog rebuild, bypassing the 7-day TTL.
func (o *Orchestrator) RefreshCatalog(ctx context.Context) error {
	if err := o.catalogCache.Flush(ctx); err != nil {
		o.logger.Warn("Failed to flush catalog cache", "error", err)
	}
	return o.loadCatalog(ctx, true)
}

// RefreshPriceList loads the user's price list, honoring the cache TTL
// unless force is set.
func (o *Orchestrator) RefreshPriceList(ctx context.Context, force bool) error {
	if !force {
		if list, ok, err := o.priceLists.Read(ctx, priceListKey); ok {
			o.installPriceList(list)
			return nil
		} else if err != nil {
			o.logger.Warn("Price-list cache unreadable, refetching", "error", err)
		}
	}

	o.mu.Lock()
	userID := o.self.ID
	o.mu.Unlock()

	list, err := o.pricingSvc.FetchPriceList(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to fetch price list: %w", err)
	}
	list = o.enrichPriceList(list)
	if err := o.priceLists.Write(ctx, priceListKey, list); err != nil {
		o.logger.Warn("Failed to persist price list", "error", err)
	}
	o.installPriceList(list)
	o.notify()
	return nil
}

// CompleteSession submits a receipt for the current ledger and clears the
// session's cart cache. Returns the receipt URL when the service provides
// one.
func (o *Orchestrator) CompleteSession(ctx context.Context) (string, error) {
	o.mu.Lock()
	idx := o.index
	self := o.self
	tradeKey := o.tradeKey
	counterparty := self.Name
	if o.counterparty != nil && strings.TrimSpace(o.counterparty.Name) != "" {
		counterparty = strings.TrimSpace(o.counterparty.Name)
	}
	lines := make([]model.LedgerLine, 0, len(o.lines))
	for _, l := range o.lines {
		lines = append(lines, l)
	}
	o.mu.Unlock()

	if idx == nil {
		return "", fmt.Errorf("catalog not loaded")
	}

	items := make([]service.ReceiptItem, 0, len(lines))
	for _, line := range lines {
		if id := idx.Resolve(line.Name); id > 0 {
			items = append(items, service.ReceiptItem{ItemID: id, Quantity: line.Quantity})
		}
	}

	sessionID := strings.TrimPrefix(tradeKey, "id:")
	if sessionID == "" || strings.HasPrefix(tradeKey, "sig:") {
		sessionID = uuid.NewString()
	}

	url, err := o.pricingSvc.SubmitReceipt(ctx, self.ID, counterparty, sessionID, items)
	if err != nil {
		return "", fmt.Errorf("failed to submit receipt: %w", err)
	}

	if tradeKey != "" {
		if err := o.carts.Invalidate(ctx, tradeKey); err != nil {
			o.logger.Warn("Failed to clear cart cache", "trade_key", tradeKey, "error", err)
		}
	}
	o.setStatus("Trade saved.")
	return url, nil
}

// CachedCart returns the persisted cart for a session key, if still fresh.
func (o *Orchestrator) CachedCart(ctx context.Context, tradeKey string) ([]ledger.CartLine, bool) {
	cart, ok, err := o.carts.Read(ctx, tradeKey)
	if err != nil {
		o.logger.Debug("cart cache read failed", "trade_key", tradeKey, "error", err)
		return nil, false
	}
	return cart, ok
}

// Prefetch resolves every ledger line and fetches any snapshot that is
// missing from the caches, deduplicating against in-flight fetches. It
// blocks until the batch lands; each landed fetch notifies the consumer.
func (o *Orchestrator) Prefetch(ctx context.Context, lines map[string]model.LedgerLine) {
	o.mu.Lock()
	idx := o.index
	o.mu.Unlock()
	if idx == nil {
		return
	}

	ids := make(map[int]struct{})
	for _, line := range lines {
		if id := idx.Resolve(line.Name); id > 0 {
			ids[id] = struct{}{}
		}
	}

	var wg sync.WaitGroup
	for id := range ids {
		wg.Add(1)
		go func(itemID int) {
			defer wg.Done()
			if _, _, err := o.ensureSnapshot(ctx, itemID); err != nil {
				o.logger.Warn("Snapshot fetch failed", "item_id", itemID, "error", err)
				return
			}
			o.notify()
		}(id)
	}
	wg.Wait()
	o.notify()
}

// ensureSnapshot returns a fresh snapshot for itemID, from cache when
// possible. Concurrent callers for the same id share one fetch: the
// in-flight registry is consulted before anything is scheduled, and the
// entry is cleared unconditionally on completion so a later miss retries.
func (o *Orchestrator) ensureSnapshot(ctx context.Context, itemID int) (model.PriceRecord, bool, error) {
	key := strconv.Itoa(itemID)
	if rec, ok, err := o.snapshots.Read(ctx, key); ok {
		return rec, true, nil
	} else if err != nil {
		o.logger.Debug("snapshot cache read failed", "item_id", itemID, "error", err)
	}

	o.inflightMu.Lock()
	if call, ok := o.inflight[itemID]; ok {
		o.inflightMu.Unlock()
		select {
		case <-call.done:
			return call.record, call.err == nil, call.err
		case <-ctx.Done():
			return model.PriceRecord{}, false, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	o.inflight[itemID] = call
	o.inflightMu.Unlock()

	call.err = o.sched.Do(ctx, func(taskCtx context.Context) error {
		record, err := o.pricingSvc.FetchSnapshot(taskCtx, itemID)
		if err != nil {
			return err
		}
		record.Sanitize()
		if err := o.snapshots.Write(taskCtx, key, record); err != nil {
			o.logger.Warn("Failed to persist snapshot", "item_id", itemID, "error", err)
		}
		call.record = record
		return nil
	})

	o.inflightMu.Lock()
	delete(o.inflight, itemID)
	o.inflightMu.Unlock()
	close(call.done)

	return call.record, call.err == nil, call.err
}

// handleUpdate is the ledger engine's change listener: it installs the
// new ledger, persists the session cart, and prefetches pricing for it.
func (o *Orchestrator) handleUpdate(u ledger.Update) {
	ctx := context.Background()

	// Restore the cached cart only when the log itself is unreadable (no
	// entries at all, as after a replacement that has not been rewritten
	// yet). An empty ledger reconciled from a readable log is a genuine
	// remove-all and must be presented and persisted as empty.
	restored := false
	if len(u.Lines) == 0 && u.TradeKey != "" && len(o.source.Entries()) == 0 {
		if cart, ok := o.CachedCart(ctx, u.TradeKey); ok && len(cart) > 0 {
			u.Lines = ledger.FromCart(cart).Lines()
			restored = true
		}
	}

	o.mu.Lock()
	o.lines = u.Lines
	if u.Counterparty != nil {
		o.counterparty = u.Counterparty
	}
	o.tradeKey = u.TradeKey
	o.mu.Unlock()

	cart := make([]ledger.CartLine, 0, len(u.Lines))
	for _, line := range u.Lines {
		if strings.TrimSpace(line.Name) == "" || line.Quantity <= 0 {
			continue
		}
		cart = append(cart, ledger.CartLine{Name: line.Name, Quantity: line.Quantity})
	}
	if u.TradeKey != "" && !restored {
		if err := o.carts.Write(ctx, u.TradeKey, cart); err != nil {
			o.logger.Warn("Failed to persist cart", "trade_key", u.TradeKey, "error", err)
		}
	}

	go o.Prefetch(ctx, u.Lines)
	o.notify()
}

func (o *Orchestrator) loadCatalog(ctx context.Context, force bool) error {
	if !force {
		if idx, ok, err := o.catalogCache.Read(ctx, catalogIndexKey); ok {
			o.mu.Lock()
			o.index = &idx
			o.mu.Unlock()
			return nil
		} else if err != nil {
			o.logger.Warn("Catalog cache unreadable, refetching", "error", err)
		}
	}

	items, err := o.catalogSvc.FetchCatalog(ctx, o.cfg.APIKey)
	if err != nil {
		// Keep the last known index; TTL expiry or an explicit refresh
		// retries later.
		return err
	}
	idx := catalog.NewIndex(items, time.Now())
	if err := o.catalogCache.Write(ctx, catalogIndexKey, *idx); err != nil {
		o.logger.Warn("Failed to persist catalog index", "error", err)
	}

	o.mu.Lock()
	o.index = idx
	o.mu.Unlock()
	o.notify()
	return nil
}

func (o *Orchestrator) autoRefreshPriceList(ctx context.Context) {
	defer o.wg.Done()

	interval := o.cfg.PriceListRefresh
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.RefreshPriceList(ctx, true); err != nil {
				o.setStatus("Price list auto-refresh failed: " + err.Error())
			}
		}
	}
}

func (o *Orchestrator) enrichPriceList(list []model.PriceListEntry) []model.PriceListEntry {
	o.mu.Lock()
	idx := o.index
	o.mu.Unlock()
	if idx == nil {
		return list
	}
	for i, e := range list {
		if entry, ok := idx.Entry(e.ItemID); ok && strings.HasPrefix(e.Name, "Item ") {
			list[i].Name = entry.Name
		}
	}
	return list
}

func (o *Orchestrator) installPriceList(list []model.PriceListEntry) {
	m := make(map[int]model.PriceListEntry, len(list))
	for _, e := range list {
		m[e.ItemID] = e
	}
	o.mu.Lock()
	o.priceList = m
	o.mu.Unlock()
}

func (o *Orchestrator) setStatus(s string) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) notify() {
	o.mu.Lock()
	listeners := make([]func(), len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
