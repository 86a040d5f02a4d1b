// Package importer owns the in-memory service-order collection: it warm
// starts from the cache, reconciles against the store and runs uploads.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hercules-motores/service-analytics/internal/cache"
	"github.com/hercules-motores/service-analytics/internal/decode"
	"github.com/hercules-motores/service-analytics/internal/orders"
	"github.com/hercules-motores/service-analytics/internal/store"
)

const (
	cacheKeyOrders   = "imported_data"
	cacheKeyMetadata = "import_metadata"
)

type State string

const (
	StateIdle        State = "idle"
	StateLoading     State = "loading"
	StateReconciling State = "reconciling"
)

// Source tells where a snapshot came from.
const (
	SourceEmpty  = "empty"
	SourceCache  = "cache"
	SourceStore  = "store"
	SourceImport = "import"
)

// Snapshot is an immutable, fully built collection. Version increases with
// every commit.
type Snapshot struct {
	Version  uint64
	Orders   []orders.ServiceOrder
	Metadata *orders.ImportMetadata
	Rejected int
	Source   string
	LoadedAt time.Time
}

type ImportResult struct {
	Metadata       orders.ImportMetadata `json:"metadata"`
	Rows           int                   `json:"rows"`
	Orders         int                   `json:"orders"`
	Rejected       int                   `json:"rejected"`
	Rejections     []orders.Rejection    `json:"rejections,omitempty"`
	MissingColumns []string              `json:"missingColumns,omitempty"`
}

// maxReportedRejections bounds the rejection detail returned to callers.
const maxReportedRejections = 50

type Options struct {
	Store     store.Store
	Cache     cache.Cache
	Decoder   decode.Decoder
	Validator *orders.Validator
	Scope     string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Orchestrator serializes writers through an import generation: every
// import bumps it, and any result computed under an older generation is
// discarded instead of committed.
type Orchestrator struct {
	store     store.Store
	cache     cache.Cache
	decoder   decode.Decoder
	validator *orders.Validator
	scope     string
	logger    *slog.Logger
	now       func() time.Time

	importMu sync.Mutex

	mu         sync.Mutex
	generation uint64
	importing  int
	active     int
	state      State
	version    uint64

	snap atomic.Pointer[Snapshot]
}

func New(opts Options) *Orchestrator {
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}
	if opts.Validator == nil {
		opts.Validator = orders.NewValidator(nil)
	}
	if opts.Scope == "" {
		opts.Scope = "default"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	o := &Orchestrator{
		store:     opts.Store,
		cache:     opts.Cache,
		decoder:   opts.Decoder,
		validator: opts.Validator,
		scope:     opts.Scope,
		logger:    opts.Logger,
		now:       opts.Now,
		state:     StateIdle,
	}
	o.snap.Store(&Snapshot{Source: SourceEmpty, LoadedAt: opts.Now()})
	return o
}

// Snapshot returns the committed collection. It never blocks and never
// returns nil.
func (o *Orchestrator) Snapshot() *Snapshot {
	return o.snap.Load()
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Importing reports whether an upload is being processed.
func (o *Orchestrator) Importing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.importing > 0
}

// Load warm starts from the cache and then reconciles with the store: if the
// stored import matches the current or cached metadata nothing is committed,
// otherwise the full collection is fetched.
func (o *Orchestrator) Load(ctx context.Context) error {
	token, err := o.begin(StateLoading)
	if err != nil {
		return err
	}
	defer o.end()

	var (
		cached *Snapshot
		remote *orders.ImportMetadata
	)
	// A collection already in memory is compared as is; the cache only warm
	// starts an empty view.
	if current := o.snap.Load(); current.Metadata != nil {
		cached = current
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if cached != nil {
			return nil
		}
		snap, ok := o.readCache(gctx)
		if !ok {
			return nil
		}
		if err := o.commit(token, snap, false); err != nil {
			return nil
		}
		cached = snap
		o.logger.Info("cache_hit", "scope", o.scope, "orders", len(snap.Orders), "filename", snap.Metadata.Filename)
		return nil
	})
	g.Go(func() error {
		meta, err := o.store.FetchMetadata(gctx, o.scope)
		if err != nil {
			return &FetchError{Err: err}
		}
		remote = meta
		return nil
	})
	if err := g.Wait(); err != nil {
		o.logger.Warn("reconcile_failed", "scope", o.scope, "error", err)
		return err
	}

	o.setState(StateReconciling)
	if cached != nil && remote != nil && cached.Metadata.SameImport(*remote) {
		o.logger.Info("cache_current", "scope", o.scope, "filename", remote.Filename)
		return nil
	}
	if remote == nil {
		_, err := o.commitEmpty(ctx, token, false)
		return err
	}

	o.setState(StateLoading)
	_, err = o.refresh(ctx, token, false, 0)
	return err
}

// Reload refetches the stored import unconditionally.
func (o *Orchestrator) Reload(ctx context.Context) error {
	token, err := o.begin(StateLoading)
	if err != nil {
		return err
	}
	defer o.end()

	_, err = o.refresh(ctx, token, false, 0)
	return err
}

// Clear drops the cache and the in-memory collection. The store is left
// untouched, so the next Load brings the data back.
func (o *Orchestrator) Clear(ctx context.Context) error {
	o.mu.Lock()
	if o.importing > 0 {
		o.mu.Unlock()
		return ErrImportInFlight
	}
	o.generation++
	token := o.generation
	o.mu.Unlock()

	if err := o.cache.Clear(ctx); err != nil {
		o.logger.Warn("cache_clear_failed", "scope", o.scope, "error", err)
	}
	if err := o.commit(token, &Snapshot{Source: SourceEmpty}, false); err != nil {
		return err
	}
	o.logger.Info("view_cleared", "scope", o.scope)
	return nil
}

// Import runs an upload through decode, validation and persistence, then
// reloads from the store. On failure the previously committed collection is
// put back.
func (o *Orchestrator) Import(ctx context.Context, filename string, payload []byte) (ImportResult, error) {
	filename = filepath.Base(filename)
	if _, err := decode.FormatOf(filename); err != nil {
		return ImportResult{}, &decode.DecodeError{Err: fmt.Errorf("%w: %q", err, filepath.Ext(filename))}
	}

	o.importMu.Lock()
	defer o.importMu.Unlock()

	o.mu.Lock()
	o.generation++
	token := o.generation
	o.importing++
	o.active++
	o.state = StateLoading
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.importing--
		o.mu.Unlock()
		o.end()
	}()

	lastGood := o.snap.Load()
	if err := o.cache.Clear(ctx); err != nil {
		o.logger.Warn("cache_clear_failed", "scope", o.scope, "error", err)
	}
	_ = o.commit(token, &Snapshot{Source: SourceEmpty}, true)

	table, err := o.decoder.Decode(filename, payload)
	if err != nil {
		o.restore(ctx, token, lastGood, true)
		return ImportResult{}, err
	}

	rows, rejections := o.validator.NormalizeAll(table.Rows)
	result := ImportResult{
		Rejected:       len(rejections),
		MissingColumns: o.validator.Schema.MissingColumns(table.Headers),
	}
	if len(rejections) > maxReportedRejections {
		result.Rejections = rejections[:maxReportedRejections]
	} else {
		result.Rejections = rejections
	}
	if len(rows) == 0 {
		o.restore(ctx, token, lastGood, true)
		return result, ErrNoValidRows
	}

	meta := orders.ImportMetadata{Filename: filename, ImportedAt: o.now().UTC()}
	written, err := o.store.ReplaceImport(ctx, o.scope, rows, meta)
	if err != nil {
		o.restore(ctx, token, lastGood, true)
		o.logger.Error("import_persist_failed", "scope", o.scope, "filename", filename, "error", err)
		return result, &PersistError{Err: err}
	}
	result.Metadata = meta
	result.Rows = written

	snap, err := o.refresh(ctx, token, true, len(rejections))
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			// The upload is stored; only the view falls back.
			o.restore(ctx, token, lastGood, false)
		}
		return result, err
	}
	result.Orders = len(snap.Orders)

	o.logger.Info("import_completed",
		"scope", o.scope,
		"filename", filename,
		"format", table.Format,
		"rows", written,
		"orders", result.Orders,
		"rejected", result.Rejected,
		"missing_columns", len(result.MissingColumns),
	)
	return result, nil
}

// refresh fetches the stored import, rebuilds the collection and commits it
// under token. rejected carries rows already dropped before persisting.
func (o *Orchestrator) refresh(ctx context.Context, token uint64, fromImport bool, rejected int) (*Snapshot, error) {
	ds, err := o.store.FetchAll(ctx, o.scope)
	if err != nil {
		o.logger.Warn("fetch_failed", "scope", o.scope, "error", err)
		return nil, &FetchError{Err: err}
	}
	if ds.Metadata == nil {
		return o.commitEmpty(ctx, token, fromImport)
	}

	valid := make([]orders.Row, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		if o.validator.Check(row) != nil {
			rejected++
			continue
		}
		valid = append(valid, row)
	}

	snap := &Snapshot{
		Orders:   orders.Deduplicate(valid),
		Metadata: ds.Metadata,
		Rejected: rejected,
		Source:   SourceStore,
	}
	if fromImport {
		snap.Source = SourceImport
	}
	if err := o.commit(token, snap, fromImport); err != nil {
		o.logger.Info("reload_superseded", "scope", o.scope, "filename", ds.Metadata.Filename)
		return nil, err
	}
	o.writeCache(ctx, snap)
	return snap, nil
}

func (o *Orchestrator) commitEmpty(ctx context.Context, token uint64, fromImport bool) (*Snapshot, error) {
	snap := &Snapshot{Source: SourceEmpty}
	if err := o.commit(token, snap, fromImport); err != nil {
		return nil, err
	}
	if err := o.cache.Clear(ctx); err != nil {
		o.logger.Warn("cache_clear_failed", "scope", o.scope, "error", err)
	}
	return snap, nil
}

// commit publishes snap if token is still the current generation. Commits
// from outside an import are also refused while one is running.
func (o *Orchestrator) commit(token uint64, snap *Snapshot, fromImport bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if token != o.generation {
		return ErrSuperseded
	}
	if !fromImport && o.importing > 0 {
		return ErrSuperseded
	}
	o.version++
	snap.Version = o.version
	snap.LoadedAt = o.now()
	o.snap.Store(snap)
	return nil
}

// restore puts lastGood back after a failed import. The cache is rewritten
// only when the store still holds the data lastGood was built from.
func (o *Orchestrator) restore(ctx context.Context, token uint64, lastGood *Snapshot, storeUnchanged bool) {
	back := *lastGood
	if err := o.commit(token, &back, true); err != nil {
		return
	}
	if storeUnchanged && back.Metadata != nil {
		o.writeCache(ctx, &back)
	}
	o.logger.Info("view_restored", "scope", o.scope, "orders", len(back.Orders))
}

func (o *Orchestrator) begin(state State) (uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.importing > 0 {
		return 0, ErrImportInFlight
	}
	o.active++
	o.state = state
	return o.generation, nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active--
	if o.active == 0 {
		o.state = StateIdle
	}
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.importing == 0 {
		o.state = state
	}
}

// cachedMetadata is the import_metadata blob: the upload identity plus the
// rows dropped while building the cached collection.
type cachedMetadata struct {
	orders.ImportMetadata
	Rejected int `json:"rejected,omitempty"`
}

func (o *Orchestrator) readCache(ctx context.Context) (*Snapshot, bool) {
	rawMeta, ok, err := o.cache.Get(ctx, cacheKeyMetadata)
	if err != nil || !ok {
		return nil, false
	}
	rawOrders, ok, err := o.cache.Get(ctx, cacheKeyOrders)
	if err != nil || !ok {
		return nil, false
	}

	var meta cachedMetadata
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		o.logger.Warn("cache_corrupt", "key", cacheKeyMetadata, "error", err)
		return nil, false
	}
	var list []orders.ServiceOrder
	if err := json.Unmarshal(rawOrders, &list); err != nil {
		o.logger.Warn("cache_corrupt", "key", cacheKeyOrders, "error", err)
		return nil, false
	}
	return &Snapshot{Orders: list, Metadata: &meta.ImportMetadata, Rejected: meta.Rejected, Source: SourceCache}, true
}

func (o *Orchestrator) writeCache(ctx context.Context, snap *Snapshot) {
	if snap.Metadata == nil {
		return
	}
	rawOrders, err := json.Marshal(snap.Orders)
	if err != nil {
		o.logger.Warn("cache_write_failed", "error", err)
		return
	}
	rawMeta, err := json.Marshal(cachedMetadata{ImportMetadata: *snap.Metadata, Rejected: snap.Rejected})
	if err != nil {
		o.logger.Warn("cache_write_failed", "error", err)
		return
	}
	// Orders first: a reader only trusts the cache once metadata exists.
	if err := o.cache.Set(ctx, cacheKeyOrders, rawOrders); err != nil {
		o.logger.Warn("cache_write_failed", "key", cacheKeyOrders, "error", err)
		return
	}
	if err := o.cache.Set(ctx, cacheKeyMetadata, rawMeta); err != nil {
		o.logger.Warn("cache_write_failed", "key", cacheKeyMetadata, "error", err)
	}
}
