// Package auxpool maintains a replenished buffer of pre-generated auxiliary
// cryptographic material, hiding generation latency (seconds to minutes)
// from ceremony latency (target ~1s).
//
// Entries are consumed strictly FIFO and at most once: an entry is deleted
// from durable storage synchronously with its consumption, so a crash
// between the two can lose an entry but never hand the same Paillier
// parameters to two ceremonies.
package auxpool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/quorumkey/quorumkey/module"
	"github.com/quorumkey/quorumkey/module/secret"
	"github.com/quorumkey/quorumkey/storage"
)

const (
	manifestPath    = "auxpool/manifest"
	entryPathPrefix = "auxpool/entries/"

	manifestVersion = 1
)

// Config holds the pool tunables.
type Config struct {
	// TargetSize is the number of entries the pool replenishes towards.
	TargetSize int
	// LowWatermark triggers replenishment when the pool shrinks to or below it.
	LowWatermark int
	// MaxGenerators bounds concurrent background generation tasks.
	MaxGenerators int
	// GenTimeout is the hard deadline for one generation task.
	GenTimeout time.Duration
	// MonitorInterval is the period of the background watermark check.
	MonitorInterval time.Duration
	// Parties is the participant count the material is generated for.
	Parties int
}

func DefaultConfig() Config {
	return Config{
		TargetSize:      10,
		LowWatermark:    3,
		MaxGenerators:   2,
		GenTimeout:      5 * time.Minute,
		MonitorInterval: 30 * time.Second,
		Parties:         3,
	}
}

// Entry is one pre-generated auxiliary-material blob.
type Entry struct {
	ID        string
	CreatedAt time.Time
	Data      []byte
}

type manifestEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

type manifest struct {
	Version int             `json:"version"`
	Entries []manifestEntry `json:"entries"`
}

// Pool is the long-lived auxiliary-material buffer. All mutation of the
// entry list and generator accounting happens under one mutex; generation
// itself runs on a bounded worker pool whose task completion is always
// observed.
type Pool struct {
	log     zerolog.Logger
	cfg     Config
	scheme  module.ThresholdScheme
	store   storage.ShareStore
	metrics module.PoolMetrics

	mu      sync.Mutex
	entries []*Entry

	active  *atomic.Int32
	workers *workerpool.WorkerPool

	kick chan struct{}
	done chan struct{}
}

// New creates the pool. scheme may be nil, in which case the pool never
// generates and reports healthy on emptiness (absence alone is not unhealthy
// if generation can never happen).
func New(
	log zerolog.Logger,
	cfg Config,
	scheme module.ThresholdScheme,
	store storage.ShareStore,
	metrics module.PoolMetrics,
) *Pool {
	return &Pool{
		log:     log.With().Str("component", "auxinfo_pool").Logger(),
		cfg:     cfg,
		scheme:  scheme,
		store:   store,
		metrics: metrics,
		active:  atomic.NewInt32(0),
		workers: workerpool.New(cfg.MaxGenerators),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start loads the durable pool state and launches the replenishment monitor.
func (p *Pool) Start(ctx context.Context) {
	p.loadFromStorage(ctx)
	go p.monitorLoop(ctx)
}

// Done returns a channel closed once the monitor has exited and all in-flight
// generators have finished.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// Take pops the oldest entry, removing it from durable storage before
// returning. It returns nil when the pool is empty; callers treat that as a
// normal cold-start case, not an error.
func (p *Pool) Take(ctx context.Context) *Entry {

	p.mu.Lock()
	if len(p.entries) == 0 {
		p.mu.Unlock()
		return nil
	}
	entry := p.entries[0]
	p.entries = p.entries[1:]
	size := len(p.entries)
	p.mu.Unlock()

	// The durable copy must be gone before the entry is handed out. If
	// deletion fails we log and continue: correctness favors "never reuse"
	// over "never lose", and the in-memory pop already guarantees this
	// process will not serve the entry twice.
	err := p.store.DeleteShare(ctx, entryPath(entry.ID))
	if err != nil {
		p.log.Error().Err(err).Str("entry", entry.ID).Msg("could not delete consumed pool entry from storage")
	}
	if err := p.persistManifest(ctx); err != nil {
		p.log.Error().Err(err).Msg("could not update pool manifest after take")
	}

	p.metrics.PoolEntryConsumed()
	p.metrics.PoolSize(uint(size))
	p.log.Debug().Str("entry", entry.ID).Int("remaining", size).Msg("pool entry consumed")

	// nudge the monitor so replenishment does not wait for the next tick
	select {
	case p.kick <- struct{}{}:
	default:
	}

	return entry
}

// Size returns the current number of pooled entries.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Healthy reports whether the pool can serve its purpose: it holds entries,
// or it could never generate any in the first place.
func (p *Pool) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries) > 0 || p.scheme == nil
}

func (p *Pool) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.MonitorInterval)
	defer ticker.Stop()

	// check immediately on startup
	p.checkWatermark(ctx)

	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return
		case <-ticker.C:
			p.checkWatermark(ctx)
		case <-p.kick:
			p.checkWatermark(ctx)
		}
	}
}

// checkWatermark spawns generators when the pool has drained to the low
// watermark, bounded so that pooled entries plus in-flight generators never
// exceed the target size.
func (p *Pool) checkWatermark(ctx context.Context) {
	if p.scheme == nil {
		return
	}

	p.mu.Lock()
	size := len(p.entries)
	p.mu.Unlock()

	active := int(p.active.Load())
	if size > p.cfg.LowWatermark || size+active >= p.cfg.TargetSize {
		return
	}

	deficit := p.cfg.TargetSize - size - active
	free := p.cfg.MaxGenerators - active
	spawn := deficit
	if free < spawn {
		spawn = free
	}

	for i := 0; i < spawn; i++ {
		p.active.Inc()
		p.metrics.PoolGenerationStarted()
		p.workers.Submit(func() {
			p.runGenerator(ctx)
		})
	}

	if spawn > 0 {
		p.log.Info().
			Int("size", size).
			Int("active", active).
			Int("spawned", spawn).
			Msg("replenishing auxiliary-material pool")
	}
}

// runGenerator produces one pool entry. The active-generator count is
// decremented in all outcomes; a failed or timed-out generation is logged
// and left to the next monitor tick, never retried in a tight loop.
func (p *Pool) runGenerator(ctx context.Context) {
	start := time.Now()
	success := false
	defer func() {
		p.active.Dec()
		p.metrics.PoolGenerationFinished(success, time.Since(start))
	}()

	genCtx, cancel := context.WithTimeout(ctx, p.cfg.GenTimeout)
	defer cancel()

	data, err := p.scheme.GenerateAuxInfo(genCtx, p.cfg.Parties)
	if err != nil {
		p.log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("auxiliary-material generation failed")
		return
	}

	if err := validateAuxInfo(data, p.cfg.Parties); err != nil {
		p.log.Error().Err(err).Msg("generated auxiliary material failed validation")
		return
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Data:      data,
	}

	if err := p.store.StoreShare(ctx, entryPath(entry.ID), entry.Data); err != nil {
		p.log.Error().Err(err).Str("entry", entry.ID).Msg("could not persist generated pool entry")
		return
	}

	p.mu.Lock()
	p.entries = append(p.entries, entry)
	size := len(p.entries)
	p.mu.Unlock()

	if err := p.persistManifest(ctx); err != nil {
		p.log.Error().Err(err).Msg("could not persist pool manifest")
	}

	p.metrics.PoolSize(uint(size))
	p.log.Info().
		Str("entry", entry.ID).
		Int("size", size).
		Dur("elapsed", time.Since(start)).
		Msg("auxiliary-material entry generated")

	success = true
}

// loadFromStorage rebuilds the in-memory pool from the manifest. A missing
// or corrupt manifest yields an empty pool; corrupt or missing entries are
// skipped and the manifest is rewritten without them.
func (p *Pool) loadFromStorage(ctx context.Context) {

	raw, err := p.store.GetShare(ctx, manifestPath)
	if err != nil {
		if err != storage.ErrNotFound {
			p.log.Warn().Err(err).Msg("could not load pool manifest, starting empty")
		}
		return
	}

	var mf manifest
	if err := json.Unmarshal(raw, &mf); err != nil {
		p.log.Warn().Err(err).Msg("pool manifest corrupt, starting empty")
		return
	}

	var loaded []*Entry
	dropped := 0
	for _, me := range mf.Entries {
		data, err := p.store.GetShare(ctx, entryPath(me.ID))
		if err != nil {
			p.log.Warn().Err(err).Str("entry", me.ID).Msg("skipping unloadable pool entry")
			dropped++
			continue
		}
		if err := validateAuxInfo(data, p.cfg.Parties); err != nil {
			p.log.Warn().Err(err).Str("entry", me.ID).Msg("skipping corrupt pool entry")
			dropped++
			continue
		}
		loaded = append(loaded, &Entry{ID: me.ID, CreatedAt: me.CreatedAt, Data: data})
	}

	p.mu.Lock()
	p.entries = loaded
	p.mu.Unlock()

	if dropped > 0 {
		if err := p.persistManifest(ctx); err != nil {
			p.log.Error().Err(err).Msg("could not rewrite pool manifest after dropping entries")
		}
	}

	p.metrics.PoolSize(uint(len(loaded)))
	p.log.Info().Int("loaded", len(loaded)).Int("dropped", dropped).Msg("auxiliary-material pool loaded")
}

// persistManifest writes the manifest reflecting the current entry list.
func (p *Pool) persistManifest(ctx context.Context) error {
	p.mu.Lock()
	mf := manifest{Version: manifestVersion}
	for _, entry := range p.entries {
		mf.Entries = append(mf.Entries, manifestEntry{ID: entry.ID, CreatedAt: entry.CreatedAt})
	}
	p.mu.Unlock()

	raw, err := json.Marshal(mf)
	if err != nil {
		return fmt.Errorf("could not encode pool manifest: %w", err)
	}
	if err := p.store.StoreShare(ctx, manifestPath, raw); err != nil {
		return fmt.Errorf("could not store pool manifest: %w", err)
	}
	return nil
}

// shutdown drains the workers and clears in-memory entries. Durable copies
// remain for the next process to reload.
func (p *Pool) shutdown() {
	p.workers.StopWait()

	p.mu.Lock()
	for _, entry := range p.entries {
		secret.Zero(entry.Data)
	}
	p.entries = nil
	p.mu.Unlock()

	close(p.done)
	p.log.Info().Msg("auxiliary-material pool stopped")
}

// validateAuxInfo checks the structural shape of generated material: a JSON
// array with one entry per party.
func validateAuxInfo(data []byte, parties int) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("auxiliary material does not parse: %w", err)
	}
	if len(entries) < parties {
		return fmt.Errorf("auxiliary material has %d entries, need at least %d", len(entries), parties)
	}
	return nil
}

func entryPath(id string) string {
	return entryPathPrefix + id
}
