package auxpool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumkey/quorumkey/module/metrics"
	"github.com/quorumkey/quorumkey/utils/unittest"
	"github.com/quorumkey/quorumkey/utils/unittest/mocks"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TargetSize = 4
	cfg.LowWatermark = 2
	cfg.MaxGenerators = 2
	cfg.MonitorInterval = 10 * time.Millisecond
	cfg.GenTimeout = time.Second
	return cfg
}

// newPool builds a pool with the test config. A nil *mocks.Scheme becomes a
// nil interface so the pool treats it as "generation disabled".
func newPool(scheme *mocks.Scheme, store *mocks.ShareStore) *Pool {
	if store == nil {
		store = mocks.NewShareStore()
	}
	if scheme == nil {
		return New(unittest.Logger(), testConfig(), nil, store, metrics.NewNoopCollector())
	}
	return New(unittest.Logger(), testConfig(), scheme, store, metrics.NewNoopCollector())
}

func TestPool_ReplenishesToTarget(t *testing.T) {
	scheme := &mocks.Scheme{}
	store := mocks.NewShareStore()
	pool := newPool(scheme, store)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	unittest.Eventually(t, 2*time.Second, func() bool {
		return pool.Size() == 4
	})
	assert.True(t, pool.Healthy())

	// every entry and the manifest are durably stored
	raw, err := store.GetShare(ctx, manifestPath)
	require.NoError(t, err)
	var mf manifest
	require.NoError(t, json.Unmarshal(raw, &mf))
	assert.Len(t, mf.Entries, 4)
	for _, me := range mf.Entries {
		assert.True(t, store.Has(entryPath(me.ID)))
	}

	cancel()
	unittest.RequireCloseBefore(t, pool.Done(), time.Second, "pool did not stop")
}

// TestPool_TakeIsFIFOAndDeletes checks strict consumption order and that the
// durable copy of a consumed entry is removed before the entry is handed out.
func TestPool_TakeIsFIFOAndDeletes(t *testing.T) {
	scheme := &mocks.Scheme{}
	store := mocks.NewShareStore()
	pool := newPool(scheme, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	unittest.Eventually(t, 2*time.Second, func() bool {
		return pool.Size() >= 2
	})

	first := pool.Take(ctx)
	require.NotNil(t, first)
	second := pool.Take(ctx)
	require.NotNil(t, second)

	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Before(second.CreatedAt) || first.CreatedAt.Equal(second.CreatedAt))
	assert.False(t, store.Has(entryPath(first.ID)))
	assert.False(t, store.Has(entryPath(second.ID)))
}

// TestPool_TakeOnDeleteFailure checks that a failed storage delete does not
// put the entry back: at-most-once consumption wins over durability.
func TestPool_TakeOnDeleteFailure(t *testing.T) {
	store := mocks.NewShareStore()
	pool := New(unittest.Logger(), testConfig(), nil, store, metrics.NewNoopCollector())

	entry := &Entry{ID: "stuck", CreatedAt: time.Now().UTC(), Data: []byte(`["a","b","c"]`)}
	pool.entries = []*Entry{entry}
	store.DeleteErr = errors.New("backend down")

	taken := pool.Take(context.Background())
	require.NotNil(t, taken)
	assert.Equal(t, "stuck", taken.ID)

	// the entry is gone from the pool despite the failed delete
	assert.Equal(t, 0, pool.Size())
	assert.Nil(t, pool.Take(context.Background()))
}

func TestPool_TakeEmpty(t *testing.T) {
	pool := newPool(nil, nil)
	assert.Nil(t, pool.Take(context.Background()))
}

func TestPool_Healthy(t *testing.T) {
	t.Run("no scheme means healthy while empty", func(t *testing.T) {
		pool := newPool(nil, nil)
		assert.True(t, pool.Healthy())
	})

	t.Run("scheme and empty means unhealthy", func(t *testing.T) {
		pool := newPool(&mocks.Scheme{}, nil)
		assert.False(t, pool.Healthy())
	})
}

// TestPool_LoadSkipsCorruptEntries seeds storage with a manifest referencing
// one valid, one corrupt, and one missing entry, and expects only the valid
// one to load and the manifest to be rewritten without the others.
func TestPool_LoadSkipsCorruptEntries(t *testing.T) {
	store := mocks.NewShareStore()
	ctx := context.Background()

	good := manifestEntry{ID: "good", CreatedAt: time.Now().UTC()}
	corrupt := manifestEntry{ID: "corrupt", CreatedAt: time.Now().UTC()}
	missing := manifestEntry{ID: "missing", CreatedAt: time.Now().UTC()}

	raw, err := json.Marshal(manifest{Version: manifestVersion, Entries: []manifestEntry{good, corrupt, missing}})
	require.NoError(t, err)
	require.NoError(t, store.StoreShare(ctx, manifestPath, raw))
	require.NoError(t, store.StoreShare(ctx, entryPath("good"), []byte(`["a","b","c"]`)))
	require.NoError(t, store.StoreShare(ctx, entryPath("corrupt"), []byte("not json")))

	pool := New(unittest.Logger(), testConfig(), nil, store, metrics.NewNoopCollector())
	pool.loadFromStorage(ctx)

	require.Equal(t, 1, pool.Size())
	entry := pool.Take(ctx)
	require.NotNil(t, entry)
	assert.Equal(t, "good", entry.ID)

	// the rewritten manifest no longer references the dropped entries
	raw, err = store.GetShare(ctx, manifestPath)
	require.NoError(t, err)
	var mf manifest
	require.NoError(t, json.Unmarshal(raw, &mf))
	assert.Empty(t, mf.Entries)
}

func TestPool_CorruptManifestStartsEmpty(t *testing.T) {
	store := mocks.NewShareStore()
	ctx := context.Background()
	require.NoError(t, store.StoreShare(ctx, manifestPath, []byte("{broken")))

	pool := New(unittest.Logger(), testConfig(), nil, store, metrics.NewNoopCollector())
	pool.loadFromStorage(ctx)
	assert.Equal(t, 0, pool.Size())
}

// TestPool_GenerationFailureRecovers checks that failed generation attempts
// leave the pool functional and the next tick retries.
func TestPool_GenerationFailureRecovers(t *testing.T) {
	scheme := &mocks.Scheme{AuxErr: errors.New("prime search failed")}
	pool := newPool(scheme, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	unittest.Eventually(t, 2*time.Second, func() bool {
		return scheme.AuxCalls >= 2
	})
	assert.Equal(t, 0, pool.Size())

	// clear the fault; replenishment resumes on its own
	scheme.AuxErr = nil
	unittest.Eventually(t, 2*time.Second, func() bool {
		return pool.Size() == 4
	})
}

// TestPool_ShutdownZeroesEntries checks that cancelling the pool context
// zeroes in-memory material while leaving durable copies for the next boot.
func TestPool_ShutdownZeroesEntries(t *testing.T) {
	scheme := &mocks.Scheme{}
	store := mocks.NewShareStore()
	pool := newPool(scheme, store)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	unittest.Eventually(t, 2*time.Second, func() bool {
		return pool.Size() == 4
	})

	pool.mu.Lock()
	retained := pool.entries[0].Data
	id := pool.entries[0].ID
	pool.mu.Unlock()

	cancel()
	unittest.RequireCloseBefore(t, pool.Done(), time.Second, "pool did not stop")

	assert.Equal(t, 0, pool.Size())
	allZero := true
	for _, b := range retained {
		if b != 0 {
			allZero = false
			break
		}
	}
	assert.True(t, allZero, "in-memory entry data should be zeroed on shutdown")
	assert.True(t, store.Has(entryPath(id)), "durable copy survives shutdown")
}

func TestValidateAuxInfo(t *testing.T) {
	assert.NoError(t, validateAuxInfo([]byte(`["a","b","c"]`), 3))
	assert.Error(t, validateAuxInfo([]byte(`["a","b"]`), 3))
	assert.Error(t, validateAuxInfo([]byte(`not json`), 3))
}
