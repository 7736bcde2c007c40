package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odinsson/tradeledger/internal/service"
	"github.com/odinsson/tradeledger/internal/testutil"
)

func newTestEngine(src service.LogSource) *Engine {
	return NewEngine(src, Config{SelfID: 100, PollInterval: time.Hour}, nil)
}

func TestEngineIncrementalScan(t *testing.T) {
	src := testutil.NewLogSource()
	src.Append(
		service.Entry{ID: "1", Text: "2x Xanax added to the trade", ActorName: "Them", ActorID: 200},
	)

	e := newTestEngine(src)
	e.Sync()

	lines, cp := e.Snapshot()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines["xanax"].Quantity)
	require.NotNil(t, cp)
	assert.Equal(t, int64(200), cp.ID)
	assert.Equal(t, "Them", cp.Name)

	src.Append(
		service.Entry{ID: "2", Text: "1x Xanax removed from the trade", ActorName: "Them", ActorID: 200},
		service.Entry{ID: "3", Text: "3x Bottle of Beer added to the trade", ActorName: "Me", ActorID: 100},
	)
	e.Sync()

	lines, _ = e.Snapshot()
	assert.Equal(t, 1, lines["xanax"].Quantity)
	assert.Equal(t, 3, lines["bottle of beer"].Quantity)
	assert.Equal(t, StateWatching, e.State())
}

func TestEngineSeenEntriesNeverReparsed(t *testing.T) {
	src := testutil.NewLogSource()
	src.Append(service.Entry{ID: "1", Text: "2x Xanax added to the trade"})

	e := newTestEngine(src)
	e.Sync()
	e.Sync()
	e.Sync()

	lines, _ := e.Snapshot()
	assert.Equal(t, 2, lines["xanax"].Quantity, "replayed scans must not double-count")
}

func TestEngineRebuildOnGenerationChange(t *testing.T) {
	src := testutil.NewLogSource()
	src.Append(
		service.Entry{ID: "1", Text: "2x Xanax added to the trade", ActorName: "Them", ActorID: 200},
	)

	e := newTestEngine(src)
	e.Sync()

	// The whole log is replaced: same entry IDs, different content. A
	// rebuild must start from scratch, including counterparty detection.
	src.Replace(
		service.Entry{ID: "1", Text: "5x Bottle of Beer added to the trade", ActorName: "Other", ActorID: 300},
	)
	e.Sync()

	lines, cp := e.Snapshot()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines["bottle of beer"].Quantity)
	require.NotNil(t, cp)
	assert.Equal(t, int64(300), cp.ID)
}

func TestEngineRebuildMatchesIncremental(t *testing.T) {
	entries := []service.Entry{
		{ID: "1", Text: "2x Xanax added to the trade"},
		{ID: "2", Text: "1x Xanax removed from the trade"},
		{ID: "3", Text: "3x Bottle of Beer, 2x First Aid Kit added to the trade"},
		{ID: "4", Text: "chatter that is not an action"},
		{ID: "5", Text: "2x First Aid Kit removed from the trade"},
	}

	// Fold entry by entry.
	incremental := testutil.NewLogSource()
	e1 := newTestEngine(incremental)
	for _, entry := range entries {
		incremental.Append(entry)
		e1.Sync()
	}

	// Fold everything in one rebuild.
	all := testutil.NewLogSource()
	all.Append(entries...)
	e2 := newTestEngine(all)
	e2.Sync()

	lines1, _ := e1.Snapshot()
	lines2, _ := e2.Snapshot()
	assert.Equal(t, lines2, lines1, "incremental folding must equal a full rebuild")
}

func TestEngineCounterpartyIgnoresSelf(t *testing.T) {
	src := testutil.NewLogSource()
	src.Append(
		service.Entry{ID: "1", Text: "1x Xanax added to the trade", ActorName: "Me", ActorID: 100},
		service.Entry{ID: "2", Text: "chatter", ActorName: "Them", ActorID: 200},
	)

	e := newTestEngine(src)
	e.Sync()

	_, cp := e.Snapshot()
	require.NotNil(t, cp)
	assert.Equal(t, int64(200), cp.ID, "first non-self actor wins, even on a non-action entry")
}

func TestEngineMutationKickTriggersSync(t *testing.T) {
	src := testutil.NewLogSource()
	e := NewEngine(src, Config{SelfID: 100, PollInterval: time.Hour}, nil)

	updates := make(chan Update, 8)
	e.OnChange(func(u Update) {
		updates <- u
	})

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer func() { require.NoError(t, e.Stop(ctx)) }()

	// Initial sync emits an (empty) rebuild update.
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial update")
	}

	src.Append(service.Entry{ID: "1", Text: "4x Xanax added to the trade"})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-updates:
			if line, ok := u.Lines["xanax"]; ok {
				assert.Equal(t, 4, line.Quantity)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for mutation-driven update")
		}
	}
}
