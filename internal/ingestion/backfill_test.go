package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/storage"
	"victory-readmodel/internal/storage/memory"
	"victory-readmodel/internal/sui"
)

const createdType = "0xfarm::farm::PoolCreated"

// pagedSource serves a fixed event list in pages, honoring cursors.
type pagedSource struct {
	events  []sui.Event
	calls   []*sui.EventID
	failAt  int // call index that fails, -1 for never
	failErr error
}

func newPagedSource(n int) *pagedSource {
	s := &pagedSource{failAt: -1}
	for i := 0; i < n; i++ {
		s.events = append(s.events, sui.Event{
			ID:          sui.EventID{TxDigest: fmt.Sprintf("tx%03d", i), EventSeq: "0"},
			Type:        createdType,
			ParsedJSON:  map[string]any{"pool_type": fmt.Sprintf("0xc::coin%d::COIN", i)},
			TimestampMs: fmt.Sprintf("%d", 1700000000000+int64(i)),
		})
	}
	return s
}

func (s *pagedSource) QueryEventsPage(_ context.Context, eventType string, cursor *sui.EventID, limit int) (*sui.EventPage, error) {
	call := len(s.calls)
	s.calls = append(s.calls, cursor)
	if call == s.failAt {
		return nil, s.failErr
	}

	start := 0
	if cursor != nil {
		for i, e := range s.events {
			if e.ID == *cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(s.events) {
		end = len(s.events)
	}

	page := &sui.EventPage{Data: s.events[start:end], HasNextPage: end < len(s.events)}
	if end > start {
		last := s.events[end-1].ID
		page.NextCursor = &last
	}
	return page, nil
}

func TestBackfiller_PagesIntoArchive(t *testing.T) {
	ctx := context.Background()
	source := newPagedSource(7)
	store := memory.NewRawEventStore()
	cursors := memory.NewIngestCursorStore()

	b := NewBackfiller(BackfillOptions{
		Source:   source,
		Store:    store,
		Cursors:  cursors,
		PageSize: 3,
	})

	result, err := b.Backfill(ctx, createdType)
	require.NoError(t, err)

	assert.Equal(t, 7, result.EventsIngested)
	assert.Equal(t, 0, result.DuplicatesSkipped)
	assert.Equal(t, 3, result.Pages)

	archived, err := store.GetByType(ctx, createdType)
	require.NoError(t, err)
	assert.Len(t, archived, 7)

	c, err := cursors.GetCursor(ctx, createdType)
	require.NoError(t, err)
	assert.Equal(t, "tx006", c.TxDigest)
}

func TestBackfiller_ResumesFromCursor(t *testing.T) {
	ctx := context.Background()
	source := newPagedSource(5)
	store := memory.NewRawEventStore()
	cursors := memory.NewIngestCursorStore()
	require.NoError(t, cursors.SetCursor(ctx, &storage.IngestCursor{
		EventType: createdType,
		TxDigest:  "tx002",
		EventSeq:  "0",
	}))

	b := NewBackfiller(BackfillOptions{Source: source, Store: store, Cursors: cursors, PageSize: 10})
	result, err := b.Backfill(ctx, createdType)
	require.NoError(t, err)

	assert.Equal(t, 2, result.EventsIngested)
	require.Len(t, source.calls, 1)
	require.NotNil(t, source.calls[0])
	assert.Equal(t, "tx002", source.calls[0].TxDigest)
}

func TestBackfiller_DuplicatesFallBackToSingleInserts(t *testing.T) {
	ctx := context.Background()
	source := newPagedSource(4)
	store := memory.NewRawEventStore()

	// Pre-archive one event of the page.
	existing := source.events[1].RawEvent()
	require.NoError(t, store.Insert(ctx, &existing))

	b := NewBackfiller(BackfillOptions{Source: source, Store: store, PageSize: 10})
	result, err := b.Backfill(ctx, createdType)
	require.NoError(t, err)

	assert.Equal(t, 3, result.EventsIngested)
	assert.Equal(t, 1, result.DuplicatesSkipped)
	assert.Equal(t, 0, result.Errors)

	// Running again from scratch only finds duplicates.
	result, err = b.Backfill(ctx, createdType)
	require.NoError(t, err)
	assert.Equal(t, 0, result.EventsIngested)
	assert.Equal(t, 4, result.DuplicatesSkipped)
}

func TestBackfiller_FailedPageKeepsCursor(t *testing.T) {
	ctx := context.Background()
	source := newPagedSource(6)
	source.failAt = 1
	source.failErr = errors.New("node unavailable")
	store := memory.NewRawEventStore()
	cursors := memory.NewIngestCursorStore()

	b := NewBackfiller(BackfillOptions{Source: source, Store: store, Cursors: cursors, PageSize: 2})
	result, err := b.Backfill(ctx, createdType)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node unavailable")
	assert.Equal(t, 2, result.EventsIngested)

	c, err := cursors.GetCursor(ctx, createdType)
	require.NoError(t, err)
	assert.Equal(t, "tx001", c.TxDigest)
}

func TestBackfiller_InvalidEventsCountAsErrors(t *testing.T) {
	ctx := context.Background()
	source := newPagedSource(2)
	source.events[1].ID.TxDigest = ""
	store := memory.NewRawEventStore()
	cursors := memory.NewIngestCursorStore()

	b := NewBackfiller(BackfillOptions{Source: source, Store: store, Cursors: cursors, PageSize: 10})
	result, err := b.Backfill(ctx, createdType)
	require.Error(t, err)

	// A non-duplicate failure rejects the whole batch.
	assert.Equal(t, 0, result.EventsIngested)
	assert.Equal(t, 2, result.Errors)
	_, err = cursors.GetCursor(ctx, createdType)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBackfiller_MaxPages(t *testing.T) {
	ctx := context.Background()
	source := newPagedSource(10)
	store := memory.NewRawEventStore()

	b := NewBackfiller(BackfillOptions{Source: source, Store: store, PageSize: 2, MaxPages: 2})
	result, err := b.Backfill(ctx, createdType)
	require.NoError(t, err)

	assert.Equal(t, 4, result.EventsIngested)
	assert.Equal(t, 2, result.Pages)
}

func TestBackfiller_FeedsReplayableArchive(t *testing.T) {
	ctx := context.Background()
	source := newPagedSource(3)
	store := memory.NewRawEventStore()

	b := NewBackfiller(BackfillOptions{Source: source, Store: store})
	_, err := b.Backfill(ctx, createdType)
	require.NoError(t, err)

	archived, err := store.GetByType(ctx, createdType)
	require.NoError(t, err)
	var raws []domain.RawEvent
	for _, e := range archived {
		raws = append(raws, *e)
	}
	require.Len(t, raws, 3)
	assert.Equal(t, "0xc::coin0::COIN", raws[0].Payload["pool_type"])
}
