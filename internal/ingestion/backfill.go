package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/normalization"
	"victory-readmodel/internal/observability"
	"victory-readmodel/internal/storage"
	"victory-readmodel/internal/sui"
)

// PageSource returns one ascending page of ledger events after a cursor.
type PageSource interface {
	QueryEventsPage(ctx context.Context, eventType string, cursor *sui.EventID, limit int) (*sui.EventPage, error)
}

// Backfiller copies ledger events into the raw-event archive so that pool
// state can still be replayed after the node prunes old events.
type Backfiller struct {
	source    PageSource
	store     storage.RawEventStore
	cursors   storage.IngestCursorStore
	batchSize int
	pageSize  int
	maxPages  int
	fromStart bool
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	Source  PageSource
	Store   storage.RawEventStore
	Cursors storage.IngestCursorStore // optional; without it every run starts from the oldest event

	BatchSize int // events per InsertBulk, default 1000
	PageSize  int // events per RPC page, default sui.DefaultPageSize
	MaxPages  int // pages per event type per run, 0 = unlimited

	// FromStart ignores saved cursors.
	FromStart bool

	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// NewBackfiller creates a new archive backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = sui.DefaultPageSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Backfiller{
		source:    opts.Source,
		store:     opts.Store,
		cursors:   opts.Cursors,
		batchSize: batchSize,
		pageSize:  pageSize,
		maxPages:  opts.MaxPages,
		fromStart: opts.FromStart,
		logger:    logger,
		metrics:   opts.Metrics,
		now:       time.Now,
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	EventsIngested    int
	DuplicatesSkipped int
	Errors            int
	Pages             int
	Duration          time.Duration
}

// Backfill archives every event of the given types, resuming each type from
// its saved cursor. A failed page stops that type; the cursor only advances
// past pages that were stored.
func (b *Backfiller) Backfill(ctx context.Context, eventTypes ...string) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{}

	b.logger.Info("starting backfill", zap.Strings("event_types", eventTypes))

	var errs []error
	for _, eventType := range eventTypes {
		if err := b.backfillType(ctx, eventType, result); err != nil {
			if ctx.Err() != nil {
				result.Duration = time.Since(start)
				return result, ctx.Err()
			}
			b.logger.Error("backfill failed", zap.String("event_type", eventType), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", eventType, err))
		}
	}

	result.Duration = time.Since(start)
	b.logger.Info("backfill complete",
		zap.Int("ingested", result.EventsIngested),
		zap.Int("duplicates", result.DuplicatesSkipped),
		zap.Int("errors", result.Errors),
		zap.Int("pages", result.Pages),
		zap.Duration("duration", result.Duration))

	return result, errors.Join(errs...)
}

func (b *Backfiller) backfillType(ctx context.Context, eventType string, result *BackfillResult) error {
	cursor, err := b.loadCursor(ctx, eventType)
	if err != nil {
		return err
	}

	for pages := 0; b.maxPages == 0 || pages < b.maxPages; pages++ {
		page, err := b.source.QueryEventsPage(ctx, eventType, cursor, b.pageSize)
		if err != nil {
			return fmt.Errorf("query page: %w", err)
		}
		result.Pages++

		raws := page.RawEvents()
		events := make([]*domain.RawEvent, len(raws))
		for i := range raws {
			events[i] = &raws[i]
		}

		stored, dupes, errs := b.storeEvents(ctx, events)
		result.EventsIngested += stored
		result.DuplicatesSkipped += dupes
		result.Errors += errs
		b.metrics.RecordArchived(normalization.EventName(eventType), stored)

		if errs > 0 {
			// Keep the cursor so the failed events are retried next run.
			return fmt.Errorf("%d events could not be stored", errs)
		}
		if page.NextCursor == nil {
			return nil
		}
		if err := b.saveCursor(ctx, eventType, page.NextCursor); err != nil {
			return err
		}
		if !page.HasNextPage {
			return nil
		}
		cursor = page.NextCursor
	}
	return nil
}

func (b *Backfiller) loadCursor(ctx context.Context, eventType string) (*sui.EventID, error) {
	if b.cursors == nil || b.fromStart {
		return nil, nil
	}
	c, err := b.cursors.GetCursor(ctx, eventType)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	b.logger.Debug("resuming backfill",
		zap.String("event_type", eventType),
		zap.String("tx_digest", c.TxDigest),
		zap.String("event_seq", c.EventSeq))
	return &sui.EventID{TxDigest: c.TxDigest, EventSeq: c.EventSeq}, nil
}

func (b *Backfiller) saveCursor(ctx context.Context, eventType string, next *sui.EventID) error {
	if b.cursors == nil {
		return nil
	}
	err := b.cursors.SetCursor(ctx, &storage.IngestCursor{
		EventType:   eventType,
		TxDigest:    next.TxDigest,
		EventSeq:    next.EventSeq,
		UpdatedAtMs: b.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// storeEvents stores events in batches, handling duplicates.
func (b *Backfiller) storeEvents(ctx context.Context, events []*domain.RawEvent) (stored, dupes, errs int) {
	for i := 0; i < len(events); i += b.batchSize {
		end := i + b.batchSize
		if end > len(events) {
			end = len(events)
		}

		batch := events[i:end]
		err := b.store.InsertBulk(ctx, batch)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				// Insert one by one to find which are duplicates
				for _, event := range batch {
					if err := b.store.Insert(ctx, event); err != nil {
						if errors.Is(err, storage.ErrDuplicateKey) {
							dupes++
						} else {
							errs++
							b.logger.Warn("error storing event",
								zap.String("tx_digest", event.TxID),
								zap.String("event_seq", event.EventSeq),
								zap.Error(err))
						}
					} else {
						stored++
					}
				}
			} else {
				errs += len(batch)
				b.logger.Error("error storing batch", zap.Int("size", len(batch)), zap.Error(err))
			}
		} else {
			stored += len(batch)
		}
	}

	return stored, dupes, errs
}
