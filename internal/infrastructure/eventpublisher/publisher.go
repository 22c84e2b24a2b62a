// Package eventpublisher tails the transaction log and publishes committed
// movements to an external system.
package eventpublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// DefaultCursorName names the cursor of the default movement publisher.
const DefaultCursorName = "movements"

// Publisher defines the interface for publishing events to external systems.
type Publisher interface {
	Publish(ctx context.Context, event domain.MovementEvent) error
}

// CursorStore persists the highest published sequence id.
type CursorStore interface {
	LoadCursor(ctx context.Context, name string) (int64, error)
	SaveCursor(ctx context.Context, name string, seq int64) error
}

// EventPublisher delivers committed records in sequence order, at least once.
type EventPublisher struct {
	log       usecase.TransactionLog
	cursors   CursorStore
	publisher Publisher
	idGen     usecase.IDGenerator
	logger    zerolog.Logger
	name      string
	batchSize int
	interval  time.Duration
}

// Config for EventPublisher.
type Config struct {
	Log        usecase.TransactionLog
	Cursors    CursorStore
	Publisher  Publisher
	IDGen      usecase.IDGenerator
	Logger     zerolog.Logger
	CursorName string
	BatchSize  int           // Number of records published per pass
	Interval   time.Duration // Polling interval
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(cfg Config) *EventPublisher {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.CursorName == "" {
		cfg.CursorName = DefaultCursorName
	}

	return &EventPublisher{
		log:       cfg.Log,
		cursors:   cfg.Cursors,
		publisher: cfg.Publisher,
		idGen:     cfg.IDGen,
		logger:    cfg.Logger.With().Str("component", "event_publisher").Str("cursor", cfg.CursorName).Logger(),
		name:      cfg.CursorName,
		batchSize: cfg.BatchSize,
		interval:  cfg.Interval,
	}
}

// Start begins the event publishing worker.
// It runs continuously until the context is cancelled.
func (ep *EventPublisher) Start(ctx context.Context) error {
	ep.logger.Info().
		Int("batch_size", ep.batchSize).
		Dur("interval", ep.interval).
		Msg("event publisher started")

	ticker := time.NewTicker(ep.interval)
	defer ticker.Stop()

	// Process immediately on start
	if _, err := ep.processEvents(ctx); err != nil {
		ep.logger.Error().Err(err).Msg("error processing events on start")
	}

	for {
		select {
		case <-ctx.Done():
			ep.logger.Info().Msg("event publisher shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := ep.processEvents(ctx); err != nil {
				ep.logger.Error().Err(err).Msg("error processing events")
			}
		}
	}
}

// processEvents publishes up to one batch of records after the cursor and
// returns how many were published. Publishing stops at the first failure so
// the cursor never skips a record.
func (ep *EventPublisher) processEvents(ctx context.Context) (int, error) {
	cursor, err := ep.cursors.LoadCursor(ctx, ep.name)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}

	published := 0
	last := cursor

	var publishErr error

	for rec, err := range ep.log.ReadAll(ctx, cursor) {
		if err != nil {
			publishErr = fmt.Errorf("read log after %d: %w", last, err)
			break
		}

		if err := ep.publishEvent(ctx, rec); err != nil {
			publishErr = err
			break
		}

		last = rec.Seq
		published++

		if published == ep.batchSize {
			break
		}
	}

	if last > cursor {
		if err := ep.cursors.SaveCursor(ctx, ep.name, last); err != nil {
			// Records up to last will be published again on the next pass.
			return published, fmt.Errorf("save cursor %d: %w", last, err)
		}

		ep.logger.Info().Int("count", published).Int64("cursor", last).Msg("events published")
	}

	return published, publishErr
}

// publishEvent publishes a single record.
func (ep *EventPublisher) publishEvent(ctx context.Context, rec domain.Transaction) error {
	event := domain.NewMovementEvent(ep.idGen.Generate(), rec)

	if err := ep.publisher.Publish(ctx, event); err != nil {
		ep.logger.Error().
			Err(err).
			Int64("seq", rec.Seq).
			Str("kind", string(rec.Kind)).
			Msg("failed to publish event")

		return fmt.Errorf("publish seq %d: %w", rec.Seq, err)
	}

	ep.logger.Debug().
		Str("event_id", event.ID).
		Int64("seq", rec.Seq).
		Str("base", rec.Account.Base).
		Str("equipment_type", rec.Account.EquipmentType).
		Msg("event published")

	return nil
}

// LogPublisher is a simple publisher that logs events.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event domain.MovementEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Int64("seq", event.Seq).
		RawJSON("payload", payload).
		Msg("EVENT PUBLISHED")

	return nil
}
