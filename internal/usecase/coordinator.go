package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/domain"
)

// Result is the outcome of a submission. Exactly one of Rejection or the
// committed fields is set.
type Result struct {
	Rejection  *domain.Rejection
	TransferID string
	Records    []domain.Transaction
	// Seq is the sequence id of the first committed record (the outbound
	// leg for transfers).
	Seq int64
}

// Accepted reports whether the submission was committed.
func (r Result) Accepted() bool {
	return r.Rejection == nil && r.Seq > 0
}

// StrikeResult is the outcome of a period strike.
type StrikeResult struct {
	Rejection *domain.Rejection
	Period    domain.Period
	Snapshot  domain.Snapshot
}

// CoordinatorConfig tunes the mutation path.
type CoordinatorConfig struct {
	// AppendTimeout bounds one append attempt.
	AppendTimeout time.Duration
}

// Coordinator runs read-validate-append-update cycles. Cycles on the same
// account key are serialized; cycles on unrelated keys run in parallel.
type Coordinator struct {
	log           TransactionLog
	aggregator    *Aggregator
	locks         *KeyLocker
	retrier       Retrier
	idGen         IDGenerator
	clock         Clock
	metrics       Metrics
	logger        zerolog.Logger
	appendTimeout time.Duration
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(
	log TransactionLog,
	aggregator *Aggregator,
	retrier Retrier,
	idGen IDGenerator,
	clock Clock,
	metrics Metrics,
	logger zerolog.Logger,
	cfg CoordinatorConfig,
) *Coordinator {
	if cfg.AppendTimeout <= 0 {
		cfg.AppendTimeout = DefaultAppendTimeout
	}

	if clock == nil {
		clock = SystemClock{}
	}

	if metrics == nil {
		metrics = NopMetrics{}
	}

	return &Coordinator{
		log:           log,
		aggregator:    aggregator,
		locks:         NewKeyLocker(),
		retrier:       retrier,
		idGen:         idGen,
		clock:         clock,
		metrics:       metrics,
		logger:        logger,
		appendTimeout: cfg.AppendTimeout,
	}
}

// Submit admits p to the log. Business-rule failures come back in
// Result.Rejection with a nil error. Errors are malformed proposals or
// infrastructure failures; the latter satisfy errors.Is(err, domain.ErrStorageFailure).
//
// requestID makes the submission idempotent: resubmitting a committed
// request id returns the originally committed records without checking stock
// again. Reusing it for a different movement fails with
// domain.ErrRequestConflict. An empty requestID gets a fresh one.
func (c *Coordinator) Submit(ctx context.Context, p domain.Proposal, requestID string) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	start := c.clock.Now()
	defer func() {
		c.metrics.SubmitDuration(p.Kind, c.clock.Now().Sub(start))
	}()

	supplied := requestID != ""
	if !supplied {
		requestID = c.idGen.Generate()
	}

	unlock, err := c.locks.Acquire(ctx, p.Keys()...)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	if supplied {
		existing, err := c.log.ByRequest(ctx, requestID)
		if err != nil {
			return Result{}, c.storageFailure("read", p, err)
		}

		if len(existing) > 0 {
			return c.replayed(p, requestID, existing)
		}
	}

	source, err := c.aggregator.Verified(ctx, p.Account)
	if err != nil {
		return Result{}, c.storageFailure("read", p, err)
	}

	if p.Kind == domain.KindTransfer {
		if _, err := c.aggregator.Verified(ctx, p.Destination); err != nil {
			return Result{}, c.storageFailure("read", p, err)
		}
	}

	if rej := domain.Admit(p, source); rej != nil {
		c.metrics.MovementRejected(p.Kind, rej.Reason)
		c.logger.Info().
			Str("base", p.Account.Base).
			Str("equipment_type", p.Account.EquipmentType).
			Str("kind", string(p.Kind)).
			Str("reason", string(rej.Reason)).
			Int64("requested", rej.Requested).
			Int64("available", rej.Available).
			Msg("movement rejected")

		return Result{Rejection: rej}, nil
	}

	var transferID string
	if p.Kind == domain.KindTransfer {
		transferID = c.idGen.Generate()
	}

	committed, err := c.append(ctx, p.Records(requestID, transferID, c.clock.Now()))
	if err != nil {
		return Result{}, c.storageFailure("append", p, err)
	}

	// The log returns the stored records when the request id was committed
	// concurrently for another movement under other locks.
	if !p.Matches(committed) {
		return c.replayed(p, requestID, committed)
	}

	if err := c.aggregator.ApplyCommitted(ctx, committed...); err != nil {
		// The records are durable; the next Verified read rebuilds.
		c.logger.Error().
			Err(err).
			Str("base", p.Account.Base).
			Str("equipment_type", p.Account.EquipmentType).
			Str("kind", string(p.Kind)).
			Msg("failed to apply committed movement to cache")
		c.aggregator.Invalidate(p.Keys()...)
	}

	c.metrics.MovementCommitted(p.Kind, p.Quantity)
	c.logger.Debug().
		Str("base", p.Account.Base).
		Str("equipment_type", p.Account.EquipmentType).
		Str("kind", string(p.Kind)).
		Int64("seq", committed[0].Seq).
		Int64("quantity", p.Quantity).
		Msg("movement committed")

	return Result{
		Seq:        committed[0].Seq,
		TransferID: committed[0].TransferID,
		Records:    committed,
	}, nil
}

// replayed answers a resubmitted request from its committed records.
func (c *Coordinator) replayed(p domain.Proposal, requestID string, existing []domain.Transaction) (Result, error) {
	if !p.Matches(existing) {
		c.logger.Warn().
			Str("request_id", requestID).
			Str("kind", string(p.Kind)).
			Str("committed_kind", string(existing[0].Kind)).
			Str("committed_account", existing[0].Account.String()).
			Msg("request id reused for a different movement")

		return Result{}, fmt.Errorf("%w: %s", domain.ErrRequestConflict, requestID)
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("kind", string(p.Kind)).
		Int64("seq", existing[0].Seq).
		Msg("movement replayed")

	return Result{
		Seq:        existing[0].Seq,
		TransferID: existing[0].TransferID,
		Records:    existing,
	}, nil
}

func (c *Coordinator) append(ctx context.Context, recs []domain.Transaction) ([]domain.Transaction, error) {
	var committed []domain.Transaction

	err := c.retrier.Retry(ctx, func() error {
		actx, cancel := context.WithTimeout(ctx, c.appendTimeout)
		defer cancel()

		out, err := c.log.Append(actx, recs)
		if err != nil {
			if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
				return &domain.StorageError{
					Op:        "append",
					Transient: true,
					Err:       fmt.Errorf("no durable confirmation within %s: %w", c.appendTimeout, err),
				}
			}

			return err
		}

		if len(out) != len(recs) {
			return domain.NewStorageError("append", false,
				fmt.Errorf("log confirmed %d of %d records", len(out), len(recs)))
		}

		committed = out

		return nil
	})

	return committed, err
}

func (c *Coordinator) storageFailure(op string, p domain.Proposal, err error) error {
	if !errors.Is(err, domain.ErrStorageFailure) {
		return err
	}

	c.metrics.StorageFailed(op)
	c.logger.Error().
		Err(err).
		Str("base", p.Account.Base).
		Str("equipment_type", p.Account.EquipmentType).
		Str("kind", string(p.Kind)).
		Msg("storage failure")

	return domain.WithContext(err, p.Account, p.Kind)
}

// StrikePeriod opens a new reporting period for key. openingBalance must
// equal the current closing balance; otherwise the result carries an
// InvalidPeriodBoundary rejection.
func (c *Coordinator) StrikePeriod(ctx context.Context, key domain.AccountKey, openingBalance int64) (StrikeResult, error) {
	if err := key.Validate(); err != nil {
		return StrikeResult{}, err
	}

	if openingBalance < 0 {
		return StrikeResult{}, domain.ErrInvalidOpeningBalance
	}

	unlock, err := c.locks.Acquire(ctx, key)
	if err != nil {
		return StrikeResult{}, err
	}
	defer unlock()

	if _, err := c.aggregator.Verified(ctx, key); err != nil {
		return StrikeResult{}, err
	}

	period, snap, err := c.aggregator.StrikeNewPeriod(ctx, key, openingBalance)
	if err != nil {
		var rej *domain.Rejection
		if errors.As(err, &rej) {
			c.logger.Info().
				Str("base", key.Base).
				Str("equipment_type", key.EquipmentType).
				Int64("opening_balance", openingBalance).
				Int64("closing_balance", rej.Available).
				Msg("period strike rejected")

			return StrikeResult{Rejection: rej, Snapshot: snap}, nil
		}

		if errors.Is(err, domain.ErrStorageFailure) {
			c.metrics.StorageFailed("append_period")
		}

		return StrikeResult{}, err
	}

	c.logger.Info().
		Str("base", key.Base).
		Str("equipment_type", key.EquipmentType).
		Int64("period", period.Number).
		Int64("opening_balance", period.OpeningBalance).
		Msg("period struck")

	return StrikeResult{Period: period, Snapshot: snap}, nil
}

// CloseAllPeriods strikes a new period for every known account, carrying its
// closing balance forward as the opening balance. It returns the number of
// periods struck and every per-account failure joined together.
func (c *Coordinator) CloseAllPeriods(ctx context.Context) (int, error) {
	keys, err := c.log.Accounts(ctx)
	if err != nil {
		return 0, err
	}

	var (
		struck int
		errs   []error
	)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		n, err := c.closePeriod(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("close period for %s: %w", key, err))
			continue
		}

		struck += n
	}

	return struck, errors.Join(errs...)
}

func (c *Coordinator) closePeriod(ctx context.Context, key domain.AccountKey) (int, error) {
	unlock, err := c.locks.Acquire(ctx, key)
	if err != nil {
		return 0, err
	}
	defer unlock()

	current, err := c.aggregator.Verified(ctx, key)
	if err != nil {
		return 0, err
	}

	if _, _, err := c.aggregator.StrikeNewPeriod(ctx, key, current.ClosingBalance); err != nil {
		return 0, err
	}

	return 1, nil
}
