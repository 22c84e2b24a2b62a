package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
	"github.com/iho/stockledger/internal/usecase/mocks"
)

func fastRetry(maxRetries int) usecase.RetryConfig {
	return usecase.RetryConfig{
		MaxRetries:      maxRetries,
		InitialInterval: 1 * time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}
}

func TestRetrierRetriesOnTransientError(t *testing.T) {
	metrics := mocks.NewMockMetrics()
	r := usecase.NewBackoffRetrier(fastRetry(2), metrics, zerolog.Nop())

	attempts := 0
	err := r.Retry(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return domain.NewStorageError("append", true, errors.New("deadlock"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if metrics.Retries != 1 {
		t.Fatalf("expected 1 retry recorded, got %d", metrics.Retries)
	}
}

func TestRetrierStopsOnPermanentError(t *testing.T) {
	r := usecase.NewBackoffRetrier(usecase.DefaultRetryConfig(), nil, zerolog.Nop())
	attempts := 0
	permanentErr := domain.NewStorageError("append", false, errors.New("disk full"))

	err := r.Retry(context.Background(), func() error {
		attempts++
		return permanentErr
	})

	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetrierNeverRetriesRejections(t *testing.T) {
	r := usecase.NewBackoffRetrier(fastRetry(5), nil, zerolog.Nop())
	attempts := 0

	err := r.Retry(context.Background(), func() error {
		attempts++
		return &domain.Rejection{Reason: domain.ReasonInsufficientStock}
	})

	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetrierGivesUpAfterMaxRetries(t *testing.T) {
	r := usecase.NewBackoffRetrier(fastRetry(3), nil, zerolog.Nop())
	attempts := 0

	err := r.Retry(context.Background(), func() error {
		attempts++
		return domain.NewStorageError("append", true, errors.New("timeout"))
	})

	if !domain.IsTransientStorageError(err) {
		t.Fatalf("expected last transient error, got %v", err)
	}
	if attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", attempts)
	}
}
