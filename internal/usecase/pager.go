package usecase

import (
	"context"
	"iter"

	"github.com/iho/stockledger/internal/domain"
)

// DefaultScanBatch is the number of records a lazy log scan fetches per page.
const DefaultScanBatch = 500

// PageFetcher returns up to limit records with Seq > afterSeq in ascending order.
type PageFetcher func(ctx context.Context, afterSeq int64, limit int) ([]domain.Transaction, error)

// ScanPages turns a page fetcher into a lazy ascending sequence starting
// after sinceSeq. Each range over the result starts a fresh scan, so the
// sequence is restartable. Iteration stops at the first error, which is
// yielded with a zero record.
func ScanPages(ctx context.Context, sinceSeq int64, batch int, fetch PageFetcher) iter.Seq2[domain.Transaction, error] {
	if batch <= 0 {
		batch = DefaultScanBatch
	}

	return func(yield func(domain.Transaction, error) bool) {
		cursor := sinceSeq

		for {
			if err := ctx.Err(); err != nil {
				yield(domain.Transaction{}, err)
				return
			}

			page, err := fetch(ctx, cursor, batch)
			if err != nil {
				yield(domain.Transaction{}, err)
				return
			}

			for _, rec := range page {
				if !yield(rec, nil) {
					return
				}
				cursor = rec.Seq
			}

			if len(page) < batch {
				return
			}
		}
	}
}
