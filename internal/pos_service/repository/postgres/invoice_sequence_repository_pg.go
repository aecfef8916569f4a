package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
	"github.com/bintangnusa/pos-backend/internal/pos_service/repository"
)

// PgInvoiceSequenceRepository hands out daily invoice counters from a
// counter table. The upsert takes a row lock on the (prefix, day) row, so
// concurrent submits on the same day serialize and every caller sees a
// distinct counter value. Because Next runs inside the submit transaction,
// a rolled-back sale rolls its number back too.
type PgInvoiceSequenceRepository struct {
	logger *slog.Logger
}

func NewPgInvoiceSequenceRepository(logger *slog.Logger) repository.InvoiceSequenceRepository {
	return &PgInvoiceSequenceRepository{logger: logger.With("component", "invoice_sequence_repository_pg")}
}

const nextCounterRetries = 3

func (r *PgInvoiceSequenceRepository) Next(ctx context.Context, q repository.Querier, prefix string, day time.Time) (int, error) {
	seqDate := day.Format("2006-01-02")

	var counter int
	for attempt := 0; attempt < nextCounterRetries; attempt++ {
		err := q.QueryRow(ctx, `
			INSERT INTO invoice_sequences (prefix, seq_date, counter)
			VALUES ($1, $2, 1)
			ON CONFLICT (prefix, seq_date)
			DO UPDATE SET counter = invoice_sequences.counter + 1
			RETURNING counter
		`, prefix, seqDate).Scan(&counter)
		if err == nil {
			return counter, nil
		}
		r.logger.WarnContext(ctx, "Invoice counter increment failed, retrying",
			"prefix", prefix, "seq_date", seqDate, "attempt", attempt+1, "error", err)
	}
	return 0, fmt.Errorf("%w: prefix %s date %s", domain.ErrSequencingConflict, prefix, seqDate)
}
