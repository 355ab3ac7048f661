package audit

import (
	"context"

	"github.com/kapu/untranslate-go/internal/domain"
)

// Journal records what the restorer did to each field. Implementations
// absorb their own failures; a broken journal must never stop a patch.
type Journal interface {
	Record(ctx context.Context, outcome domain.Outcome)
	RecordSuppressions(ctx context.Context, session string, count uint64)
	Close() error
}

// NopJournal discards everything. Used when no database is configured.
type NopJournal struct{}

func (NopJournal) Record(context.Context, domain.Outcome)             {}
func (NopJournal) RecordSuppressions(context.Context, string, uint64) {}
func (NopJournal) Close() error                                       { return nil }
