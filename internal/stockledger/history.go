package stockledger

import (
	"context"
	"time"
)

// Checkpoint marks a position in an item's ledger history.
type Checkpoint struct {
	OccurredAt time.Time
	EntryID    int64
}

// HistoryIterator walks an item's ledger history ascending by event time.
// Pages are pulled lazily from the repository; the iterator can be restarted
// from any checkpoint, so long reconstructions survive interruption.
type HistoryIterator struct {
	repo     RepositoryPort
	page     HistoryPage
	buf      []Entry
	pos      int
	cursor   Checkpoint
	drained  bool
	pageSize int
}

// History begins reconstructing the item's ledger history inside the
// optional [from, to] window.
func (s *Service) History(orgID, itemID int64, from, to time.Time) *HistoryIterator {
	return s.HistoryAt(orgID, itemID, from, to, Checkpoint{})
}

// HistoryAt resumes reconstruction immediately after a previously
// checkpointed position.
func (s *Service) HistoryAt(orgID, itemID int64, from, to time.Time, at Checkpoint) *HistoryIterator {
	return &HistoryIterator{
		repo: s.repo,
		page: HistoryPage{
			OrgID:  orgID,
			ItemID: itemID,
			From:   from,
			To:     to,
		},
		cursor:   at,
		pageSize: 200,
	}
}

// Next returns the next annotated entry. ok is false when the sequence is
// exhausted.
func (it *HistoryIterator) Next(ctx context.Context) (AnnotatedEntry, bool, error) {
	if it.pos >= len(it.buf) {
		if it.drained {
			return AnnotatedEntry{}, false, nil
		}
		it.page.AfterTime = it.cursor.OccurredAt
		it.page.AfterID = it.cursor.EntryID
		it.page.Limit = it.pageSize
		entries, err := it.repo.ListHistory(ctx, it.page)
		if err != nil {
			return AnnotatedEntry{}, false, err
		}
		if len(entries) == 0 {
			it.drained = true
			return AnnotatedEntry{}, false, nil
		}
		if len(entries) < it.pageSize {
			it.drained = true
		}
		it.buf = entries
		it.pos = 0
	}
	entry := it.buf[it.pos]
	it.pos++
	it.cursor = Checkpoint{OccurredAt: entry.OccurredAt, EntryID: entry.ID}
	return Annotate(entry), true, nil
}

// Checkpoint returns the position of the last entry yielded. Passing it to
// HistoryAt resumes the sequence immediately after that entry.
func (it *HistoryIterator) Checkpoint() Checkpoint {
	return it.cursor
}

// Collect drains the iterator into a slice.
func (it *HistoryIterator) Collect(ctx context.Context) ([]AnnotatedEntry, error) {
	var out []AnnotatedEntry
	for {
		entry, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, entry)
	}
}
