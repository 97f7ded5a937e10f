package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tidemark/sealpost/internal/record"
)

// JournalRecord is one audit journal row: a mutating operation the engine
// admitted. The record is written in the same transaction as the mutation
// it describes, so the journal and the state tables can never disagree
// about which mutations happened.
type JournalRecord struct {
	// OpID is the engine-assigned operation ID (UUIDv7).
	OpID string

	// Seq is the logical sequence number of the operation.
	Seq int64

	// Caller is the authenticated identity the operation was attributed to.
	Caller record.Identity

	// Kind names the operation (register, sendMessage, ...).
	Kind string

	// Detail is a stable digest of the operation's inputs (record.OpDigest).
	Detail string

	// AppliedAt is the engine timestamp, unix nanoseconds.
	AppliedAt int64
}

// appendJournalTx writes a journal record inside an open transaction.
// Callers own commit/rollback.
func appendJournalTx(tx *sql.Tx, rec JournalRecord) error {
	_, err := tx.Exec(`
		INSERT INTO journal (op_id, seq, caller, kind, detail, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.OpID,
		rec.Seq,
		string(rec.Caller),
		rec.Kind,
		rec.Detail,
		rec.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// ReadJournal returns every journal record in sequence order.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ReadJournal(ctx context.Context) ([]JournalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op_id, seq, caller, kind, detail, applied_at
		FROM journal
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	records := []JournalRecord{}
	for rows.Next() {
		var rec JournalRecord
		var caller string
		if err := rows.Scan(&rec.OpID, &rec.Seq, &caller, &rec.Kind, &rec.Detail, &rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan journal record: %w", err)
		}
		rec.Caller = record.Identity(caller)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}

	return records, nil
}

// JournalCount returns the number of journaled mutations.
func (s *Store) JournalCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return count, nil
}
