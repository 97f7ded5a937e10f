package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tidemark/sealpost/internal/record"
)

// AppendLedgerEntry appends one entry to the owner's private ledger under
// the per-ledger length-CAS discipline.
//
// Preconditions, checked inside a single transaction:
//   - caller equals entry.Owner (record.CodeNotOwner)
//   - entry.Owner is registered (record.CodeNotRegistered)
//   - expectedLength equals the ledger's current length (record.CodeStaleLength)
//
// On success the entry is inserted at index == old length and the new
// index is returned. Any failure rolls back everything.
func (s *Store) AppendLedgerEntry(ctx context.Context, caller record.Identity, entry record.LedgerEntry, expectedLength int64, j JournalRecord) (int64, error) {
	if caller != entry.Owner {
		return 0, record.NewNotOwner(caller, entry.Owner)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append ledger entry: begin tx: %w", err)
	}
	defer tx.Rollback()

	registered, err := isRegisteredTx(tx, entry.Owner)
	if err != nil {
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}
	if !registered {
		return 0, record.NewNotRegistered(entry.Owner)
	}

	length, err := ledgerCountTx(tx, entry.Owner)
	if err != nil {
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}
	if expectedLength != length {
		return 0, record.NewStaleLength(entry.Owner, expectedLength, length)
	}

	_, err = tx.Exec(`
		INSERT INTO ledger_entries (owner, idx, payload, seq)
		VALUES (?, ?, ?, ?)
	`,
		string(entry.Owner),
		length,
		entry.Payload,
		entry.Seq,
	)
	if err != nil {
		return 0, fmt.Errorf("append ledger entry: insert: %w", err)
	}

	if err := appendJournalTx(tx, j); err != nil {
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append ledger entry: commit: %w", err)
	}

	return length, nil
}

// GetLedgerEntry retrieves the entry at the given index of the owner's
// ledger. Readable by any registered identity; the registration check on
// the reader belongs to the engine.
//
// Fails with record.CodeNotRegistered if the owner has no account, and
// record.CodeIndexOutOfRange if the index is past the ledger's end.
func (s *Store) GetLedgerEntry(ctx context.Context, owner record.Identity, index int64) (record.LedgerEntry, error) {
	registered, err := s.IsRegistered(ctx, owner)
	if err != nil {
		return record.LedgerEntry{}, fmt.Errorf("get ledger entry: %w", err)
	}
	if !registered {
		return record.LedgerEntry{}, record.NewNotRegistered(owner)
	}

	var entry record.LedgerEntry
	var ownerCol string
	err = s.db.QueryRowContext(ctx, `
		SELECT owner, idx, payload, seq
		FROM ledger_entries
		WHERE owner = ? AND idx = ?
	`, string(owner), index).Scan(&ownerCol, &entry.Index, &entry.Payload, &entry.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		length, countErr := s.LedgerCount(ctx, owner)
		if countErr != nil {
			return record.LedgerEntry{}, fmt.Errorf("get ledger entry: %w", countErr)
		}
		return record.LedgerEntry{}, record.NewIndexOutOfRange(owner, index, length)
	}
	if err != nil {
		return record.LedgerEntry{}, fmt.Errorf("get ledger entry: %w", err)
	}
	entry.Owner = record.Identity(ownerCol)
	return entry, nil
}

// LedgerCount returns the current length of the owner's ledger. A
// registered account with no entries has length 0. Pure read.
func (s *Store) LedgerCount(ctx context.Context, owner record.Identity) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ledger_entries WHERE owner = ?
	`, string(owner)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return count, nil
}

// ledgerCountTx returns the owner's ledger length inside an open transaction.
func ledgerCountTx(tx *sql.Tx, owner record.Identity) (int64, error) {
	var count int64
	err := tx.QueryRow(`
		SELECT COUNT(*) FROM ledger_entries WHERE owner = ?
	`, string(owner)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return count, nil
}
