package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tidemark/sealpost/internal/record"
)

// AdvanceCursor moves the identity's read cursor to newIndex.
//
// Preconditions, checked inside a single transaction:
//   - identity is registered (record.CodeNotRegistered)
//   - currentCursor < newIndex < message log length
//     (record.CodeInvalidCursorAdvance)
//
// Advancing to newIndex means every message with index <= newIndex is
// considered read. The cursor never moves backward and never stays put.
func (s *Store) AdvanceCursor(ctx context.Context, identity record.Identity, newIndex int64, j JournalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("advance cursor: begin tx: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRow(`
		SELECT read_cursor FROM accounts WHERE identity = ?
	`, string(identity)).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return record.NewNotRegistered(identity)
	}
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}

	length, err := messageCountTx(tx)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}

	if newIndex <= current || newIndex >= length {
		return record.NewInvalidCursorAdvance(identity, newIndex, current)
	}

	_, err = tx.Exec(`
		UPDATE accounts SET read_cursor = ? WHERE identity = ?
	`, newIndex, string(identity))
	if err != nil {
		return fmt.Errorf("advance cursor: update: %w", err)
	}

	if err := appendJournalTx(tx, j); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("advance cursor: commit: %w", err)
	}

	return nil
}

// Cursor returns the identity's current read cursor. record.CursorNone
// means nothing has been read. Pure read.
func (s *Store) Cursor(ctx context.Context, identity record.Identity) (int64, error) {
	var cursor int64
	err := s.db.QueryRowContext(ctx, `
		SELECT read_cursor FROM accounts WHERE identity = ?
	`, string(identity)).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, record.NewNotRegistered(identity)
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor: %w", err)
	}
	return cursor, nil
}
