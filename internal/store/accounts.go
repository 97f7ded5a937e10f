package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tidemark/sealpost/internal/record"
)

// RegisterAccount creates an account for acct.Identity.
//
// Fails with record.CodeAlreadyRegistered if an account already exists
// for that identity. The check and the insert share one transaction, and
// the journal record lands in the same transaction.
func (s *Store) RegisterAccount(ctx context.Context, acct record.Account, j JournalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("register account: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	registered, err := isRegisteredTx(tx, acct.Identity)
	if err != nil {
		return fmt.Errorf("register account: %w", err)
	}
	if registered {
		return record.NewAlreadyRegistered(acct.Identity)
	}

	_, err = tx.Exec(`
		INSERT INTO accounts (identity, public_key, read_cursor, registered_seq, registered_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		string(acct.Identity),
		acct.PublicKey,
		record.CursorNone,
		acct.RegisteredSeq,
		acct.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("register account: insert: %w", err)
	}

	if err := appendJournalTx(tx, j); err != nil {
		return fmt.Errorf("register account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("register account: commit: %w", err)
	}

	return nil
}

// IsRegistered reports whether an account exists for the identity.
// Pure read, no side effects.
func (s *Store) IsRegistered(ctx context.Context, identity record.Identity) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM accounts WHERE identity = ?
	`, string(identity)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return count > 0, nil
}

// GetAccount retrieves an account by identity.
// Fails with record.CodeNotRegistered if no account exists.
func (s *Store) GetAccount(ctx context.Context, identity record.Identity) (record.Account, error) {
	var acct record.Account
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT identity, public_key, read_cursor, registered_seq, registered_at
		FROM accounts
		WHERE identity = ?
	`, string(identity)).Scan(&id, &acct.PublicKey, &acct.ReadCursor, &acct.RegisteredSeq, &acct.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Account{}, record.NewNotRegistered(identity)
	}
	if err != nil {
		return record.Account{}, fmt.Errorf("get account: %w", err)
	}
	acct.Identity = record.Identity(id)
	return acct, nil
}

// AccountCount returns the number of registered accounts.
func (s *Store) AccountCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

// isRegisteredTx checks registration inside an open transaction.
func isRegisteredTx(tx *sql.Tx, identity record.Identity) (bool, error) {
	var count int
	err := tx.QueryRow(`
		SELECT COUNT(*) FROM accounts WHERE identity = ?
	`, string(identity)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return count > 0, nil
}
