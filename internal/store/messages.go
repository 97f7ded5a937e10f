package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tidemark/sealpost/internal/record"
)

// AppendMessage appends one entry to the global message log under the
// length-CAS discipline.
//
// Preconditions, checked inside a single transaction:
//   - entry.Sender is registered (record.CodeNotRegistered)
//   - expectedLength equals the current log length (record.CodeStaleLength)
//
// On success the entry is inserted at index == old length, the journal
// record is written, and the new index is returned. Any failure rolls
// back everything.
//
// Sender and SentAt on the entry are engine-assigned; the store trusts
// them as given.
func (s *Store) AppendMessage(ctx context.Context, entry record.MessageEntry, expectedLength int64, j JournalRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append message: begin tx: %w", err)
	}
	defer tx.Rollback()

	registered, err := isRegisteredTx(tx, entry.Sender)
	if err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}
	if !registered {
		return 0, record.NewNotRegistered(entry.Sender)
	}

	length, err := messageCountTx(tx)
	if err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}
	if expectedLength != length {
		return 0, record.NewStaleLength(entry.Sender, expectedLength, length)
	}

	_, err = tx.Exec(`
		INSERT INTO messages (idx, sender, sent_at, encrypted_to, encrypted_message, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		length,
		string(entry.Sender),
		entry.SentAt,
		entry.EncryptedTo,
		entry.EncryptedMessage,
		entry.Seq,
	)
	if err != nil {
		return 0, fmt.Errorf("append message: insert: %w", err)
	}

	if err := appendJournalTx(tx, j); err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append message: commit: %w", err)
	}

	return length, nil
}

// GetMessage retrieves the entry at the given log index.
// Fails with record.CodeIndexOutOfRange if index is negative or past the
// end of the log. Pure read.
func (s *Store) GetMessage(ctx context.Context, index int64) (record.MessageEntry, error) {
	var entry record.MessageEntry
	var sender string
	err := s.db.QueryRowContext(ctx, `
		SELECT idx, sender, sent_at, encrypted_to, encrypted_message, seq
		FROM messages
		WHERE idx = ?
	`, index).Scan(&entry.Index, &sender, &entry.SentAt, &entry.EncryptedTo, &entry.EncryptedMessage, &entry.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		length, countErr := s.MessageCount(ctx)
		if countErr != nil {
			return record.MessageEntry{}, fmt.Errorf("get message: %w", countErr)
		}
		return record.MessageEntry{}, record.NewIndexOutOfRange("", index, length)
	}
	if err != nil {
		return record.MessageEntry{}, fmt.Errorf("get message: %w", err)
	}
	entry.Sender = record.Identity(sender)
	return entry, nil
}

// MessageCount returns the current length of the message log. Pure read.
func (s *Store) MessageCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// messageCountTx returns the message log length inside an open transaction.
func messageCountTx(tx *sql.Tx) (int64, error) {
	var count int64
	if err := tx.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}
