package store

import (
	"context"
	"fmt"
)

// VerifyReport summarizes an invariant check over the whole world state.
type VerifyReport struct {
	Accounts      int64    `json:"accounts"`
	Messages      int64    `json:"messages"`
	LedgerEntries int64    `json:"ledger_entries"`
	JournalRows   int64    `json:"journal_rows"`
	Problems      []string `json:"problems"`
}

// OK reports whether no invariant violations were found.
func (r VerifyReport) OK() bool {
	return len(r.Problems) == 0
}

// Verify checks the structural invariants of the world state:
//
//  1. Message indexes are dense: exactly 0..length-1, no gaps, no edits.
//  2. Message timestamps are non-decreasing in index order.
//  3. Every message sender has an account.
//  4. Each ledger's indexes are dense per owner.
//  5. Every read cursor is within [-1, message length - 1].
//  6. Journal sequence numbers are unique (enforced by schema) and every
//     journaled mutation count matches the state tables:
//     journal rows == accounts + messages + ledger entries + cursor moves,
//     which reduces to journal rows >= accounts + messages + ledger rows.
//
// Verify never mutates state; it reads the database as-is and reports
// every violation it finds rather than stopping at the first.
func (s *Store) Verify(ctx context.Context) (VerifyReport, error) {
	var report VerifyReport
	var err error

	if report.Accounts, err = s.AccountCount(ctx); err != nil {
		return report, fmt.Errorf("verify: %w", err)
	}
	if report.Messages, err = s.MessageCount(ctx); err != nil {
		return report, fmt.Errorf("verify: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&report.LedgerEntries); err != nil {
		return report, fmt.Errorf("verify: count ledger entries: %w", err)
	}
	if report.JournalRows, err = s.JournalCount(ctx); err != nil {
		return report, fmt.Errorf("verify: %w", err)
	}

	checks := []func(context.Context, *VerifyReport) error{
		s.checkMessageIndexes,
		s.checkMessageTimestamps,
		s.checkMessageSenders,
		s.checkLedgerIndexes,
		s.checkCursors,
		s.checkJournalCoverage,
	}
	for _, check := range checks {
		if err := check(ctx, &report); err != nil {
			return report, err
		}
	}

	return report, nil
}

// checkMessageIndexes verifies the message log is dense: idx 0..n-1.
func (s *Store) checkMessageIndexes(ctx context.Context, report *VerifyReport) error {
	var minIdx, maxIdx int64
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MIN(idx), 0), COALESCE(MAX(idx), -1), COUNT(*) FROM messages
	`).Scan(&minIdx, &maxIdx, &count)
	if err != nil {
		return fmt.Errorf("verify: message indexes: %w", err)
	}
	if count == 0 {
		return nil
	}
	if minIdx != 0 || maxIdx != count-1 {
		report.Problems = append(report.Problems, fmt.Sprintf(
			"message log not dense: %d entries, idx range [%d, %d]", count, minIdx, maxIdx))
	}
	return nil
}

// checkMessageTimestamps verifies sent_at never regresses in index order.
func (s *Store) checkMessageTimestamps(ctx context.Context, report *VerifyReport) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.idx
		FROM messages a JOIN messages b ON b.idx = a.idx - 1
		WHERE a.sent_at < b.sent_at
		ORDER BY a.idx
	`)
	if err != nil {
		return fmt.Errorf("verify: message timestamps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int64
		if err := rows.Scan(&idx); err != nil {
			return fmt.Errorf("verify: message timestamps: %w", err)
		}
		report.Problems = append(report.Problems, fmt.Sprintf(
			"message %d has earlier timestamp than message %d", idx, idx-1))
	}
	return rows.Err()
}

// checkMessageSenders verifies every sender has an account.
func (s *Store) checkMessageSenders(ctx context.Context, report *VerifyReport) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.idx, m.sender
		FROM messages m LEFT JOIN accounts a ON m.sender = a.identity
		WHERE a.identity IS NULL
		ORDER BY m.idx
	`)
	if err != nil {
		return fmt.Errorf("verify: message senders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int64
		var sender string
		if err := rows.Scan(&idx, &sender); err != nil {
			return fmt.Errorf("verify: message senders: %w", err)
		}
		report.Problems = append(report.Problems, fmt.Sprintf(
			"message %d has unregistered sender %q", idx, sender))
	}
	return rows.Err()
}

// checkLedgerIndexes verifies each owner's ledger is dense: idx 0..n-1.
func (s *Store) checkLedgerIndexes(ctx context.Context, report *VerifyReport) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, MIN(idx), MAX(idx), COUNT(*)
		FROM ledger_entries
		GROUP BY owner
		ORDER BY owner
	`)
	if err != nil {
		return fmt.Errorf("verify: ledger indexes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var owner string
		var minIdx, maxIdx, count int64
		if err := rows.Scan(&owner, &minIdx, &maxIdx, &count); err != nil {
			return fmt.Errorf("verify: ledger indexes: %w", err)
		}
		if minIdx != 0 || maxIdx != count-1 {
			report.Problems = append(report.Problems, fmt.Sprintf(
				"ledger of %q not dense: %d entries, idx range [%d, %d]", owner, count, minIdx, maxIdx))
		}
	}
	return rows.Err()
}

// checkCursors verifies every cursor is within [-1, message length - 1].
func (s *Store) checkCursors(ctx context.Context, report *VerifyReport) error {
	length, err := s.MessageCount(ctx)
	if err != nil {
		return fmt.Errorf("verify: cursors: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, read_cursor FROM accounts
		WHERE read_cursor < -1 OR read_cursor >= ?
		ORDER BY identity
	`, length)
	if err != nil {
		return fmt.Errorf("verify: cursors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var identity string
		var cursor int64
		if err := rows.Scan(&identity, &cursor); err != nil {
			return fmt.Errorf("verify: cursors: %w", err)
		}
		report.Problems = append(report.Problems, fmt.Sprintf(
			"cursor of %q is %d, outside [-1, %d]", identity, cursor, length-1))
	}
	return rows.Err()
}

// checkJournalCoverage verifies every state row has a journaled mutation.
// Cursor advances add journal rows without adding state rows, so the
// journal may legitimately exceed the sum.
func (s *Store) checkJournalCoverage(ctx context.Context, report *VerifyReport) error {
	stateRows := report.Accounts + report.Messages + report.LedgerEntries
	if report.JournalRows < stateRows {
		report.Problems = append(report.Problems, fmt.Sprintf(
			"journal has %d rows but state tables hold %d mutations", report.JournalRows, stateRows))
	}
	return nil
}
