package store

import (
	"context"
	"strings"
	"testing"
)

func TestVerify_EmptyState(t *testing.T) {
	s := openTestStore(t)

	report, err := s.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !report.OK() {
		t.Errorf("empty state reported problems: %v", report.Problems)
	}
}

func TestVerify_HealthyState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustRegister(t, s, "alice", 1)
	mustRegister(t, s, "bob", 2)

	for seq := int64(3); seq <= 5; seq++ {
		if _, err := s.AppendMessage(ctx, testMessage("alice", seq), seq-3, testJournal(seq, "alice", "sendMessage")); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	if _, err := s.AppendLedgerEntry(ctx, "bob", testLedgerEntry("bob", 6), 0, testJournal(6, "bob", "addLedgerEntry")); err != nil {
		t.Fatalf("ledger append failed: %v", err)
	}
	if err := s.AdvanceCursor(ctx, "bob", 2, testJournal(7, "bob", "updateReadCursor")); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	report, err := s.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !report.OK() {
		t.Errorf("healthy state reported problems: %v", report.Problems)
	}
	if report.Accounts != 2 || report.Messages != 3 || report.LedgerEntries != 1 || report.JournalRows != 7 {
		t.Errorf("report counts = %+v", report)
	}
}

func TestVerify_DetectsGapInMessageLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustRegister(t, s, "alice", 1)
	if _, err := s.AppendMessage(ctx, testMessage("alice", 2), 0, testJournal(2, "alice", "sendMessage")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Corrupt the log directly: move the entry off index 0.
	if _, err := s.db.Exec(`UPDATE messages SET idx = 5 WHERE idx = 0`); err != nil {
		t.Fatalf("corrupt failed: %v", err)
	}

	report, err := s.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if report.OK() {
		t.Fatal("expected problems for gapped message log")
	}
	if !strings.Contains(report.Problems[0], "not dense") {
		t.Errorf("unexpected problem text: %v", report.Problems)
	}
}

func TestVerify_DetectsTimestampRegression(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustRegister(t, s, "alice", 1)
	for seq := int64(2); seq <= 3; seq++ {
		if _, err := s.AppendMessage(ctx, testMessage("alice", seq), seq-2, testJournal(seq, "alice", "sendMessage")); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	if _, err := s.db.Exec(`UPDATE messages SET sent_at = 1 WHERE idx = 1`); err != nil {
		t.Fatalf("corrupt failed: %v", err)
	}

	report, err := s.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if report.OK() {
		t.Fatal("expected problems for regressed timestamp")
	}
}

func TestVerify_DetectsOutOfRangeCursor(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustRegister(t, s, "alice", 1)

	// Cursor 3 with an empty message log is out of range.
	if _, err := s.db.Exec(`UPDATE accounts SET read_cursor = 3 WHERE identity = 'alice'`); err != nil {
		t.Fatalf("corrupt failed: %v", err)
	}

	report, err := s.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if report.OK() {
		t.Fatal("expected problems for out-of-range cursor")
	}
}

func TestVerify_DetectsMissingJournalRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustRegister(t, s, "alice", 1)

	if _, err := s.db.Exec(`DELETE FROM journal`); err != nil {
		t.Fatalf("corrupt failed: %v", err)
	}

	report, err := s.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if report.OK() {
		t.Fatal("expected problems for missing journal rows")
	}
}
