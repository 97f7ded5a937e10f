package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidemark/sealpost/internal/record"
	"github.com/tidemark/sealpost/internal/store"
)

// ErrStopped is returned by Submit when the engine is no longer
// admitting operations.
var ErrStopped = errors.New("engine stopped")

// DefaultMutationQuota is the default per-identity mutation ceiling.
const DefaultMutationQuota = 100000

// DefaultMaxPayloadBytes is the default size ceiling for a single opaque
// blob (public key, ciphertext, ledger payload).
const DefaultMaxPayloadBytes = 64 * 1024

// Engine is the single-writer operation loop.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// INVARIANT: all store mutations happen in the Run loop goroutine, one
// operation at a time, so the store's length-CAS checks can never race.
type Engine struct {
	store *store.Store
	clock *Clock
	queue *opQueue
	ids   OpIDGenerator
	quota *MutationQuota

	maxPayloadBytes int

	// appendHooks fire after each successful sendMessage with the new
	// index. Called from the Run goroutine; hooks must not block.
	appendHooks []func(index int64)
}

// Option configures engine parameters.
type Option func(*Engine)

// WithClock replaces the engine clock. Tests and the harness use this
// with a deterministic time source.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithMutationQuota sets the per-identity mutation ceiling.
// A limit of 0 or less disables enforcement.
func WithMutationQuota(limit int) Option {
	return func(e *Engine) {
		e.quota = NewMutationQuota(limit)
	}
}

// WithMaxPayloadBytes sets the per-blob size ceiling.
// A limit of 0 or less disables enforcement.
func WithMaxPayloadBytes(limit int) Option {
	return func(e *Engine) {
		e.maxPayloadBytes = limit
	}
}

// WithAppendHook registers a callback invoked after every successful
// message append. Used by the API layer to feed the websocket tail.
func WithAppendHook(hook func(index int64)) Option {
	return func(e *Engine) {
		e.appendHooks = append(e.appendHooks, hook)
	}
}

// New creates an Engine over the given store.
// ids generates operation IDs; production uses UUIDv7Generator.
func New(s *store.Store, ids OpIDGenerator, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		clock:           NewClock(),
		queue:           newOpQueue(),
		ids:             ids,
		quota:           NewMutationQuota(DefaultMutationQuota),
		maxPayloadBytes: DefaultMaxPayloadBytes,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Submit enqueues an operation and blocks until the Run loop executes it
// or the context is cancelled.
//
// Thread-safe: may be called from any goroutine. The returned error is
// either a *record.Fault (precondition failure, state unchanged), an
// engine-level rejection (*QuotaExceededError, *PayloadTooLargeError),
// ErrStopped, a context error, or a storage failure.
func (e *Engine) Submit(ctx context.Context, op Op) (Result, error) {
	reply := make(chan outcome, 1)

	if !e.queue.Enqueue(submission{op: op, reply: reply}) {
		return Result{}, ErrStopped
	}

	select {
	case <-ctx.Done():
		// The operation may still execute; the buffered reply channel
		// keeps the Run loop from blocking on it.
		return Result{}, ctx.Err()
	case out := <-reply:
		return out.res, out.err
	}
}

// Run starts the single-writer operation loop.
// Blocks until the context is cancelled or Stop() is called.
//
// Must be called from exactly ONE goroutine. All store mutations happen
// here, in admission order, one at a time.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		sub, ok := e.queue.TryDequeue()
		if ok {
			out := e.execute(ctx, sub.op)
			sub.reply <- out
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.drain()
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// The Run loop drains already-admitted operations, then returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

// QueueLen returns the number of operations waiting for admission.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Clock returns the engine clock. Used for diagnostics and tests.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Quota returns the mutation quota tracker. Used for diagnostics and tests.
func (e *Engine) Quota() *MutationQuota {
	return e.quota
}

// drain rejects every pending submission after shutdown so no caller
// hangs on its reply channel.
func (e *Engine) drain() {
	for {
		sub, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		sub.reply <- outcome{err: ErrStopped}
	}
}

// execute runs one operation to completion.
// Called only from the Run goroutine - single-writer guarantee.
func (e *Engine) execute(ctx context.Context, op Op) outcome {
	if op.Caller == "" {
		return outcome{err: fmt.Errorf("operation %s has no caller identity", op.Kind)}
	}

	seq, nanos := e.clock.Tick()
	opID := e.ids.Generate()

	slog.Debug("executing operation",
		"op_id", opID,
		"kind", op.Kind,
		"caller", op.Caller,
		"seq", seq,
	)

	if op.Kind.Mutates() {
		if err := e.checkBlobSizes(op); err != nil {
			return outcome{err: err}
		}
		if err := e.quota.Admit(op.Caller); err != nil {
			slog.Warn("mutation quota exceeded",
				"op_id", opID,
				"caller", op.Caller,
				"kind", op.Kind,
			)
			return outcome{err: err}
		}
	}

	res, err := e.dispatch(ctx, op, opID, seq, nanos)
	if err != nil {
		if code := record.CodeOf(err); code != "" {
			slog.Info("operation rejected",
				"op_id", opID,
				"kind", op.Kind,
				"caller", op.Caller,
				"fault", code,
			)
		} else {
			slog.Error("operation failed",
				"op_id", opID,
				"kind", op.Kind,
				"caller", op.Caller,
				"error", err,
			)
		}
		return outcome{err: err}
	}

	res.OpID = opID
	res.Seq = seq

	if op.Kind.Mutates() {
		slog.Info("operation applied",
			"op_id", opID,
			"kind", op.Kind,
			"caller", op.Caller,
			"seq", seq,
		)
	}

	return outcome{res: res}
}

// dispatch routes an operation to its store call.
func (e *Engine) dispatch(ctx context.Context, op Op, opID string, seq, nanos int64) (Result, error) {
	switch op.Kind {
	case OpRegister:
		acct := record.Account{
			Identity:      op.Caller,
			PublicKey:     op.PublicKey,
			ReadCursor:    record.CursorNone,
			RegisteredSeq: seq,
			RegisteredAt:  nanos,
		}
		j := e.journalRecord(op, opID, seq, nanos, op.PublicKey)
		if err := e.store.RegisterAccount(ctx, acct, j); err != nil {
			return Result{}, err
		}
		return Result{}, nil

	case OpSendMessage:
		// Sender is the authenticated caller, never operation input.
		entry := record.MessageEntry{
			Sender:           op.Caller,
			SentAt:           nanos,
			EncryptedTo:      op.EncryptedTo,
			EncryptedMessage: op.EncryptedMessage,
			Seq:              seq,
		}
		j := e.journalRecord(op, opID, seq, nanos, op.EncryptedTo, op.EncryptedMessage)
		idx, err := e.store.AppendMessage(ctx, entry, op.ExpectedLength, j)
		if err != nil {
			return Result{}, err
		}
		e.notifyAppend(idx)
		return Result{Index: idx}, nil

	case OpGetMessage:
		if err := e.requireRegistered(ctx, op.Caller); err != nil {
			return Result{}, err
		}
		entry, err := e.store.GetMessage(ctx, op.Index)
		if err != nil {
			return Result{}, err
		}
		return Result{Message: entry}, nil

	case OpMessageCount:
		if err := e.requireRegistered(ctx, op.Caller); err != nil {
			return Result{}, err
		}
		count, err := e.store.MessageCount(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Count: count}, nil

	case OpUpdateReadCursor:
		j := e.journalRecord(op, opID, seq, nanos)
		if err := e.store.AdvanceCursor(ctx, op.Caller, op.NewIndex, j); err != nil {
			return Result{}, err
		}
		return Result{Cursor: op.NewIndex}, nil

	case OpReadCursor:
		cursor, err := e.store.Cursor(ctx, op.Caller)
		if err != nil {
			return Result{}, err
		}
		return Result{Cursor: cursor}, nil

	case OpAddLedgerEntry:
		// Owner names the target ledger; empty means the caller's own.
		// A caller naming someone else's ledger reaches the store's
		// owner guard and fails NOT_OWNER.
		owner := op.Owner
		if owner == "" {
			owner = op.Caller
		}
		entry := record.LedgerEntry{
			Owner:   owner,
			Payload: op.Payload,
			Seq:     seq,
		}
		j := e.journalRecord(op, opID, seq, nanos, op.Payload)
		idx, err := e.store.AppendLedgerEntry(ctx, op.Caller, entry, op.ExpectedLength, j)
		if err != nil {
			return Result{}, err
		}
		return Result{Index: idx}, nil

	case OpGetLedgerEntry:
		if err := e.requireRegistered(ctx, op.Caller); err != nil {
			return Result{}, err
		}
		entry, err := e.store.GetLedgerEntry(ctx, op.Owner, op.Index)
		if err != nil {
			return Result{}, err
		}
		return Result{Payload: entry.Payload}, nil

	case OpLedgerCount:
		if err := e.requireRegistered(ctx, op.Caller); err != nil {
			return Result{}, err
		}
		if err := e.requireRegistered(ctx, op.Owner); err != nil {
			return Result{}, err
		}
		count, err := e.store.LedgerCount(ctx, op.Owner)
		if err != nil {
			return Result{}, err
		}
		return Result{Count: count}, nil

	case OpIsRegistered:
		registered, err := e.store.IsRegistered(ctx, op.Target)
		if err != nil {
			return Result{}, err
		}
		return Result{Registered: registered}, nil

	default:
		return Result{}, fmt.Errorf("unknown operation kind: %q", op.Kind)
	}
}

// requireRegistered gates read operations on the caller's registration.
func (e *Engine) requireRegistered(ctx context.Context, identity record.Identity) error {
	registered, err := e.store.IsRegistered(ctx, identity)
	if err != nil {
		return err
	}
	if !registered {
		return record.NewNotRegistered(identity)
	}
	return nil
}

// journalRecord builds the audit row for a mutating operation.
func (e *Engine) journalRecord(op Op, opID string, seq, nanos int64, blobs ...[]byte) store.JournalRecord {
	return store.JournalRecord{
		OpID:      opID,
		Seq:       seq,
		Caller:    op.Caller,
		Kind:      string(op.Kind),
		Detail:    record.OpDigest(string(op.Kind), op.Caller, blobs...),
		AppliedAt: nanos,
	}
}

// checkBlobSizes enforces the per-blob size ceiling on mutating input.
func (e *Engine) checkBlobSizes(op Op) error {
	if e.maxPayloadBytes <= 0 {
		return nil
	}
	for _, blob := range [][]byte{op.PublicKey, op.EncryptedTo, op.EncryptedMessage, op.Payload} {
		if len(blob) > e.maxPayloadBytes {
			return &PayloadTooLargeError{Size: len(blob), Limit: e.maxPayloadBytes}
		}
	}
	return nil
}

// notifyAppend fires registered append hooks with the new message index.
func (e *Engine) notifyAppend(index int64) {
	for _, hook := range e.appendHooks {
		hook(index)
	}
}

// PayloadTooLargeError is returned when a blob exceeds the engine's size
// ceiling. Like quota rejection, it precedes precondition evaluation.
type PayloadTooLargeError struct {
	Size  int
	Limit int
}

// Error implements the error interface.
func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds limit of %d", e.Size, e.Limit)
}

// IsPayloadTooLarge reports whether the error chain contains a
// PayloadTooLargeError.
func IsPayloadTooLarge(err error) bool {
	var pe *PayloadTooLargeError
	return errors.As(err, &pe)
}
