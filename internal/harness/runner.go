// Package harness runs YAML conformance scenarios against a real engine.
//
// Each scenario gets a fresh in-memory database and an engine with a
// deterministic clock and operation ID generator, so repeated runs of
// the same scenario produce byte-identical traces. Traces are compared
// against golden files with goldie.
package harness

import (
	"context"
	"fmt"

	"github.com/tidemark/sealpost/internal/engine"
	"github.com/tidemark/sealpost/internal/record"
	"github.com/tidemark/sealpost/internal/store"
	"github.com/tidemark/sealpost/internal/testutil"
)

// TraceEvent records the outcome of one scenario step.
type TraceEvent struct {
	Step       int    `json:"step"`
	Op         string `json:"op"`
	Caller     string `json:"caller"`
	Status     string `json:"status"` // "ok" | "fault" | "error"
	Fault      string `json:"fault,omitempty"`
	Seq        int64  `json:"seq,omitempty"`
	Index      *int64 `json:"index,omitempty"`
	Count      *int64 `json:"count,omitempty"`
	Cursor     *int64 `json:"cursor,omitempty"`
	Registered *bool  `json:"registered,omitempty"`
	Sender     string `json:"sender,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	Scenario string
	Trace    []TraceEvent
	Errors   []string
}

// Passed reports whether every step matched its expectation.
func (r *Result) Passed() bool {
	return len(r.Errors) == 0
}

// AddError records an expectation failure.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with
// a stepping time source and sequential operation IDs for reproducible
// traces.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := engine.NewClockWithSource(testutil.NewDefaultTimeSource().Now)
	eng := engine.New(st, engine.NewSequenceGenerator(), engine.WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	result := &Result{Scenario: scenario.Name}
	for i, step := range scenario.Steps {
		res, err := eng.Submit(ctx, buildOp(step))
		result.Trace = append(result.Trace, buildEvent(i+1, step, res, err))
		checkExpect(result, i+1, step, res, err)
	}

	return result, nil
}

// buildOp converts a scenario step into an operation envelope.
func buildOp(step Step) engine.Op {
	return engine.Op{
		Kind:             engine.OpKind(step.Op),
		Caller:           record.Identity(step.Caller),
		PublicKey:        blob(step.Args.PublicKey),
		EncryptedTo:      blob(step.Args.To),
		EncryptedMessage: blob(step.Args.Message),
		Payload:          blob(step.Args.Payload),
		ExpectedLength:   step.Args.ExpectedLength,
		Index:            step.Args.Index,
		NewIndex:         step.Args.NewIndex,
		Owner:            record.Identity(step.Args.Owner),
		Target:           record.Identity(step.Args.Target),
	}
}

func blob(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}

// buildEvent turns one step outcome into a trace event.
func buildEvent(stepNum int, step Step, res engine.Result, err error) TraceEvent {
	ev := TraceEvent{
		Step:   stepNum,
		Op:     step.Op,
		Caller: step.Caller,
	}

	if err != nil {
		if code := record.CodeOf(err); code != "" {
			ev.Status = "fault"
			ev.Fault = string(code)
		} else {
			ev.Status = "error"
			ev.Fault = err.Error()
		}
		return ev
	}

	ev.Status = "ok"
	ev.Seq = res.Seq

	switch engine.OpKind(step.Op) {
	case engine.OpSendMessage, engine.OpAddLedgerEntry:
		ev.Index = ptr(res.Index)
	case engine.OpMessageCount, engine.OpLedgerCount:
		ev.Count = ptr(res.Count)
	case engine.OpUpdateReadCursor, engine.OpReadCursor:
		ev.Cursor = ptr(res.Cursor)
	case engine.OpIsRegistered:
		ev.Registered = &res.Registered
	case engine.OpGetMessage:
		ev.Sender = string(res.Message.Sender)
	}

	return ev
}

// checkExpect validates one step outcome against its expect clause.
func checkExpect(result *Result, stepNum int, step Step, res engine.Result, err error) {
	exp := step.Expect

	if exp != nil && exp.Fault != "" {
		if code := record.CodeOf(err); string(code) != exp.Fault {
			result.AddError("step %d (%s): expected fault %s, got %v", stepNum, step.Op, exp.Fault, err)
		}
		return
	}

	if err != nil {
		result.AddError("step %d (%s): unexpected error: %v", stepNum, step.Op, err)
		return
	}
	if exp == nil {
		return
	}

	if exp.Index != nil && res.Index != *exp.Index {
		result.AddError("step %d (%s): expected index %d, got %d", stepNum, step.Op, *exp.Index, res.Index)
	}
	if exp.Count != nil && res.Count != *exp.Count {
		result.AddError("step %d (%s): expected count %d, got %d", stepNum, step.Op, *exp.Count, res.Count)
	}
	if exp.Cursor != nil && res.Cursor != *exp.Cursor {
		result.AddError("step %d (%s): expected cursor %d, got %d", stepNum, step.Op, *exp.Cursor, res.Cursor)
	}
	if exp.Registered != nil && res.Registered != *exp.Registered {
		result.AddError("step %d (%s): expected registered=%v, got %v", stepNum, step.Op, *exp.Registered, res.Registered)
	}
	if exp.Sender != "" && string(res.Message.Sender) != exp.Sender {
		result.AddError("step %d (%s): expected sender %s, got %s", stepNum, step.Op, exp.Sender, res.Message.Sender)
	}
	if exp.Message != "" && string(res.Message.EncryptedMessage) != exp.Message {
		result.AddError("step %d (%s): message body mismatch", stepNum, step.Op)
	}
	if exp.Payload != "" && string(res.Payload) != exp.Payload {
		result.AddError("step %d (%s): payload mismatch", stepNum, step.Op)
	}
}

func ptr(v int64) *int64 {
	return &v
}
