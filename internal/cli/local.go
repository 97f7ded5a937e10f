package cli

import (
	"context"

	"github.com/tidemark/sealpost/internal/engine"
	"github.com/tidemark/sealpost/internal/record"
	"github.com/tidemark/sealpost/internal/store"
)

// session is a short-lived engine over a local database, used by the
// data commands. Each command opens a session, submits its operations,
// and closes it; the serve command runs a long-lived engine instead.
type session struct {
	st     *store.Store
	eng    *engine.Engine
	cancel context.CancelFunc
	done   chan struct{}
}

// openSession opens the database and starts a single-writer loop.
func openSession(dbPath string) (*session, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	eng := engine.New(st, engine.UUIDv7Generator{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Run(ctx)
	}()

	return &session{st: st, eng: eng, cancel: cancel, done: done}, nil
}

// Submit runs one operation through the engine loop.
func (s *session) Submit(op engine.Op) (engine.Result, error) {
	return s.eng.Submit(context.Background(), op)
}

// Close stops the engine loop and closes the database.
func (s *session) Close() {
	s.cancel()
	<-s.done
	s.st.Close()
}

// reportFault prints a rejected operation and converts it to an exit
// error. Non-fault errors pass through as command errors.
func reportFault(f *OutputFormatter, err error) error {
	if record.CodeOf(err) != "" ||
		engine.IsQuotaExceeded(err) || engine.IsPayloadTooLarge(err) {
		f.Fault(err)
		return NewExitError(ExitFailure, err.Error())
	}
	return WrapExitError(ExitCommandError, "operation failed", err)
}
