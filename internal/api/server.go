// Package api exposes the engine's operation surface over HTTP.
//
// The API is a thin facade: every request becomes one engine.Submit call
// and every fault code maps to one HTTP status. Caller identity comes
// from the X-Sealpost-Identity header; authenticating that header is the
// deployment's concern (reverse proxy, mTLS, platform auth), exactly as
// caller authentication is the host platform's concern for the engine.
//
// Blobs travel as base64 strings, the encoding/json default for []byte.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tidemark/sealpost/internal/engine"
	"github.com/tidemark/sealpost/internal/record"
)

// IdentityHeader carries the authenticated caller identity.
const IdentityHeader = "X-Sealpost-Identity"

// Server handles API requests against a running engine.
type Server struct {
	eng *engine.Engine
	hub *TailHub
}

// NewServer creates an API server. hub may be nil if no tail feed is
// wanted; pass the same hub to engine.WithAppendHook(hub.Notify).
func NewServer(eng *engine.Engine, hub *TailHub) *Server {
	return &Server{eng: eng, hub: hub}
}

// Routes returns the HTTP handler for the full API surface.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/register", s.handleRegister)
	mux.HandleFunc("POST /v1/messages", s.handleSendMessage)
	mux.HandleFunc("GET /v1/messages/count", s.handleMessageCount)
	mux.HandleFunc("GET /v1/messages/{idx}", s.handleGetMessage)
	mux.HandleFunc("GET /v1/cursor", s.handleReadCursor)
	mux.HandleFunc("POST /v1/cursor", s.handleUpdateCursor)
	mux.HandleFunc("POST /v1/ledger", s.handleAddLedgerEntry)
	mux.HandleFunc("GET /v1/ledger/{owner}/count", s.handleLedgerCount)
	mux.HandleFunc("GET /v1/ledger/{owner}/{idx}", s.handleGetLedgerEntry)
	mux.HandleFunc("GET /v1/registered/{identity}", s.handleIsRegistered)

	if s.hub != nil {
		mux.HandleFunc("GET /v1/tail", s.hub.handleTail)
	}

	return mux
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req struct {
		PublicKey []byte `json:"public_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.eng.Submit(r.Context(), engine.Op{
		Kind:      engine.OpRegister,
		Caller:    caller,
		PublicKey: req.PublicKey,
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"op_id": res.OpID})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req struct {
		EncryptedTo      []byte `json:"encrypted_to"`
		EncryptedMessage []byte `json:"encrypted_message"`
		ExpectedLength   int64  `json:"expected_length"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.eng.Submit(r.Context(), engine.Op{
		Kind:             engine.OpSendMessage,
		Caller:           caller,
		EncryptedTo:      req.EncryptedTo,
		EncryptedMessage: req.EncryptedMessage,
		ExpectedLength:   req.ExpectedLength,
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"index": res.Index, "op_id": res.OpID})
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.identity(w, r)
	if !ok {
		return
	}
	idx, ok := pathInt(w, r, "idx")
	if !ok {
		return
	}

	res, err := s.eng.Submit(r.Context(), engine.Op{
		Kind:   engine.OpGetMessage,
		Caller: caller,
		Index:  idx,
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Message)
}

func (s *Server) handleMessageCount(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.identity(w, r)
	if !ok {
		return
	}

	res, err := s.eng.Submit(r.Context(), engine.Op{
		Kind:   engine.OpMessageCount,
		Caller: caller,
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"length": res.Count})
}

func (s *Server) handleReadCursor(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.identity(w, r)
	if !ok {
		return
	}

	res, err := s.eng.Submit(r.Context(), engine.Op{
		Kind:   engine.OpReadCursor,
		Caller: caller,
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cursor": res.Cursor})
}

func (s *Server) handleUpdateCursor(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req struct {
		NewIndex int64 `json:"new_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.eng.Submit(r.Context(), engine.Op{
		Kind:     engine.OpUpdateReadCursor,
		Caller:   caller,
		NewIndex: req.NewIndex,
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cursor": res.Cursor})
}

func (s *Server) handleAddLedgerEntry(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req struct {
		Payload        []byte `json:"payload"`
		ExpectedLength int64  `json:"expected_length"`
		Owner          string `json:"owner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.eng.Submit(r.Context(), engine.Op{
		Kind:           engine.OpAddLedgerEntry,
		Caller:         caller,
		Payload:        req.Payload,
		ExpectedLength: req.ExpectedLength,
		Owner:          record.Identity(req.Owner),
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"index": res.Index, "op_id": res.OpID})
}

func (s *Server) handleGetLedgerEntry(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.identity(w, r)
	if !ok {
		return
	}
	idx, ok := pathInt(w, r, "idx")
	if !ok {
		return
	}

	res, err := s.eng.Submit(r.Context(), engine.Op{
		Kind:   engine.OpGetLedgerEntry,
		Caller: caller,
		Owner:  record.Identity(r.PathValue("owner")),
		Index:  idx,
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payload": res.Payload})
}

func (s *Server) handleLedgerCount(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.identity(w, r)
	if !ok {
		return
	}

	res, err := s.eng.Submit(r.Context(), engine.Op{
		Kind:   engine.OpLedgerCount,
		Caller: caller,
		Owner:  record.Identity(r.PathValue("owner")),
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"length": res.Count})
}

func (s *Server) handleIsRegistered(w http.ResponseWriter, r *http.Request) {
	caller := record.Identity(r.Header.Get(IdentityHeader))
	// isRegistered is the one open lookup: a client must be able to
	// check before it has registered itself.
	if caller == "" {
		caller = record.Identity(r.PathValue("identity"))
	}

	res, err := s.eng.Submit(r.Context(), engine.Op{
		Kind:   engine.OpIsRegistered,
		Caller: caller,
		Target: record.Identity(r.PathValue("identity")),
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registered": res.Registered})
}

// identity extracts the authenticated caller from the request header.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) (record.Identity, bool) {
	caller := r.Header.Get(IdentityHeader)
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "missing "+IdentityHeader+" header")
		return "", false
	}
	return record.Identity(caller), true
}

// pathInt parses an integer path segment.
func pathInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+" path segment")
		return 0, false
	}
	return v, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFault maps an operation error to an HTTP status.
func writeFault(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch record.CodeOf(err) {
	case record.CodeAlreadyRegistered, record.CodeStaleLength:
		status = http.StatusConflict
	case record.CodeNotRegistered, record.CodeNotOwner:
		status = http.StatusForbidden
	case record.CodeIndexOutOfRange:
		status = http.StatusNotFound
	case record.CodeInvalidCursorAdvance:
		status = http.StatusUnprocessableEntity
	default:
		if engine.IsQuotaExceeded(err) {
			status = http.StatusTooManyRequests
		} else if engine.IsPayloadTooLarge(err) {
			status = http.StatusRequestEntityTooLarge
		} else if errors.Is(err, engine.ErrStopped) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			// The operation never ran; the engine is stopping or the
			// caller's context expired while queued.
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, map[string]any{
		"error": err.Error(),
		"code":  string(record.CodeOf(err)),
	})
}
