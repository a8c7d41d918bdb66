package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ledger-core/pkg/accounts"
	"ledger-core/pkg/engine"
	"ledger-core/pkg/ledger"
	"ledger-core/pkg/metrics"
	"ledger-core/pkg/metrics/memory"
	"ledger-core/pkg/session"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type pinRequest struct {
	PIN string `json:"pin"`
}

type transactionRequest struct {
	Kind        ledger.Kind     `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Details     json.RawMessage `json:"details"`
}

func (r transactionRequest) toRequest() (ledger.Request, error) {
	req := ledger.Request{
		Kind:        r.Kind,
		Amount:      r.Amount,
		Description: strings.TrimSpace(r.Description),
	}
	if !req.Kind.Valid() {
		return req, ledger.Invalid("kind", fmt.Sprintf("unknown transaction kind %q", r.Kind))
	}
	details, err := ledger.UnmarshalDetails(r.Kind, r.Details)
	if err != nil {
		return req, err
	}
	req.Details = details
	return req, nil
}

type sessionResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	PinVerified bool      `json:"pinVerified"`
	Timestamp   time.Time `json:"timestamp"`
}

func newSessionResponse(sess *session.Session) sessionResponse {
	return sessionResponse{
		ID:          sess.ID(),
		UserID:      sess.UserID(),
		PinVerified: sess.PinVerified(),
		Timestamp:   sess.Timestamp(),
	}
}

type quoteResponse struct {
	Kind        ledger.Kind    `json:"kind"`
	Description string         `json:"description"`
	Details     ledger.Details `json:"details"`
	Quote       engine.Quote   `json:"quote"`
}

// decodeJSON reads a bounded JSON body into v. Malformed bodies are
// validation errors on the "body" field.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return ledger.Invalid("body", err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// unlocked returns the current session once its login PIN is verified.
func (s *Server) unlocked(ctx context.Context) (*session.Session, error) {
	sess, err := s.deps.Sessions.Resume(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.RequireUnlocked(); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	status := http.StatusOK

	if layer := s.deps.Store; layer != nil {
		resp["store"] = layer.Name()
		if p, ok := layer.(Pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				resp["status"] = "degraded"
				resp["error"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
	}

	writeJSON(w, status, resp)
}

type snapshotter interface {
	Snapshot() memory.Snapshot
}

// findSnapshotter looks for an in-memory collector in c or, for a fan-out
// collector, among its targets.
func findSnapshotter(c metrics.MetricsCollector) (snapshotter, bool) {
	if snap, ok := c.(snapshotter); ok {
		return snap, true
	}
	if multi, ok := c.(interface{ Unwrap() []metrics.MetricsCollector }); ok {
		for _, inner := range multi.Unwrap() {
			if snap, ok := findSnapshotter(inner); ok {
				return snap, true
			}
		}
	}
	return nil, false
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	snap, ok := findSnapshotter(s.metrics)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "in-memory metrics are not enabled", Code: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, snap.Snapshot())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg accounts.Registration
	if err := decodeJSON(r, &reg); err != nil {
		s.writeError(w, err)
		return
	}
	account, err := s.deps.Accounts.Create(r.Context(), reg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account.Public())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentialsRequest
	if err := decodeJSON(r, &creds); err != nil {
		s.writeError(w, err)
		return
	}
	sess, err := s.deps.Sessions.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Resume(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Logout(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVerifyPIN(w http.ResponseWriter, r *http.Request) {
	var body pinRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	sess, err := s.deps.Sessions.Resume(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Sessions.VerifyPIN(r.Context(), sess, body.PIN); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	sess, err := s.unlocked(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	account, err := s.deps.Accounts.Get(r.Context(), sess.UserID())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account.Public())
}

func (s *Server) handleBlockCard(w http.ResponseWriter, r *http.Request) {
	sess, err := s.unlocked(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	account, err := s.deps.Accounts.BlockCard(r.Context(), sess.UserID())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account.Public())
}

func (s *Server) handleFreezeCard(w http.ResponseWriter, r *http.Request) {
	s.changeCard(w, r, s.deps.Accounts.FreezeCard)
}

func (s *Server) handleUnfreezeCard(w http.ResponseWriter, r *http.Request) {
	s.changeCard(w, r, s.deps.Accounts.UnfreezeCard)
}

func (s *Server) changeCard(w http.ResponseWriter, r *http.Request, change func(context.Context, string) (ledger.Account, error)) {
	sess, err := s.unlocked(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	account, err := change(r.Context(), sess.UserID())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account.Public())
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	sess, err := s.unlocked(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	txs, err := s.deps.Log.List(r.Context(), sess.UserID())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	sess, err := s.unlocked(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	tx, err := s.deps.Log.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	// Another user's transaction is reported as missing.
	if tx.UserID != sess.UserID() {
		s.writeError(w, ledger.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	var body transactionRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	sess, err := s.unlocked(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.deps.Engine.Begin(r.Context(), sess, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, p.View())
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var body transactionRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	sess, err := s.unlocked(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.writeError(w, err)
		return
	}
	account, err := s.deps.Accounts.Get(r.Context(), sess.UserID())
	if err != nil {
		s.writeError(w, err)
		return
	}
	req, quote, err := s.deps.Engine.Quote(r.Context(), account, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		Kind:        req.Kind,
		Description: req.Description,
		Details:     req.Details,
		Quote:       quote,
	})
}

func (s *Server) handleGetPending(w http.ResponseWriter, r *http.Request) {
	sess, err := s.unlocked(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.deps.Engine.PendingFor(sess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

// handleConfirm blocks for the commit delay. A client disconnect during
// the delay abandons the transaction.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var body pinRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	sess, err := s.unlocked(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	tx, err := s.deps.Engine.Confirm(r.Context(), sess, body.PIN)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	sess, err := s.unlocked(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Engine.Abandon(sess); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFlightQuote(w http.ResponseWriter, r *http.Request) {
	q, err := ledger.QuoteFlight(r.URL.Query().Get("class"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
