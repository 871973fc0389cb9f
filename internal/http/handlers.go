package http

import (
	"net/http"
	"strings"
	"time"

	"saldo/internal/api"
	"saldo/internal/auth"
	"saldo/internal/core"
	"saldo/internal/log"
)

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, log.OpCompute, err)
		return
	}

	if r.Method == http.MethodGet {
		view, err := s.services.Balance.ComputeBalance(r.Context(), userID)
		if err != nil {
			writeError(w, r, log.OpCompute, err)
			return
		}
		writeJSON(w, r, http.StatusOK, api.FromBalanceView(view))
		return
	}

	var req api.SetMonthlyIncomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MonthlyIncome == nil || req.MonthlyIncome.IsNegative() {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid monthly income")
		return
	}
	income, err := req.MonthlyIncome.Money()
	if err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid monthly income")
		return
	}
	amount, err := s.services.Balance.SetMonthlyIncome(r.Context(), userID, income)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, r, http.StatusOK, api.SetMonthlyIncomeResponse{
		Success:       true,
		MonthlyIncome: api.Dec(amount.Decimal()),
	})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, log.OpClose, err)
		return
	}

	if r.Method == http.MethodPost {
		summary, err := s.services.Closures.ClosePeriod(r.Context(), userID)
		if err != nil {
			writeError(w, r, log.OpClose, err)
			return
		}
		writeJSON(w, r, http.StatusOK, api.FromClosureSummary(summary))
		return
	}

	limit, _, err := queryInt(r, "limit")
	if err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid limit")
		return
	}
	closures, err := s.services.Closures.ListClosures(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, r, http.StatusOK, api.FromClosures(closures))
}

func (s *Server) handleAutoClose(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	if r.Method == http.MethodGet {
		prefs, err := s.services.Balance.Preferences(r.Context(), userID)
		if err != nil {
			writeError(w, r, log.OpList, err)
			return
		}
		writeJSON(w, r, http.StatusOK, autoCloseResponse(prefs.AutoClose, prefs.AutoCloseAnchor))
		return
	}

	var req api.AutoCloseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	var anchor core.Date
	if a := strings.TrimSpace(req.Anchor); a != "" {
		t, err := time.Parse(time.DateOnly, a)
		if err != nil {
			writeErrorMessage(w, r, http.StatusBadRequest, "Invalid anchor date")
			return
		}
		anchor = core.NewDate(t.Year(), int(t.Month()), t.Day())
	}
	every := core.RepetitionTypes(strings.ToLower(strings.TrimSpace(req.Frequency)))
	if err := s.services.Balance.SetAutoClose(r.Context(), userID, every, anchor); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	prefs, err := s.services.Balance.Preferences(r.Context(), userID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, r, http.StatusOK, autoCloseResponse(prefs.AutoClose, prefs.AutoCloseAnchor))
}

func autoCloseResponse(every core.RepetitionTypes, anchor core.Date) api.AutoCloseResponse {
	resp := api.AutoCloseResponse{Success: true, Frequency: string(every)}
	if every != core.Never && !anchor.IsZero() {
		resp.Anchor = anchor.Format(time.DateOnly)
	}
	return resp
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	var req api.CreateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	amount, ok := requestAmount(w, r, req.Amount)
	if !ok {
		return
	}
	tx := core.Transaction{
		UserID:      userID,
		Type:        core.TransactionType(strings.ToLower(strings.TrimSpace(req.Type))),
		Amount:      amount,
		Description: req.Description,
	}
	if req.OccurredAt != nil {
		tx.OccurredAt = *req.OccurredAt
	}

	saved, err := s.services.Ledger.RecordTransaction(r.Context(), tx)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, api.FromTransaction(saved))
}

func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	var req api.CreateSavingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	amount, ok := requestAmount(w, r, req.Amount)
	if !ok {
		return
	}

	saved, err := s.services.Ledger.RecordSavings(r.Context(), core.SavingsContribution{
		UserID: userID,
		Amount: amount,
		Note:   req.Note,
	})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, api.FromSavings(saved))
}

// requestAmount converts a decoded amount, answering 400 when it is missing
// or out of range.
func requestAmount(w http.ResponseWriter, r *http.Request, d *api.Decimal) (core.Money, bool) {
	if d == nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid amount")
		return core.Money{}, false
	}
	m, err := d.Money()
	if err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid amount")
		return core.Money{}, false
	}
	return m, true
}
