package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/wallet"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	balance, err := h.wallet.Balance(r.Context(), userID)
	if err != nil {
		h.fail(w, "get_balance", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *Handlers) AddFundsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req domain.AddFundsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.wallet.AddFunds(r.Context(), userID, req)
	if err != nil {
		h.fail(w, "add_funds", err, "user_id", userID)
		return
	}
	h.log.Infow("funds added", "endpoint", "add_funds", "outcome", "success", "user_id", userID, "amount", req.Amount.String(), "reference", result.Transaction.Reference)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) TransferToPartnerHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req domain.TransferToPartnerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.wallet.TransferToPartner(r.Context(), userID, req)
	if err != nil {
		h.fail(w, "transfer_to_partner", err, "user_id", userID, "partner_id", req.PartnerID)
		return
	}
	h.log.Infow("funds transferred", "endpoint", "transfer_to_partner", "outcome", "success", "user_id", userID, "partner_id", req.PartnerID, "amount", req.Amount.String())
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req domain.WithdrawRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.wallet.Withdraw(r.Context(), userID, req)
	if err != nil {
		h.fail(w, "withdraw", err, "user_id", userID)
		return
	}
	h.log.Infow("funds withdrawn", "endpoint", "withdraw", "outcome", "success", "user_id", userID, "amount", req.Amount.String())
	writeJSON(w, http.StatusOK, result)
}

func historyQuery(w http.ResponseWriter, r *http.Request) (wallet.HistoryQuery, bool) {
	page, limit, ok := parsePaging(w, r)
	if !ok {
		return wallet.HistoryQuery{}, false
	}
	from, to, ok := parseDateRange(w, r)
	if !ok {
		return wallet.HistoryQuery{}, false
	}
	q := r.URL.Query()
	return wallet.HistoryQuery{
		Kind:   domain.TransactionKind(strings.TrimSpace(q.Get("type"))),
		Status: domain.TransactionStatus(strings.TrimSpace(q.Get("status"))),
		From:   from,
		To:     to,
		Page:   page,
		Limit:  limit,
	}, true
}

func (h *Handlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	query, ok := historyQuery(w, r)
	if !ok {
		return
	}

	page, err := h.wallet.Transactions(r.Context(), userID, query)
	if err != nil {
		h.fail(w, "list_transactions", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ExportTransactionsHandler streams the filtered history as an XLSX workbook.
func (h *Handlers) ExportTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	query, ok := historyQuery(w, r)
	if !ok {
		return
	}

	// Buffered so a failed export can still produce a JSON error.
	var buf bytes.Buffer
	summary, err := h.wallet.ExportTransactions(r.Context(), userID, query, &buf)
	if err != nil {
		h.fail(w, "export_transactions", err, "user_id", userID)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transactions.xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Row-Count", strconv.Itoa(summary.Rows))
	w.Header().Set("X-Total-Count", strconv.Itoa(summary.Matched))
	w.Header().Set("X-Export-Truncated", strconv.FormatBool(summary.Truncated))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
