package api

import (
	"net/http"
	"strings"

	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/google/uuid"
)

func (h *Handlers) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	page, limit, ok := parsePaging(w, r)
	if !ok {
		return
	}
	from, to, ok := parseDateRange(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	filter := domain.OrderFilter{
		MCPID:  userID,
		Status: domain.OrderStatus(strings.TrimSpace(q.Get("status"))),
		From:   from,
		To:     to,
	}
	if raw := strings.TrimSpace(q.Get("partnerId")); raw != "" {
		partnerID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid partnerId")
			return
		}
		filter.PartnerID = &partnerID
	}

	result, err := h.orders.List(r.Context(), filter, page, limit)
	if err != nil {
		h.fail(w, "list_orders", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req domain.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.Create(r.Context(), userID, req)
	if err != nil {
		h.fail(w, "create_order", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handlers) OrderStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	stats, err := h.orders.Statistics(r.Context(), userID)
	if err != nil {
		h.fail(w, "order_statistics", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "order")
	if !ok {
		return
	}

	details, err := h.orders.Get(r.Context(), userID, orderID)
	if err != nil {
		h.fail(w, "get_order", err, "user_id", userID, "order_id", orderID)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// UpdateOrderHandler applies edits and status changes. Completing an order
// settles the partner in the same unit and returns the settlement outcome.
func (h *Handlers) UpdateOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "order")
	if !ok {
		return
	}
	var req domain.UpdateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	update, err := h.orders.Update(r.Context(), userID, orderID, req)
	if err != nil {
		h.fail(w, "update_order", err, "user_id", userID, "order_id", orderID)
		return
	}
	if update.Settlement != nil {
		h.log.Infow("order settlement", "endpoint", "update_order", "order_id", orderID, "settlement", string(update.Settlement.Status), "reason", update.Settlement.Reason)
	}
	writeJSON(w, http.StatusOK, update)
}

func (h *Handlers) AssignOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "order")
	if !ok {
		return
	}
	var req domain.AssignOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PartnerID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "partnerId is required")
		return
	}

	order, err := h.orders.Assign(r.Context(), userID, orderID, req.PartnerID)
	if err != nil {
		h.fail(w, "assign_order", err, "user_id", userID, "order_id", orderID, "partner_id", req.PartnerID)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	board, err := h.dashboard.Get(r.Context(), userID)
	if err != nil {
		h.fail(w, "dashboard", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
