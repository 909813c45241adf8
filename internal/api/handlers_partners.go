package api

import (
	"net/http"
	"strings"

	"github.com/ayerhssb/mcpSystem/internal/domain"
)

func (h *Handlers) ListPartnersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	page, limit, ok := parsePaging(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	result, err := h.partners.List(r.Context(), domain.PartnerFilter{
		MCPID:  userID,
		Status: domain.PartnerStatus(strings.TrimSpace(q.Get("status"))),
		Search: strings.TrimSpace(q.Get("search")),
	}, page, limit)
	if err != nil {
		h.fail(w, "list_partners", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) CreatePartnerHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req domain.CreatePartnerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	partner, err := h.partners.Create(r.Context(), userID, req)
	if err != nil {
		h.fail(w, "create_partner", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusCreated, partner)
}

func (h *Handlers) PartnerStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	stats, err := h.partners.Statistics(r.Context(), userID)
	if err != nil {
		h.fail(w, "partner_statistics", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) GetPartnerHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	partnerID, ok := pathID(w, r, "partner")
	if !ok {
		return
	}

	details, err := h.partners.Get(r.Context(), userID, partnerID)
	if err != nil {
		h.fail(w, "get_partner", err, "user_id", userID, "partner_id", partnerID)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handlers) UpdatePartnerHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	partnerID, ok := pathID(w, r, "partner")
	if !ok {
		return
	}
	var req domain.UpdatePartnerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	partner, err := h.partners.Update(r.Context(), userID, partnerID, req)
	if err != nil {
		h.fail(w, "update_partner", err, "user_id", userID, "partner_id", partnerID)
		return
	}
	writeJSON(w, http.StatusOK, partner)
}

func (h *Handlers) DeletePartnerHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	partnerID, ok := pathID(w, r, "partner")
	if !ok {
		return
	}

	if err := h.partners.Delete(r.Context(), userID, partnerID); err != nil {
		h.fail(w, "delete_partner", err, "user_id", userID, "partner_id", partnerID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pickup partner removed"})
}
