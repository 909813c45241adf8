/**
 * @description
 * HTTP handlers for the MCP service and the helpers they share: JSON encoding,
 * request decoding, query parsing, and the single error-to-status mapping.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: URL parameters.
 * - go.uber.org/zap: structured request outcome logging.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/auth"
	"github.com/ayerhssb/mcpSystem/internal/dashboard"
	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/orders"
	"github.com/ayerhssb/mcpSystem/internal/partners"
	"github.com/ayerhssb/mcpSystem/internal/wallet"
	"github.com/ayerhssb/mcpSystem/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Handlers holds the services behind the HTTP surface.
type Handlers struct {
	auth      *auth.Service
	tokens    *auth.Tokens
	wallet    *wallet.Service
	partners  *partners.Service
	orders    *orders.Service
	dashboard *dashboard.Service
	log       *zap.SugaredLogger

	// SecureCookies marks the session cookie Secure; enable behind TLS.
	SecureCookies bool
}

// Services groups the constructor arguments of NewHandlers.
type Services struct {
	Auth      *auth.Service
	Tokens    *auth.Tokens
	Wallet    *wallet.Service
	Partners  *partners.Service
	Orders    *orders.Service
	Dashboard *dashboard.Service
}

func NewHandlers(s Services, log *zap.SugaredLogger) *Handlers {
	return &Handlers{
		auth:      s.Auth,
		tokens:    s.Tokens,
		wallet:    s.Wallet,
		partners:  s.Partners,
		orders:    s.Orders,
		dashboard: s.Dashboard,
		log:       logger.Component(log, "api"),
	}
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Request body is required")
			return false
		}
		if errors.Is(err, domain.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, "Amount must be a number with at most two decimal places")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// mapError translates service errors into a status code and client message.
func mapError(err error) (int, string) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusBadRequest, "Insufficient funds"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "Amount must be greater than zero"
	case errors.Is(err, domain.ErrOrderAlreadyCompleted):
		return http.StatusBadRequest, "Order is already completed"
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrPartnerInactive):
		return http.StatusBadRequest, "Pickup partner is inactive"
	case errors.Is(err, domain.ErrPartnerHasActiveOrders):
		return http.StatusBadRequest, "Cannot delete a partner with active orders"
	case errors.Is(err, domain.ErrPartnerHasFunds):
		return http.StatusBadRequest, "Cannot delete a partner whose wallet holds funds"
	case errors.Is(err, domain.ErrPartnerHasPendingPay):
		return http.StatusBadRequest, "Cannot delete a partner with pending payments"
	case errors.Is(err, domain.ErrWalletNotFound):
		return http.StatusNotFound, "Wallet not found"
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, domain.ErrPartnerNotFound):
		return http.StatusNotFound, "Pickup partner not found"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrDuplicatePartner):
		return http.StatusConflict, "Pickup partner with this email or phone already exists"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "User already exists"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// fail writes the mapped error and logs it; 5xx responses are logged as errors.
func (h *Handlers) fail(w http.ResponseWriter, endpoint string, err error, kv ...interface{}) {
	status, message := mapError(err)
	fields := append([]interface{}{"endpoint", endpoint, "status", status, "err", err}, kv...)
	if status >= http.StatusInternalServerError {
		h.log.Errorw("request failed", append(fields, "outcome", "failed")...)
	} else {
		h.log.Infow("request rejected", append(fields, "outcome", "reject")...)
	}
	writeError(w, status, message)
}

func (h *Handlers) currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authorized")
		return uuid.Nil, false
	}
	return userID, true
}

func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s id", what))
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalPositiveInt(raw string, defaultValue int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("invalid positive integer %q", raw)
	}
	return value, nil
}

func parsePaging(w http.ResponseWriter, r *http.Request) (page, limit int, ok bool) {
	page, err := parseOptionalPositiveInt(r.URL.Query().Get("page"), 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page")
		return 0, 0, false
	}
	limit, err = parseOptionalPositiveInt(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return 0, 0, false
	}
	return page, limit, true
}

// parseDateRange reads startDate/endDate as RFC 3339 or YYYY-MM-DD. A bare
// endDate covers the whole day.
func parseDateRange(w http.ResponseWriter, r *http.Request) (from, to *time.Time, ok bool) {
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("startDate")); raw != "" {
		t, _, err := parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid startDate")
			return nil, nil, false
		}
		from = &t
	}
	if raw := strings.TrimSpace(q.Get("endDate")); raw != "" {
		t, dateOnly, err := parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid endDate")
			return nil, nil, false
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		to = &t
	}
	return from, to, true
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	return t.UTC(), true, err
}
