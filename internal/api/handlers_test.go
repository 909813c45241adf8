package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/auth"
	"github.com/ayerhssb/mcpSystem/internal/dashboard"
	"github.com/ayerhssb/mcpSystem/internal/domain"
	"github.com/ayerhssb/mcpSystem/internal/ledger"
	"github.com/ayerhssb/mcpSystem/internal/orders"
	"github.com/ayerhssb/mcpSystem/internal/partners"
	"github.com/ayerhssb/mcpSystem/internal/settlement"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/ayerhssb/mcpSystem/internal/wallet"
	"github.com/ayerhssb/mcpSystem/pkg/idgen"
	"github.com/ayerhssb/mcpSystem/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type limiterStub struct {
	counts     map[string]int
	retryAfter int
	err        error
}

func (l *limiterStub) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	if l.counts == nil {
		l.counts = make(map[string]int)
	}
	l.counts[scope]++
	return l.counts[scope], l.retryAfter, l.err
}

var _ ratelimit.Limiter = (*limiterStub)(nil)

type testServer struct {
	t      *testing.T
	router http.Handler
	repo   *store.MemoryRepository
	token  string
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter, perMinute int) *testServer {
	t.Helper()
	repo := store.NewMemoryRepository()
	refs := idgen.New(repo)
	l := ledger.New(repo, refs, ledger.Options{})
	tokens := auth.NewTokens("handler-test-secret", time.Hour)

	h := NewHandlers(Services{
		Auth:      auth.NewService(l, tokens, nil),
		Tokens:    tokens,
		Wallet:    wallet.NewService(l, nil),
		Partners:  partners.NewService(l, nil),
		Orders:    orders.NewService(l, settlement.NewEngine(l, nil), refs, nil),
		Dashboard: dashboard.NewService(repo),
	}, nil)

	var opts RouterOptions
	if limiter != nil {
		opts = RouterOptions{Limiter: limiter, WalletPolicy: ratelimit.NewWalletPolicy(perMinute, perMinute)}
	}
	return &testServer{t: t, router: NewRouter(h, tokens, opts), repo: repo}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, rec, &body)
	return body["message"]
}

func (s *testServer) register() uuid.UUID {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Green Pickup", "email": "ops@green.example", "password": "secret1",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var session auth.Session
	decode(s.t, rec, &session)
	s.token = session.Token
	return session.User.ID
}

func (s *testServer) balance() domain.Amount {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/wallet/balance", nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var w domain.Wallet
	decode(s.t, rec, &w)
	return w.Balance
}

func (s *testServer) createPartner(name, phone string) domain.Partner {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/partners", map[string]interface{}{
		"name": name, "phone": phone, "paymentType": "fixed", "paymentAmount": 50,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var p domain.Partner
	decode(s.t, rec, &p)
	return p
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := s.do(http.MethodGet, "/api/wallet/balance", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.token = "not-a-jwt"
	rec = s.do(http.MethodGet, "/api/wallet/balance", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginSetsCookieAndCookieAuthenticates(t *testing.T) {
	s := newTestServer(t, nil, 0)
	s.register()
	s.token = ""

	rec := s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ops@green.example", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ops@green.example", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req.AddCookie(cookies[0])
	profile := httptest.NewRecorder()
	s.router.ServeHTTP(profile, req)
	require.Equal(t, http.StatusOK, profile.Code)
	var user domain.User
	decode(t, profile, &user)
	assert.Equal(t, "ops@green.example", user.Email)

	rec = s.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)
	assert.True(t, cleared[0].MaxAge < 0)
}

func TestAuthCheck(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := s.do(http.MethodGet, "/api/auth/check", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.register()
	rec = s.do(http.MethodGet, "/api/auth/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	decode(t, rec, &body)
	assert.True(t, body["authenticated"])
}

func TestPartnerDetailsAndFundedDelete(t *testing.T) {
	s := newTestServer(t, nil, 0)
	s.register()
	partner := s.createPartner("Ravi", "9000000001")

	rec := s.do(http.MethodPost, "/api/orders", map[string]interface{}{
		"customer":        map[string]string{"name": "Asha", "phone": "9123456780", "address": "12 Lake Road"},
		"paymentAmount":   210,
		"pickupPartnerId": partner.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order domain.Order
	decode(t, rec, &order)

	rec = s.do(http.MethodGet, "/api/partners/"+partner.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var details partners.Details
	decode(t, rec, &details)
	assert.Equal(t, partners.OrderCounts{Pending: 1, Total: 1}, details.Statistics)
	require.Len(t, details.RecentOrders, 1)
	assert.Equal(t, order.ID, details.RecentOrders[0].ID)

	rec = s.do(http.MethodPost, "/api/wallet/add-funds", map[string]interface{}{"amount": 100})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, "/api/wallet/transfer-to-partner", map[string]interface{}{"partnerId": partner.ID, "amount": 100})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodPut, "/api/orders/"+order.ID.String(), map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodDelete, "/api/partners/"+partner.ID.String(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot delete a partner whose wallet holds funds", errorMessage(t, rec))
	assert.Equal(t, domain.Major(0), s.balance())
}

func TestDuplicateRegistrationConflicts(t *testing.T) {
	s := newTestServer(t, nil, 0)
	s.register()
	rec := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Copy", "email": "OPS@green.example", "password": "secret2",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOrderCompletionSettlesPartner(t *testing.T) {
	s := newTestServer(t, nil, 0)
	s.register()

	rec := s.do(http.MethodPost, "/api/wallet/add-funds", map[string]interface{}{"amount": 5000, "paymentMethod": "UPI"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.Major(5000), s.balance())

	partner := s.createPartner("Ravi", "9000000001")

	rec = s.do(http.MethodPost, "/api/wallet/transfer-to-partner", map[string]interface{}{"partnerId": partner.ID, "amount": 500})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var transfer ledger.TransferResult
	decode(t, rec, &transfer)
	assert.Equal(t, domain.Major(4500), transfer.From.Balance)
	assert.Equal(t, domain.Major(500), transfer.To.Balance)

	rec = s.do(http.MethodPost, "/api/orders", map[string]interface{}{
		"customer":        map[string]string{"name": "Asha", "phone": "9123456780", "address": "12 Lake Road"},
		"paymentAmount":   210,
		"pickupPartnerId": partner.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order domain.Order
	decode(t, rec, &order)
	assert.Equal(t, domain.OrderPending, order.Status)
	require.NotNil(t, order.PickupPartnerID)

	rec = s.do(http.MethodPut, "/api/orders/"+order.ID.String(), map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var update orders.Update
	decode(t, rec, &update)
	require.NotNil(t, update.Settlement)
	assert.Equal(t, settlement.StatusSettled, update.Settlement.Status)
	assert.Equal(t, domain.Major(50), update.Settlement.Amount)
	assert.Equal(t, domain.Major(4450), s.balance())

	// Re-submitting completion settles nothing.
	rec = s.do(http.MethodPut, "/api/orders/"+order.ID.String(), map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &update)
	assert.Equal(t, settlement.StatusSkipped, update.Settlement.Status)
	assert.Equal(t, domain.Major(4450), s.balance())

	rec = s.do(http.MethodPut, "/api/orders/"+order.ID.String(), map[string]string{"description": "late edit"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/partners/"+partner.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var details partners.Details
	decode(t, rec, &details)
	assert.Equal(t, domain.Major(550), details.Wallet.Balance)
	assert.Equal(t, 1, details.Partner.CompletedOrders)
	assert.Equal(t, 0, details.Partner.PendingOrders)
	assert.Equal(t, partners.OrderCounts{Completed: 1, Total: 1}, details.Statistics)

	rec = s.do(http.MethodGet, "/api/mcp/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var board dashboard.Dashboard
	decode(t, rec, &board)
	assert.Equal(t, domain.Major(4450), board.Wallet.Balance)
	assert.Equal(t, float64(100), board.OrderStats.CompletionRate)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, nil, 0)
	s.register()
	partner := s.createPartner("Ravi", "9000000001")

	rec := s.do(http.MethodPost, "/api/wallet/transfer-to-partner", map[string]interface{}{"partnerId": partner.ID, "amount": 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Insufficient funds", errorMessage(t, rec))

	rec = s.do(http.MethodPost, "/api/wallet/add-funds", map[string]interface{}{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/wallet/add-funds", map[string]interface{}{"amount": "10.005"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/wallet/withdraw", map[string]interface{}{"amount": 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/orders/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/orders/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/partners", map[string]interface{}{"name": "Other", "phone": "9000000001"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/api/orders?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/wallet/transactions?page=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransactionsListAndExport(t *testing.T) {
	s := newTestServer(t, nil, 0)
	s.register()
	for _, amount := range []int{100, 200} {
		rec := s.do(http.MethodPost, "/api/wallet/add-funds", map[string]interface{}{"amount": amount})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := s.do(http.MethodGet, "/api/wallet/transactions?type=deposit&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page wallet.TransactionPage
	decode(t, rec, &page)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Transactions, 1)

	rec = s.do(http.MethodGet, "/api/wallet/transactions/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Header().Get("Content-Disposition"), "transactions.xlsx"))
	assert.Equal(t, "2", rec.Header().Get("X-Row-Count"))
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, "false", rec.Header().Get("X-Export-Truncated"))
	assert.NotZero(t, rec.Body.Len())
}

func TestWalletMutationsAreRateLimited(t *testing.T) {
	limiter := &limiterStub{retryAfter: 42}
	s := newTestServer(t, limiter, 1)
	s.register()

	rec := s.do(http.MethodPost, "/api/wallet/add-funds", map[string]interface{}{"amount": 10})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = s.do(http.MethodPost, "/api/wallet/add-funds", map[string]interface{}{"amount": 10})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.Equal(t, domain.Major(10), s.balance())

	// Withdrawals are counted separately, so they still reach validation.
	rec = s.do(http.MethodPost, "/api/wallet/withdraw", map[string]interface{}{"amount": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Reads are never limited.
	rec = s.do(http.MethodGet, "/api/wallet/balance", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"wallet:add_funds": 2, "wallet:withdraw": 1}, limiter.counts)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.NewValidationError("name", "is required"), http.StatusBadRequest},
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrOrderAlreadyCompleted, http.StatusBadRequest},
		{domain.ErrPartnerHasActiveOrders, http.StatusBadRequest},
		{domain.ErrPartnerHasFunds, http.StatusBadRequest},
		{domain.ErrPartnerHasPendingPay, http.StatusBadRequest},
		{domain.ErrWalletNotFound, http.StatusNotFound},
		{domain.ErrPartnerNotFound, http.StatusNotFound},
		{domain.ErrDuplicatePartner, http.StatusConflict},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}
