/**
 * @description
 * This file sets up the HTTP router for the MCP service. It defines the API
 * endpoints, associates them with their handlers, and applies the middleware
 * stack (logging, recovery, timeouts, CORS, authentication, rate limiting).
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling for the browser dashboard.
 */

package api

import (
	"net/http"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/auth"
	"github.com/ayerhssb/mcpSystem/pkg/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures the cross-cutting middleware.
type RouterOptions struct {
	AllowedOrigins []string
	Limiter        ratelimit.Limiter
	WalletPolicy   ratelimit.WalletPolicy
}

// NewRouter creates the chi router and registers every route.
func NewRouter(h *Handlers, tokens *auth.Tokens, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After", "Content-Disposition", "X-Row-Count", "X-Total-Count", "X-Export-Truncated", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.RegisterHandler)
		r.Post("/auth/login", h.LoginHandler)
		r.Post("/auth/logout", h.LogoutHandler)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokens))

			r.Get("/auth/check", h.CheckAuthHandler)
			r.Get("/auth/profile", h.GetProfileHandler)
			r.Put("/auth/profile", h.UpdateProfileHandler)

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/balance", h.GetBalanceHandler)
				r.Get("/transactions", h.ListTransactionsHandler)
				r.Get("/transactions/export", h.ExportTransactionsHandler)

				limit := func(op ratelimit.Operation) func(http.Handler) http.Handler {
					return WalletRateLimit(opts.Limiter, opts.WalletPolicy, op, h.log)
				}
				r.With(limit(ratelimit.AddFunds)).Post("/add-funds", h.AddFundsHandler)
				r.With(limit(ratelimit.TransferToPartner)).Post("/transfer-to-partner", h.TransferToPartnerHandler)
				r.With(limit(ratelimit.Withdraw)).Post("/withdraw", h.WithdrawHandler)
			})

			r.Route("/partners", func(r chi.Router) {
				r.Get("/", h.ListPartnersHandler)
				r.Post("/", h.CreatePartnerHandler)
				r.Get("/statistics", h.PartnerStatisticsHandler)
				r.Get("/{id}", h.GetPartnerHandler)
				r.Put("/{id}", h.UpdatePartnerHandler)
				r.Delete("/{id}", h.DeletePartnerHandler)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.ListOrdersHandler)
				r.Post("/", h.CreateOrderHandler)
				r.Get("/statistics", h.OrderStatisticsHandler)
				r.Get("/{id}", h.GetOrderHandler)
				r.Put("/{id}", h.UpdateOrderHandler)
				r.Put("/{id}/assign", h.AssignOrderHandler)
			})

			r.Get("/mcp/dashboard", h.DashboardHandler)
		})
	})

	return r
}
