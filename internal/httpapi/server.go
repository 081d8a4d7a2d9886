// Package httpapi exposes the ledger over the JSON REST surface consumed by
// the frontend. It is a thin collaborator around the domain services: it
// parses requests, calls one operation, and maps the typed result or error
// onto HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dpnr05/banking-fullstack-app/internal/domain"
)

// AccountService is the read/create side of the ledger as the handlers see it.
type AccountService interface {
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	CreateAccount(ctx context.Context, name string, initialBalance decimal.Decimal) (*domain.Account, error)
}

// TransferService is the funds-transfer side as the handlers see it.
type TransferService interface {
	ExecuteTransfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*domain.Transaction, error)
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
}

// Handler serves the ledger REST API.
type Handler struct {
	accounts  AccountService
	transfers TransferService
	logger    *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(accounts AccountService, transfers TransferService, logger *zap.Logger) *Handler {
	return &Handler{
		accounts:  accounts,
		transfers: transfers,
		logger:    logger,
	}
}

// Router builds the chi router with the full API surface.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/accounts", h.ListAccounts)
		r.Post("/accounts", h.CreateAccount)
		r.Get("/accounts/{id}", h.GetAccount)
		r.Get("/transactions", h.ListTransactions)
		r.Post("/transactions", h.Transfer)
	})

	return r
}

// requestLogger logs one line per request with the zap logger.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// corsMiddleware allows the browser frontend, served from another origin,
// to call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
