package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dpnr05/banking-fullstack-app/internal/domain"
)

// accountResponse is the account read model: balances are 2-decimal strings,
// never JSON numbers.
type accountResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// transactionResponse is the transaction read model.
type transactionResponse struct {
	ID            int64     `json:"id"`
	FromAccountID int64     `json:"from_account_id"`
	ToAccountID   int64     `json:"to_account_id"`
	Amount        string    `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// amountField accepts a monetary value sent either as a JSON number or as a
// numeric string; validation happens later in domain.ParseAmount.
type amountField string

func (a *amountField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = amountField(n)
	return nil
}

type createAccountRequest struct {
	Name           string      `json:"name"`
	InitialBalance amountField `json:"initialBalance"`
}

type transferRequest struct {
	FromAccountID int64       `json:"from_account_id"`
	ToAccountID   int64       `json:"to_account_id"`
	Amount        amountField `json:"amount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Balance:   domain.FormatAmount(a.Balance),
		CreatedAt: a.CreatedAt,
	}
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        domain.FormatAmount(t.Amount),
		CreatedAt:     t.CreatedAt,
	}
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListAccounts returns all accounts ordered by id.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, toAccountResponse(&accounts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetAccount returns a single account by id.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
			return
		}
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// CreateAccount creates a new account with an optional initial balance.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name_required"})
		return
	}

	initial := decimal.Zero
	if req.InitialBalance != "" {
		d, err := decimal.NewFromString(string(req.InitialBalance))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_amount"})
			return
		}
		initial = d
	}

	account, err := h.accounts.CreateAccount(r.Context(), req.Name, initial)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

// Transfer moves funds between two accounts.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request"})
		return
	}

	amount, err := domain.ParseAmount(string(req.Amount))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_amount"})
		return
	}

	record, err := h.transfers.ExecuteTransfer(r.Context(), req.FromAccountID, req.ToAccountID, amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":         "ok",
		"transaction_id": record.ID,
	})
}

// ListTransactions returns the most recent transfers, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.transfers.ListTransactions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]transactionResponse, 0, len(records))
	for i := range records {
		out = append(out, toTransactionResponse(&records[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError maps domain errors onto HTTP statuses and symbolic error codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_amount"})
	case errors.Is(err, domain.ErrSameAccount):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "same_account"})
	case errors.Is(err, domain.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "account_not_found"})
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "insufficient_funds"})
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store_unavailable"})
	default:
		h.logger.Error("unexpected error",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
