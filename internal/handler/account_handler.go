package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
	ledgerService  *service.LedgerService
}

func NewAccountHandler(accountService *service.AccountService, ledgerService *service.LedgerService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		ledgerService:  ledgerService,
	}
}

func (h *AccountHandler) Register(router *mux.Router) {
	router.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	router.HandleFunc("/accounts", h.ListAccounts).Methods("GET")
	router.HandleFunc("/accounts/number/{account_number}", h.GetAccountByNumber).Methods("GET")
	router.HandleFunc("/accounts/{account_id}", h.GetAccount).Methods("GET")
	router.HandleFunc("/accounts/{account_id}", h.DeleteAccount).Methods("DELETE")
	router.HandleFunc("/accounts/{account_id}/balance", h.GetBalance).Methods("GET")
	router.HandleFunc("/accounts/{account_id}/status", h.ChangeStatus).Methods("PATCH")
	router.HandleFunc("/accounts/{account_id}/reactivate", h.Reactivate).Methods("POST")
	router.HandleFunc("/clients/{client_id}/accounts", h.GetAccountsByClient).Methods("GET")
	router.HandleFunc("/clients/{client_id}/accounts/default", h.EnsureDefaultAccount).Methods("POST")
}

type CreateAccountRequest struct {
	AccountType    string `json:"account_type"`
	InitialDeposit string `json:"initial_deposit"`
	ClientID       int64  `json:"client_id"`
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
}

type AccountResponse struct {
	AccountID      int64     `json:"account_id"`
	AccountNumber  string    `json:"account_number"`
	AccountType    string    `json:"account_type"`
	InitialDeposit string    `json:"initial_deposit"`
	Status         string    `json:"status"`
	ClientID       int64     `json:"client_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type BalanceResponse struct {
	AccountID int64  `json:"account_id"`
	Balance   string `json:"balance"`
}

func toAccountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:      account.ID,
		AccountNumber:  account.AccountNumber,
		AccountType:    account.AccountType,
		InitialDeposit: money(account.InitialDeposit),
		Status:         string(account.Status),
		ClientID:       account.ClientID,
		CreatedAt:      account.CreatedAt,
		UpdatedAt:      account.UpdatedAt,
	}
}

func toAccountResponses(accounts []*domain.Account) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	return out
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	deposit := decimal.Zero
	if req.InitialDeposit != "" {
		var err error
		if deposit, err = parseAmount(req.InitialDeposit, "initial_deposit"); err != nil {
			writeError(w, err)
			return
		}
	}

	account, err := h.accountService.CreateAccount(r.Context(), service.CreateAccountRequest{
		AccountType:    req.AccountType,
		InitialDeposit: deposit,
		ClientID:       req.ClientID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accountService.ListAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponses(accounts))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "account_id")
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *AccountHandler) GetAccountByNumber(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountService.GetAccountByNumber(r.Context(), mux.Vars(r)["account_number"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *AccountHandler) GetAccountsByClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "client_id")
	if err != nil {
		writeError(w, err)
		return
	}

	accounts, err := h.accountService.GetAccountsByClient(r.Context(), clientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponses(accounts))
}

func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "account_id")
	if err != nil {
		writeError(w, err)
		return
	}

	balance, err := h.ledgerService.GetBalance(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{AccountID: accountID, Balance: money(balance)})
}

func (h *AccountHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "account_id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req ChangeStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	status := domain.AccountStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	account, err := h.accountService.ChangeStatus(r.Context(), accountID, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "account_id")
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accountService.DeleteLogically(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *AccountHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "account_id")
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accountService.Reactivate(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// EnsureDefaultAccount answers 201 with the new account, or 204 when the client already has one.
func (h *AccountHandler) EnsureDefaultAccount(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "client_id")
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accountService.EnsureDefaultAccount(r.Context(), clientID)
	if err != nil {
		writeError(w, err)
		return
	}
	if account == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}
