package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"account-ledger/internal/domain"
	"account-ledger/internal/service"
)

type MovementHandler struct {
	ledgerService *service.LedgerService
}

func NewMovementHandler(ledgerService *service.LedgerService) *MovementHandler {
	return &MovementHandler{
		ledgerService: ledgerService,
	}
}

func (h *MovementHandler) Register(router *mux.Router) {
	router.HandleFunc("/accounts/number/{account_number}/movements", h.RegisterMovement).Methods("POST")
	router.HandleFunc("/accounts/{account_id}/movements", h.GetMovementsByAccount).Methods("GET")
	router.HandleFunc("/clients/{client_id}/movements", h.GetMovementsByClient).Methods("GET")
	router.HandleFunc("/movements/{movement_id}", h.GetMovement).Methods("GET")
}

// RegisterMovementRequest carries a signed amount: negative values are withdrawals.
type RegisterMovementRequest struct {
	Amount string `json:"amount"`
}

type MovementResponse struct {
	MovementID    int64     `json:"movement_id"`
	AccountID     int64     `json:"account_id"`
	AccountNumber string    `json:"account_number"`
	Kind          string    `json:"kind"`
	Amount        string    `json:"amount"`
	Balance       string    `json:"balance"`
	CreatedAt     time.Time `json:"created_at"`
}

func toMovementResponse(m *domain.Movement) MovementResponse {
	return MovementResponse{
		MovementID:    m.ID,
		AccountID:     m.AccountID,
		AccountNumber: m.AccountNumber,
		Kind:          string(m.Kind),
		Amount:        money(m.Amount),
		Balance:       money(m.Balance),
		CreatedAt:     m.CreatedAt,
	}
}

func toMovementResponses(movements []*domain.Movement) []MovementResponse {
	out := make([]MovementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	return out
}

func (h *MovementHandler) RegisterMovement(w http.ResponseWriter, r *http.Request) {
	var req RegisterMovementRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		writeError(w, err)
		return
	}

	movement, err := h.ledgerService.RegisterMovement(r.Context(), mux.Vars(r)["account_number"], amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *MovementHandler) GetMovementsByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "account_id")
	if err != nil {
		writeError(w, err)
		return
	}

	movements, err := h.ledgerService.GetMovementsByAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementResponses(movements))
}

func (h *MovementHandler) GetMovementsByClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "client_id")
	if err != nil {
		writeError(w, err)
		return
	}

	movements, err := h.ledgerService.GetMovementsByClient(r.Context(), clientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementResponses(movements))
}

func (h *MovementHandler) GetMovement(w http.ResponseWriter, r *http.Request) {
	movementID, err := pathID(r, "movement_id")
	if err != nil {
		writeError(w, err)
		return
	}

	movement, err := h.ledgerService.GetMovement(r.Context(), movementID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementResponse(movement))
}
