package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"account-ledger/internal/domain"
	"account-ledger/internal/service"
)

type ReportHandler struct {
	reportService *service.ReportService
}

func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

func (h *ReportHandler) Register(router *mux.Router) {
	router.HandleFunc("/clients/{client_id}/statement", h.GetStatement).Methods("GET")
}

type StatementResponse struct {
	ClientID       int64                      `json:"client_id"`
	ClientName     string                     `json:"client_name,omitempty"`
	Identification string                     `json:"identification,omitempty"`
	StartDate      string                     `json:"start_date"`
	EndDate        string                     `json:"end_date"`
	GeneratedAt    time.Time                  `json:"generated_at"`
	TotalBalance   string                     `json:"total_balance"`
	Accounts       []AccountStatementResponse `json:"accounts"`
}

type AccountStatementResponse struct {
	AccountID     int64                    `json:"account_id"`
	AccountNumber string                   `json:"account_number"`
	AccountType   string                   `json:"account_type"`
	Status        string                   `json:"status"`
	Balance       string                   `json:"balance"`
	Movements     []MovementDetailResponse `json:"movements"`
}

type MovementDetailResponse struct {
	MovementID   int64     `json:"movement_id"`
	Date         time.Time `json:"date"`
	Kind         string    `json:"kind"`
	Amount       string    `json:"amount"`
	Description  string    `json:"description"`
	BalanceAfter string    `json:"balance_after"`
}

func toStatementResponse(s *domain.Statement) StatementResponse {
	resp := StatementResponse{
		ClientID:       s.ClientID,
		ClientName:     s.ClientName,
		Identification: s.Identification,
		StartDate:      s.StartDate.Format(time.DateOnly),
		EndDate:        s.EndDate.Format(time.DateOnly),
		GeneratedAt:    s.GeneratedAt,
		TotalBalance:   money(s.TotalBalance),
		Accounts:       make([]AccountStatementResponse, 0, len(s.Accounts)),
	}
	for _, a := range s.Accounts {
		account := AccountStatementResponse{
			AccountID:     a.AccountID,
			AccountNumber: a.AccountNumber,
			AccountType:   a.AccountType,
			Status:        string(a.Status),
			Balance:       money(a.Balance),
			Movements:     make([]MovementDetailResponse, 0, len(a.Movements)),
		}
		for _, m := range a.Movements {
			account.Movements = append(account.Movements, MovementDetailResponse{
				MovementID:   m.MovementID,
				Date:         m.Date,
				Kind:         string(m.Kind),
				Amount:       money(m.Amount),
				Description:  m.Description,
				BalanceAfter: money(m.BalanceAfter),
			})
		}
		resp.Accounts = append(resp.Accounts, account)
	}
	return resp
}

// GetStatement expects start and end as YYYY-MM-DD query parameters.
func (h *ReportHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "client_id")
	if err != nil {
		writeError(w, err)
		return
	}
	start, err := queryDate(r, "start")
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := queryDate(r, "end")
	if err != nil {
		writeError(w, err)
		return
	}

	statement, err := h.reportService.BuildStatement(r.Context(), clientID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementResponse(statement))
}
