package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"wallagg/internal/service"
)

// PortfolioHandler отвечает за расчёт стоимости
//
// Функции:
// - Стоимость всего портфеля или подмножества (GET /api/v1/portfolio/value)
// - Стоимость одного аккаунта (GET /api/v1/accounts/{id}/value)
//
// Расчёт идёт по последним закоммиченным снапшотам, синхронизацию
// не запускает. Позиции без котировки пропускаются и перечисляются
// в skipped_symbols.
type PortfolioHandler struct {
	valuationService service.ValuationServiceInterface
}

// NewPortfolioHandler создает новый PortfolioHandler
func NewPortfolioHandler(valuationService service.ValuationServiceInterface) *PortfolioHandler {
	return &PortfolioHandler{valuationService: valuationService}
}

// GetPortfolioValue возвращает стоимость портфеля.
// ?ids=a,b,c ограничивает расчёт перечисленными аккаунтами,
// ?currency=eur задаёт валюту котировки (по умолчанию из конфигурации).
// GET /api/v1/portfolio/value
func (h *PortfolioHandler) GetPortfolioValue(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if raw := r.URL.Query().Get("ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				ids = append(ids, id)
			}
		}
	}

	value, err := h.valuationService.ValuePortfolioIn(r.Context(), ids, r.URL.Query().Get("currency"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, value)
}

// GetAccountValue возвращает стоимость одного аккаунта.
// ?currency=eur задаёт валюту котировки.
// GET /api/v1/accounts/{id}/value
func (h *PortfolioHandler) GetAccountValue(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, "account id is required")
		return
	}

	value, err := h.valuationService.ValueAccountIn(r.Context(), id, r.URL.Query().Get("currency"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, value)
}
