package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"wallagg/internal/models"
	"wallagg/internal/service"
)

// SyncHandler отвечает за запуск синхронизации аккаунтов
//
// Функции:
// - Синхронизация одного аккаунта (POST /api/v1/accounts/{id}/sync)
// - Синхронизация всех аккаунтов (POST /api/v1/sync)
//
// Итог синхронизации возвращается в ответе и параллельно уходит
// подписчикам WebSocket (sync_result).
type SyncHandler struct {
	syncService service.SyncServiceInterface
}

// NewSyncHandler создает новый SyncHandler
func NewSyncHandler(syncService service.SyncServiceInterface) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

type syncAllResponse struct {
	Results []*models.SyncResult `json:"results"`
	Total   int                  `json:"total"`
}

// SyncAccount синхронизирует один аккаунт
// POST /api/v1/accounts/{id}/sync
func (h *SyncHandler) SyncAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, "account id is required")
		return
	}

	result, err := h.syncService.SyncAccount(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// SyncAll синхронизирует все активные аккаунты.
// Ошибки отдельных аккаунтов не прерывают остальных: каждый аккаунт
// получает свой SyncResult.
// POST /api/v1/sync
func (h *SyncHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.syncService.SyncAll(r.Context(), true)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if results == nil {
		results = []*models.SyncResult{}
	}

	respondJSON(w, http.StatusOK, syncAllResponse{
		Results: results,
		Total:   len(results),
	})
}
