package handlers

import (
	"net/http"
	"time"

	"wallagg/internal/service"
)

// SessionHandler отвечает за сессию хранилища секретов
//
// Функции:
// - Метаданные сессии (GET /api/v1/session)
// - Завершение сессии с затиранием секретов (DELETE /api/v1/session)
//
// Значения ключей через этот handler получить нельзя: наружу уходят
// только состояние и счётчики.
type SessionHandler struct {
	accountService service.AccountServiceInterface
}

// NewSessionHandler создает новый SessionHandler
func NewSessionHandler(accountService service.AccountServiceInterface) *SessionHandler {
	return &SessionHandler{accountService: accountService}
}

type sessionResponse struct {
	State            string `json:"state"`
	CredentialCount  int    `json:"credential_count"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// GetSession возвращает метаданные сессии секретов
// GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	info := h.accountService.SessionInfo()

	respondJSON(w, http.StatusOK, sessionResponse{
		State:            string(info.State),
		CredentialCount:  info.CredentialCount,
		RemainingSeconds: int64(info.RemainingLifetime / time.Second),
	})
}

// ClearSession затирает все секреты и сбрасывает сессию
// DELETE /api/v1/session
func (h *SessionHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	h.accountService.ClearSession()
	w.WriteHeader(http.StatusNoContent)
}
