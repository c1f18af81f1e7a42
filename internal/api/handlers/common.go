package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"wallagg/internal/repository"
	"wallagg/internal/service"
	"wallagg/internal/source"
	"wallagg/pkg/utils"
)

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse стандартный формат успешного ответа
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// respondJSON пишет JSON ответ с заданным статусом
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondError пишет JSON ответ об ошибке
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondErrorCode пишет JSON ответ об ошибке с машинно-читаемым кодом
func respondErrorCode(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondServiceError транслирует ошибку сервисного слоя в HTTP статус.
// Текст ошибки уходит клиенту как есть: секретов в ошибках нет по
// построению (см. internal/source).
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	// Ошибки валидации запроса
	case errors.Is(err, service.ErrChainNotSupported),
		errors.Is(err, service.ErrExchangeNotSupported),
		errors.Is(err, service.ErrPassphraseRequired),
		errors.Is(err, service.ErrEmptyAccountName),
		errors.Is(err, utils.ErrAPIKeyEmpty),
		errors.Is(err, utils.ErrAPIKeyTooShort):
		respondError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrAddressAlreadyWatched):
		respondError(w, http.StatusConflict, err.Error())

	case errors.Is(err, repository.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, err.Error())

	default:
		respondSourceError(w, err)
	}
}

// respondSourceError мапит таксономию ошибок источников на HTTP статусы
func respondSourceError(w http.ResponseWriter, err error) {
	kind := source.KindOf(err)
	switch kind {
	case source.KindInvalidAddress, source.KindUnknownAsset:
		respondErrorCode(w, http.StatusBadRequest, string(kind), err.Error())

	case source.KindAuthenticationFailed:
		respondErrorCode(w, http.StatusUnauthorized, string(kind), err.Error())

	case source.KindCredentialMissing, source.KindSessionExpired:
		// Клиенту нужно заново ввести ключи
		respondErrorCode(w, http.StatusUnauthorized, string(kind), err.Error())

	case source.KindPermissionDenied, source.KindExcessivePermissions:
		respondErrorCode(w, http.StatusForbidden, string(kind), err.Error())

	case source.KindNotFound, source.KindAddressNotFound:
		respondErrorCode(w, http.StatusNotFound, string(kind), err.Error())

	case source.KindSyncInProgress:
		respondErrorCode(w, http.StatusConflict, string(kind), err.Error())

	case source.KindRateLimited, source.KindSourceUnavailable, source.KindSourceError:
		// Проблема внешнего источника, не клиента и не сервера
		respondErrorCode(w, http.StatusBadGateway, string(kind), err.Error())

	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
