package websocket

import (
	"time"

	"wallagg/internal/models"
	"wallagg/internal/service"
	"wallagg/internal/vault"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeSyncResult - итог синхронизации аккаунта
	// Отправляется после каждой синхронизации, успешной или нет
	MessageTypeSyncResult MessageType = "sync_result"

	// MessageTypeValuationUpdate - пересчитанная стоимость портфеля
	// Отправляется после каждого расчёта стоимости
	MessageTypeValuationUpdate MessageType = "valuation_update"

	// MessageTypeSessionUpdate - изменение состояния сессии секретов
	// Отправляется при добавлении/затирании учётных данных и истечении сессии
	MessageTypeSessionUpdate MessageType = "session_update"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// SyncResultMessage - сообщение об итоге синхронизации
//
// Содержит outcome (success, partial_failure, credential_missing,
// source_error), число закоммиченных холдингов и детали ошибки.
// Секретов в SyncResult нет по построению.
type SyncResultMessage struct {
	BaseMessage
	Data *models.SyncResult `json:"data"`
}

// ValuationUpdateMessage - сообщение с пересчитанной стоимостью портфеля
type ValuationUpdateMessage struct {
	BaseMessage
	Data *service.PortfolioValue `json:"data"`
}

// SessionUpdateMessage - сообщение об изменении сессии секретов
type SessionUpdateMessage struct {
	BaseMessage
	Data *SessionData `json:"data"`
}

// SessionData - метаданные сессии. Только состояние и счётчики,
// никаких значений ключей.
type SessionData struct {
	State            string `json:"state"`
	CredentialCount  int    `json:"credential_count"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// ============ Фабричные функции для создания сообщений ============

// NewSyncResultMessage создает сообщение об итоге синхронизации
func NewSyncResultMessage(result *models.SyncResult) *SyncResultMessage {
	return &SyncResultMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSyncResult,
			Timestamp: time.Now(),
		},
		Data: result,
	}
}

// NewValuationUpdateMessage создает сообщение со стоимостью портфеля
func NewValuationUpdateMessage(value *service.PortfolioValue) *ValuationUpdateMessage {
	return &ValuationUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeValuationUpdate,
			Timestamp: time.Now(),
		},
		Data: value,
	}
}

// NewSessionUpdateMessage создает сообщение о состоянии сессии
func NewSessionUpdateMessage(info vault.SessionInfo) *SessionUpdateMessage {
	return &SessionUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSessionUpdate,
			Timestamp: time.Now(),
		},
		Data: &SessionData{
			State:            string(info.State),
			CredentialCount:  info.CredentialCount,
			RemainingSeconds: int64(info.RemainingLifetime / time.Second),
		},
	}
}
