// Package source содержит общую для всех внешних источников данных
// (блокчейн-API, биржи, ценовой оракул) таксономию ошибок и HTTP клиент.
package source

import (
	"errors"
	"fmt"
)

// Kind классифицирует ошибку внешнего источника.
// Transient-классы (RateLimited, SourceUnavailable) ретраятся внутри
// fetch.Executor и наружу не выходят: после исчерпания попыток они
// превращаются в SourceError с приложенной последней причиной.
type Kind string

const (
	KindInvalidAddress       Kind = "invalid_address"
	KindAuthenticationFailed Kind = "authentication_failed"
	KindExcessivePermissions Kind = "excessive_permissions"
	KindPermissionDenied     Kind = "permission_denied"
	KindRateLimited          Kind = "rate_limited"       // transient
	KindSourceUnavailable    Kind = "source_unavailable" // transient
	KindSourceError          Kind = "source_error"       // терминальная, после исчерпания ретраев
	KindCredentialMissing    Kind = "credential_missing"
	KindSessionExpired       Kind = "session_expired"
	KindSyncInProgress       Kind = "sync_in_progress"
	KindUnknownAsset         Kind = "unknown_asset"
	KindAddressNotFound      Kind = "address_not_found"
	KindNotFound             Kind = "not_found"
)

// Error - типизированная ошибка внешнего источника.
// Source - имя источника (ethereum, binance, coingecko, ...).
type Error struct {
	Kind    Kind
	Source  string
	Message string
	Err     error // исходная причина, если есть
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Source, e.Message, e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (%s)", e.Source, e.Err, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Kind)
}

// Unwrap возвращает исходную причину для errors.Is() и errors.As()
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable реализует retry.RetryableError: ретраятся только
// transient-классы ошибок. Определённая неудача (неверный адрес,
// неверные ключи) повторной попыткой не лечится и только сжигает квоту.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindSourceUnavailable
}

// NewError создает ошибку источника
func NewError(kind Kind, src, message string) *Error {
	return &Error{Kind: kind, Source: src, Message: message}
}

// WrapError оборачивает причину в ошибку источника
func WrapError(kind Kind, src string, err error) *Error {
	return &Error{Kind: kind, Source: src, Err: err}
}

// KindOf возвращает Kind ошибки или пустую строку, если это не *Error
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Is сообщает, имеет ли ошибка указанный класс
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsTransient возвращает true для ошибок, которые имеет смысл ретраить
func IsTransient(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}
