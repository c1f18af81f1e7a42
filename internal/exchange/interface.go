// Package exchange содержит read-only адаптеры приватных API бирж.
// Адаптеры только читают балансы: торговые и выводные операции
// не поддерживаются намеренно.
package exchange

import (
	"context"

	jsoniter "github.com/json-iterator/go"

	"wallagg/internal/source"
	"wallagg/internal/vault"
)

// Быстрый drop-in вместо encoding/json для разбора ответов API
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Exchange определяет унифицированный интерфейс для работы с любой биржей.
//
// Секреты передаются аргументом в каждый вызов и нигде в адаптере
// не сохраняются: единственный владелец секретов - vault.
type Exchange interface {
	// Name возвращает имя биржи
	Name() string

	// RequiresPassphrase сообщает, нужна ли passphrase помимо ключа и секрета
	RequiresPassphrase() bool

	// TestConnection проверяет работоспособность ключей и возвращает
	// известные адаптеру права ключа. Вызывается при регистрации аккаунта.
	TestConnection(ctx context.Context, cred vault.Credential) (*ConnectionInfo, error)

	// FetchBalances возвращает все ненулевые балансы спот-аккаунта
	FetchBalances(ctx context.Context, cred vault.Credential) ([]source.Balance, error)
}

// ConnectionInfo - что удалось узнать о ключе при проверке подключения.
// PermissionsKnown=false означает что биржа не раскрывает права ключа
// через API, и предупредить о лишних правах невозможно.
type ConnectionInfo struct {
	PermissionsKnown bool
	CanTrade         bool
	CanWithdraw      bool
}

// ExcessivePermissions возвращает true если ключу выданы права сверх
// чтения. Агрегатору нужен только read-only доступ, ключ с правом
// торговли или вывода - лишний риск для пользователя.
func (ci *ConnectionInfo) ExcessivePermissions() bool {
	return ci.PermissionsKnown && (ci.CanTrade || ci.CanWithdraw)
}
