package utils

import (
	"errors"
	"strings"
)

// validator.go - валидация и санитизация пользовательского ввода
//
// Назначение:
// Проверка корректности входных данных на границе API,
// до того как они попадут в сервисы и хранилище.
//
// Функции:
// - SanitizeAccountName: очистка отображаемого имени аккаунта
// - ValidateAPIKey: базовая проверка правдоподобности API ключа

// Ошибки валидации
var (
	ErrAPIKeyTooShort = errors.New("api key is too short (minimum 16 characters)")
	ErrAPIKeyEmpty    = errors.New("api key cannot be empty")
)

// MinAPIKeyLength - минимальная правдоподобная длина API ключа.
// Реальные ключи бирж и Etherscan длиннее, всё короче - опечатка.
const MinAPIKeyLength = 16

// MaxAccountNameLength - максимальная длина отображаемого имени аккаунта
const MaxAccountNameLength = 100

// SanitizeAccountName очищает отображаемое имя аккаунта.
// Удаляет символы, пригодные для HTML/SQL инъекций через UI,
// обрезает пробелы и ограничивает длину.
//
// Примеры:
//   - SanitizeAccountName("  My <b>Wallet</b>  ") = "My bWallet/b"
//   - SanitizeAccountName(strings.Repeat("a", 200)) = 100 символов "a"
func SanitizeAccountName(name string) string {
	name = strings.TrimSpace(name)

	// Вырезаем опасные символы целиком, без замены на плейсхолдеры
	replacer := strings.NewReplacer(
		"<", "",
		">", "",
		`"`, "",
		"'", "",
		"&", "",
	)
	name = replacer.Replace(name)

	if len(name) > MaxAccountNameLength {
		name = name[:MaxAccountNameLength]
	}

	return name
}

// ValidateAPIKey проверяет правдоподобность API ключа.
// Не проверяет подлинность (это делает TestConnection у адаптера),
// только отсекает очевидный мусор до похода в сеть.
func ValidateAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrAPIKeyEmpty
	}
	if len(key) < MinAPIKeyLength {
		return ErrAPIKeyTooShort
	}
	return nil
}
