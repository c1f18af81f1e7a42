// Package vault - сессионное хранилище секретов в памяти.
//
// Ключи бирж живут только здесь: никогда не пишутся в БД, в логи и
// в API ответы. Хранилище привязано к сессии с ограниченным временем
// жизни. По истечении сессии все секреты затираются, дальнейшие
// обращения возвращают session_expired до явного перезапуска сессии.
package vault

import (
	"sync"
	"time"

	"wallagg/internal/source"
)

// Состояния сессии
const (
	StateFresh   = "fresh"   // сессия ещё не началась, секретов нет
	StateActive  = "active"  // сессия идёт, секреты доступны
	StateExpired = "expired" // терминальное, до перезапуска сессии
)

// Credential - секреты доступа к одному биржевому аккаунту.
// Passphrase нужна не всем биржам (OKX - да, Binance/Kraken - нет).
type Credential struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// IsZero возвращает true для пустого credential
func (c Credential) IsZero() bool {
	return c.APIKey == "" && c.APISecret == "" && c.Passphrase == ""
}

// entry хранит секреты байтовыми срезами, чтобы их можно было
// затереть перезаписью перед освобождением
type entry struct {
	apiKey     []byte
	apiSecret  []byte
	passphrase []byte
}

func (e *entry) wipe() {
	for _, b := range [][]byte{e.apiKey, e.apiSecret, e.passphrase} {
		for i := range b {
			b[i] = 0
		}
	}
	e.apiKey = nil
	e.apiSecret = nil
	e.passphrase = nil
}

// SessionInfo - снимок состояния сессии для API.
// Секретов не содержит, только метаданные.
type SessionInfo struct {
	State             string        `json:"state"`
	CredentialCount   int           `json:"credential_count"`
	RemainingLifetime time.Duration `json:"remaining_lifetime_seconds"`
}

// Vault - потокобезопасное сессионное хранилище секретов.
//
// Часы инжектируются для детерминированных тестов истечения сессии.
// Сессия стартует при первом Put и живёт timeout. Проверка истечения
// ленивая: выполняется при каждом обращении, фоновых таймеров нет.
type Vault struct {
	mu        sync.Mutex
	now       func() time.Time
	timeout   time.Duration
	startedAt time.Time
	state     string
	entries   map[string]*entry
}

// New создаёт хранилище с заданным временем жизни сессии.
// now == nil означает time.Now.
func New(timeout time.Duration, now func() time.Time) *Vault {
	if now == nil {
		now = time.Now
	}
	return &Vault{
		now:     now,
		timeout: timeout,
		state:   StateFresh,
		entries: make(map[string]*entry),
	}
}

// checkSession лениво переводит сессию в expired и затирает секреты.
// ВАЖНО: вызывается под lock'ом.
func (v *Vault) checkSession() {
	if v.state != StateActive {
		return
	}
	if v.now().Sub(v.startedAt) >= v.timeout {
		v.wipeAll()
		v.state = StateExpired
	}
}

// wipeAll затирает и удаляет все записи.
// ВАЖНО: вызывается под lock'ом.
func (v *Vault) wipeAll() {
	for id, e := range v.entries {
		e.wipe()
		delete(v.entries, id)
	}
}

// Put сохраняет секреты аккаунта. Повторный Put для того же аккаунта
// затирает и заменяет старую запись. Первый Put стартует сессию.
//
// Возвращает session_expired если сессия истекла: класть секреты в
// мёртвую сессию бессмысленно, вызывающий должен перезапустить её.
func (v *Vault) Put(accountID string, cred Credential) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.checkSession()
	if v.state == StateExpired {
		return source.NewError(source.KindSessionExpired, "vault", "session expired, restart required")
	}

	if v.state == StateFresh {
		v.startedAt = v.now()
		v.state = StateActive
	}

	if old, ok := v.entries[accountID]; ok {
		old.wipe()
	}

	v.entries[accountID] = &entry{
		apiKey:     []byte(cred.APIKey),
		apiSecret:  []byte(cred.APISecret),
		passphrase: []byte(cred.Passphrase),
	}

	return nil
}

// Get возвращает секреты аккаунта.
//
// Возвращает:
//   - credential_missing: для аккаунта ничего не сохранено
//   - session_expired: сессия истекла, все секреты уже затёрты
func (v *Vault) Get(accountID string) (Credential, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.checkSession()
	if v.state == StateExpired {
		return Credential{}, source.NewError(source.KindSessionExpired, "vault", "session expired")
	}

	e, ok := v.entries[accountID]
	if !ok {
		return Credential{}, source.NewError(source.KindCredentialMissing, "vault", "no credential for account "+accountID)
	}

	return Credential{
		APIKey:     string(e.apiKey),
		APISecret:  string(e.apiSecret),
		Passphrase: string(e.passphrase),
	}, nil
}

// Has сообщает, есть ли секреты для аккаунта, не выдавая их
func (v *Vault) Has(accountID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.checkSession()
	if v.state == StateExpired {
		return false
	}
	_, ok := v.entries[accountID]
	return ok
}

// Clear затирает секреты одного аккаунта. Идемпотентен:
// повторный вызов и вызов для неизвестного аккаунта - no-op.
func (v *Vault) Clear(accountID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if e, ok := v.entries[accountID]; ok {
		e.wipe()
		delete(v.entries, accountID)
	}
}

// Reset затирает все секреты и возвращает хранилище в fresh.
// Используется для явного завершения сессии и для перезапуска
// после истечения.
func (v *Vault) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.wipeAll()
	v.state = StateFresh
	v.startedAt = time.Time{}
}

// Info возвращает метаданные сессии без секретов
func (v *Vault) Info() SessionInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.checkSession()

	info := SessionInfo{
		State:           v.state,
		CredentialCount: len(v.entries),
	}
	if v.state == StateActive {
		remaining := v.timeout - v.now().Sub(v.startedAt)
		if remaining < 0 {
			remaining = 0
		}
		info.RemainingLifetime = remaining
	}
	return info
}
