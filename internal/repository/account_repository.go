package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"wallagg/internal/models"
)

// Ошибки репозитория аккаунтов
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

// AccountRepository - работа с таблицей accounts.
// Удаление мягкое: строка остаётся, active=false. Исторические
// снапшоты холдингов продолжают ссылаться на аккаунт.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository создает новый экземпляр репозитория
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, kind, display_name, chain, address, exchange, last_synced_at, active, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID,
		&account.Kind,
		&account.DisplayName,
		&account.Chain,
		&account.Address,
		&account.Exchange,
		&account.LastSyncedAt,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Create создает новый аккаунт. ID генерируется здесь, если не задан.
func (r *AccountRepository) Create(account *models.Account) error {
	query := `
		INSERT INTO accounts (id, kind, display_name, chain, address, exchange, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	now := time.Now()
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.Active = true
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := r.db.Exec(
		query,
		account.ID,
		account.Kind,
		account.DisplayName,
		account.Chain,
		account.Address,
		account.Exchange,
		account.Active,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		if isAccountUniqueViolation(err) {
			return ErrAccountExists
		}
		return err
	}

	return nil
}

// GetByID возвращает аккаунт по ID, включая деактивированные
func (r *AccountRepository) GetByID(id string) (*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1`

	account, err := scanAccount(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return account, nil
}

// GetAll возвращает аккаунты. activeOnly=true отфильтровывает
// мягко удалённые.
func (r *AccountRepository) GetAll(activeOnly bool) ([]*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts`
	if activeOnly {
		query += `
		WHERE active = TRUE`
	}
	query += `
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return accounts, nil
}

// ExistsByAddress проверяет, наблюдается ли уже адрес в данной сети
func (r *AccountRepository) ExistsByAddress(chain, address string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE chain = $1 AND address = $2 AND active = TRUE)`

	var exists bool
	err := r.db.QueryRow(query, chain, address).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// SoftDelete деактивирует аккаунт, не удаляя строку
func (r *AccountRepository) SoftDelete(id string) error {
	query := `
		UPDATE accounts
		SET active = FALSE, updated_at = $1
		WHERE id = $2 AND active = TRUE`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// UpdateDisplayName переименовывает аккаунт
func (r *AccountRepository) UpdateDisplayName(id, displayName string) error {
	query := `
		UPDATE accounts
		SET display_name = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, displayName, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// Count возвращает количество активных аккаунтов
func (r *AccountRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM accounts WHERE active = TRUE`

	var count int
	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// isAccountUniqueViolation проверяет, является ли ошибка нарушением UNIQUE constraint
func isAccountUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}
