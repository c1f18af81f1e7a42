package repository

import (
	"database/sql"
	"time"

	"wallagg/internal/models"
)

// HoldingRepository - работа с таблицей holdings.
//
// Набор холдингов аккаунта - это снапшот последней синхронизации.
// Частичных обновлений нет: ReplaceHoldings атомарно заменяет весь
// набор в одной транзакции, читатель никогда не видит смесь старого
// и нового снапшотов.
type HoldingRepository struct {
	db *sql.DB
}

// NewHoldingRepository создает новый экземпляр репозитория
func NewHoldingRepository(db *sql.DB) *HoldingRepository {
	return &HoldingRepository{db: db}
}

// GetByAccount возвращает текущий снапшот холдингов аккаунта
func (r *HoldingRepository) GetByAccount(accountID string) ([]*models.Holding, error) {
	query := `
		SELECT id, account_id, symbol, quantity, asset_address, as_of
		FROM holdings
		WHERE account_id = $1
		ORDER BY symbol ASC`

	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []*models.Holding
	for rows.Next() {
		holding := &models.Holding{}
		err := rows.Scan(
			&holding.ID,
			&holding.AccountID,
			&holding.Symbol,
			&holding.Quantity,
			&holding.AssetAddress,
			&holding.AsOf,
		)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, holding)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return holdings, nil
}

// GetAllActive возвращает холдинги всех активных аккаунтов.
// Используется при расчёте стоимости портфеля.
func (r *HoldingRepository) GetAllActive() ([]*models.Holding, error) {
	query := `
		SELECT h.id, h.account_id, h.symbol, h.quantity, h.asset_address, h.as_of
		FROM holdings h
		JOIN accounts a ON a.id = h.account_id
		WHERE a.active = TRUE
		ORDER BY h.account_id, h.symbol ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []*models.Holding
	for rows.Next() {
		holding := &models.Holding{}
		err := rows.Scan(
			&holding.ID,
			&holding.AccountID,
			&holding.Symbol,
			&holding.Quantity,
			&holding.AssetAddress,
			&holding.AsOf,
		)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, holding)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return holdings, nil
}

// ReplaceHoldings атомарно заменяет снапшот холдингов аккаунта и
// обновляет accounts.last_synced_at меткой нового снапшота.
// При любой ошибке транзакция откатывается, старый снапшот остаётся
// нетронутым.
func (r *HoldingRepository) ReplaceHoldings(accountID string, holdings []*models.Holding, syncedAt time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM holdings WHERE account_id = $1`, accountID); err != nil {
		return err
	}

	insertQuery := `
		INSERT INTO holdings (account_id, symbol, quantity, asset_address, as_of)
		VALUES ($1, $2, $3, $4, $5)`

	for _, holding := range holdings {
		_, err := tx.Exec(
			insertQuery,
			accountID,
			holding.Symbol,
			holding.Quantity,
			holding.AssetAddress,
			syncedAt,
		)
		if err != nil {
			return err
		}
	}

	result, err := tx.Exec(
		`UPDATE accounts SET last_synced_at = $1, updated_at = $1 WHERE id = $2`,
		syncedAt, accountID,
	)
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

	return tx.Commit()
}
