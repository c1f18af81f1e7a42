package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"wallagg/internal/models"
)

// ============================================================
// AccountRepository Tests
// ============================================================

func TestNewAccountRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewAccountRepository(db)
	if repo == nil {
		t.Fatal("NewAccountRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestAccountRepositoryCreate(t *testing.T) {
	tests := []struct {
		name        string
		account     *models.Account
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success wallet",
			account: &models.Account{
				Kind:        models.AccountKindWallet,
				DisplayName: "Main ETH",
				Chain:       models.ChainEthereum,
				Address:     "0x742d35cc6634c0532925a3b844bc454e4438f44e",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(sqlmock.AnyArg(), "wallet", "Main ETH", "ethereum", "0x742d35cc6634c0532925a3b844bc454e4438f44e", "", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			expectError: nil,
		},
		{
			name: "success exchange",
			account: &models.Account{
				Kind:        models.AccountKindExchange,
				DisplayName: "Kraken Spot",
				Exchange:    "kraken",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(sqlmock.AnyArg(), "exchange", "Kraken Spot", "", "", "kraken", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			expectError: nil,
		},
		{
			name: "duplicate key error",
			account: &models.Account{
				Kind:        models.AccountKindWallet,
				DisplayName: "Dup",
				Chain:       models.ChainBitcoin,
				Address:     "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(sqlmock.AnyArg(), "wallet", "Dup", "bitcoin", "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh", "", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnError(errors.New("duplicate key value violates unique constraint"))
			},
			expectError: ErrAccountExists,
		},
		{
			name: "database error",
			account: &models.Account{
				Kind:        models.AccountKindExchange,
				DisplayName: "Broken",
				Exchange:    "binance",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(sqlmock.AnyArg(), "exchange", "Broken", "", "", "binance", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnError(errors.New("connection refused"))
			},
			expectError: errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewAccountRepository(db)
			err = repo.Create(tt.account)

			if tt.expectError != nil {
				if err == nil {
					t.Errorf("expected error %v, got nil", tt.expectError)
				} else if tt.expectError == ErrAccountExists && !errors.Is(err, ErrAccountExists) {
					t.Errorf("expected ErrAccountExists, got %v", err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if tt.account.ID == "" {
					t.Error("expected generated ID, got empty string")
				}
				if !tt.account.Active {
					t.Error("created account must be active")
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestAccountRepositoryGetByID(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		id          string
		mockSetup   func(mock sqlmock.Sqlmock)
		expected    *models.Account
		expectError error
	}{
		{
			name: "success",
			id:   "acc-1",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "kind", "display_name", "chain", "address", "exchange", "last_synced_at", "active", "created_at", "updated_at"}).
					AddRow("acc-1", "wallet", "Main ETH", "ethereum", "0xabc", "", now, true, now, now)
				mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).
					WithArgs("acc-1").
					WillReturnRows(rows)
			},
			expected: &models.Account{
				ID:          "acc-1",
				Kind:        "wallet",
				DisplayName: "Main ETH",
				Chain:       "ethereum",
				Address:     "0xabc",
				Active:      true,
			},
			expectError: nil,
		},
		{
			name: "never synced has nil timestamp",
			id:   "acc-2",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "kind", "display_name", "chain", "address", "exchange", "last_synced_at", "active", "created_at", "updated_at"}).
					AddRow("acc-2", "exchange", "Kraken", "", "", "kraken", nil, true, now, now)
				mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).
					WithArgs("acc-2").
					WillReturnRows(rows)
			},
			expected: &models.Account{
				ID:       "acc-2",
				Kind:     "exchange",
				Exchange: "kraken",
				Active:   true,
			},
			expectError: nil,
		},
		{
			name: "not found",
			id:   "missing",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).
					WithArgs("missing").
					WillReturnError(sql.ErrNoRows)
			},
			expected:    nil,
			expectError: ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewAccountRepository(db)
			result, err := repo.GetByID(tt.id)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected error %v, got %v", tt.expectError, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if result.ID != tt.expected.ID {
					t.Errorf("expected ID=%s, got %s", tt.expected.ID, result.ID)
				}
				if result.Kind != tt.expected.Kind {
					t.Errorf("expected Kind=%s, got %s", tt.expected.Kind, result.Kind)
				}
				if tt.name == "never synced has nil timestamp" && result.LastSyncedAt != nil {
					t.Errorf("expected nil LastSyncedAt, got %v", result.LastSyncedAt)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestAccountRepositoryGetAll(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		activeOnly  bool
		mockSetup   func(mock sqlmock.Sqlmock)
		expectedLen int
		expectError bool
	}{
		{
			name:       "all including deactivated",
			activeOnly: false,
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "kind", "display_name", "chain", "address", "exchange", "last_synced_at", "active", "created_at", "updated_at"}).
					AddRow("acc-1", "wallet", "ETH", "ethereum", "0xabc", "", now, true, now, now).
					AddRow("acc-2", "exchange", "Kraken", "", "", "kraken", nil, false, now, now)
				mock.ExpectQuery(`SELECT .+ FROM accounts ORDER BY created_at DESC`).
					WillReturnRows(rows)
			},
			expectedLen: 2,
			expectError: false,
		},
		{
			name:       "active only",
			activeOnly: true,
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "kind", "display_name", "chain", "address", "exchange", "last_synced_at", "active", "created_at", "updated_at"}).
					AddRow("acc-1", "wallet", "ETH", "ethereum", "0xabc", "", now, true, now, now)
				mock.ExpectQuery(`SELECT .+ FROM accounts WHERE active = TRUE ORDER BY created_at DESC`).
					WillReturnRows(rows)
			},
			expectedLen: 1,
			expectError: false,
		},
		{
			name:       "empty result",
			activeOnly: true,
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "kind", "display_name", "chain", "address", "exchange", "last_synced_at", "active", "created_at", "updated_at"})
				mock.ExpectQuery(`SELECT .+ FROM accounts WHERE active = TRUE ORDER BY created_at DESC`).
					WillReturnRows(rows)
			},
			expectedLen: 0,
			expectError: false,
		},
		{
			name:       "database error",
			activeOnly: false,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM accounts ORDER BY created_at DESC`).
					WillReturnError(errors.New("database error"))
			},
			expectedLen: 0,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewAccountRepository(db)
			result, err := repo.GetAll(tt.activeOnly)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if len(result) != tt.expectedLen {
					t.Errorf("expected %d accounts, got %d", tt.expectedLen, len(result))
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestAccountRepositoryExistsByAddress(t *testing.T) {
	tests := []struct {
		name     string
		chain    string
		address  string
		exists   bool
	}{
		{"address already watched", "ethereum", "0xabc", true},
		{"address not watched", "bitcoin", "bc1qxyz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			rows := sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists)
			mock.ExpectQuery(`SELECT EXISTS`).
				WithArgs(tt.chain, tt.address).
				WillReturnRows(rows)

			repo := NewAccountRepository(db)
			result, err := repo.ExistsByAddress(tt.chain, tt.address)

			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if result != tt.exists {
				t.Errorf("expected %v, got %v", tt.exists, result)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestAccountRepositorySoftDelete(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			id:   "acc-1",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE accounts SET active = FALSE`).
					WithArgs(sqlmock.AnyArg(), "acc-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			expectError: nil,
		},
		{
			name: "not found",
			id:   "missing",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE accounts SET active = FALSE`).
					WithArgs(sqlmock.AnyArg(), "missing").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectError: ErrAccountNotFound,
		},
		{
			name: "already deactivated",
			id:   "acc-2",
			mockSetup: func(mock sqlmock.Sqlmock) {
				// WHERE active = TRUE не совпадает, повторное удаление = not found
				mock.ExpectExec(`UPDATE accounts SET active = FALSE`).
					WithArgs(sqlmock.AnyArg(), "acc-2").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectError: ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewAccountRepository(db)
			err = repo.SoftDelete(tt.id)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected error %v, got %v", tt.expectError, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestAccountRepositoryUpdateDisplayName(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		displayName string
		rows        int64
		expectError error
	}{
		{"success", "acc-1", "Renamed", 1, nil},
		{"not found", "missing", "Renamed", 0, ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`UPDATE accounts SET display_name = \$1`).
				WithArgs(tt.displayName, sqlmock.AnyArg(), tt.id).
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			repo := NewAccountRepository(db)
			err = repo.UpdateDisplayName(tt.id, tt.displayName)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected error %v, got %v", tt.expectError, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestAccountRepositoryCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"count"}).AddRow(4)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts WHERE active = TRUE`).
		WillReturnRows(rows)

	repo := NewAccountRepository(db)
	result, err := repo.Count()

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != 4 {
		t.Errorf("expected count=4, got %d", result)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestIsAccountUniqueViolation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"duplicate key error", errors.New("duplicate key value violates unique constraint"), true},
		{"postgres error code 23505", errors.New("ERROR: 23505 duplicate key"), true},
		{"other error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isAccountUniqueViolation(tt.err)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}
