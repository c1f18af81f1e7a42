package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"wallagg/internal/models"
	"wallagg/internal/source"
)

// ============ SyncHandler Tests ============

func TestSyncHandler_SyncAccount(t *testing.T) {
	t.Run("returns sync result", func(t *testing.T) {
		mockSvc := NewMockSyncService()
		handler := NewSyncHandler(mockSvc)

		mockSvc.SetResult("acc-1", &models.SyncResult{
			AccountID:     "acc-1",
			Outcome:       models.SyncOutcomeSuccess,
			HoldingsCount: 5,
			FinishedAt:    time.Now(),
		})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/acc-1/sync", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "acc-1"})
		w := httptest.NewRecorder()

		handler.SyncAccount(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var result models.SyncResult
		if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if result.Outcome != models.SyncOutcomeSuccess {
			t.Errorf("expected success outcome, got %s", result.Outcome)
		}
		if result.HoldingsCount != 5 {
			t.Errorf("expected 5 holdings, got %d", result.HoldingsCount)
		}
	})

	t.Run("partial failure is still 200 with outcome in body", func(t *testing.T) {
		mockSvc := NewMockSyncService()
		handler := NewSyncHandler(mockSvc)

		mockSvc.SetResult("acc-1", &models.SyncResult{
			AccountID:   "acc-1",
			Outcome:     models.SyncOutcomePartialFailure,
			ErrorDetail: "etherscan: 503",
		})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/acc-1/sync", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "acc-1"})
		w := httptest.NewRecorder()

		handler.SyncAccount(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var result models.SyncResult
		json.NewDecoder(w.Body).Decode(&result)
		if result.Outcome != models.SyncOutcomePartialFailure {
			t.Errorf("expected partial_failure, got %s", result.Outcome)
		}
		if result.ErrorDetail == "" {
			t.Error("expected error detail for partial failure")
		}
	})

	t.Run("returns 404 for unknown account", func(t *testing.T) {
		mockSvc := NewMockSyncService()
		handler := NewSyncHandler(mockSvc)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/missing/sync", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "missing"})
		w := httptest.NewRecorder()

		handler.SyncAccount(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})

	t.Run("returns 409 when sync already running", func(t *testing.T) {
		mockSvc := NewMockSyncService()
		handler := NewSyncHandler(mockSvc)

		mockSvc.syncErr = source.NewError(source.KindSyncInProgress, "sync", "sync already in progress")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/acc-1/sync", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "acc-1"})
		w := httptest.NewRecorder()

		handler.SyncAccount(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
		}

		var response ErrorResponse
		json.NewDecoder(w.Body).Decode(&response)
		if response.Code != string(source.KindSyncInProgress) {
			t.Errorf("expected code sync_in_progress, got %s", response.Code)
		}
	})

	t.Run("returns 401 when session expired", func(t *testing.T) {
		mockSvc := NewMockSyncService()
		handler := NewSyncHandler(mockSvc)

		mockSvc.syncErr = source.NewError(source.KindSessionExpired, "vault", "session expired")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/acc-1/sync", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "acc-1"})
		w := httptest.NewRecorder()

		handler.SyncAccount(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})
}

func TestSyncHandler_SyncAll(t *testing.T) {
	t.Run("returns per-account results", func(t *testing.T) {
		mockSvc := NewMockSyncService()
		handler := NewSyncHandler(mockSvc)

		mockSvc.SetResult("acc-1", &models.SyncResult{AccountID: "acc-1", Outcome: models.SyncOutcomeSuccess})
		mockSvc.SetResult("acc-2", &models.SyncResult{AccountID: "acc-2", Outcome: models.SyncOutcomeSourceError, ErrorDetail: "kraken: 503"})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
		w := httptest.NewRecorder()

		handler.SyncAll(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response syncAllResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Total != 2 {
			t.Errorf("expected 2 results, got %d", response.Total)
		}
	})

	t.Run("returns empty list when no accounts", func(t *testing.T) {
		mockSvc := NewMockSyncService()
		handler := NewSyncHandler(mockSvc)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
		w := httptest.NewRecorder()

		handler.SyncAll(w, req)

		var response syncAllResponse
		json.NewDecoder(w.Body).Decode(&response)
		if response.Total != 0 || response.Results == nil {
			t.Errorf("expected empty non-nil results, got %+v", response)
		}
	})

	t.Run("returns 500 on service error", func(t *testing.T) {
		mockSvc := NewMockSyncService()
		handler := NewSyncHandler(mockSvc)

		mockSvc.allErr = ErrMockDatabase

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
		w := httptest.NewRecorder()

		handler.SyncAll(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}
