package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pagegate/internal/middleware"
	"github.com/hitoshi/pagegate/internal/model"
)

// ProgressServiceInterface は進捗ハンドラーが必要とするサービスインターフェース。
type ProgressServiceInterface interface {
	MarkComplete(ctx context.Context, userID, resourceKey string) (*model.ProgressRecord, error)
	CheckProgress(ctx context.Context, userID, resourceKey string) (bool, error)
}

// ProgressHandler は進捗関連のHTTPハンドラー。
type ProgressHandler struct {
	service ProgressServiceInterface
}

// NewProgressHandler はProgressHandlerを生成する。
func NewProgressHandler(service ProgressServiceInterface) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// MarkComplete はリソースの完了を記録する。冪等。
// PUT /api/progress/{resourceKey}
func (h *ProgressHandler) MarkComplete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	resourceKey := chi.URLParam(r, "resourceKey")
	if resourceKey == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidResourceKeyError())
		return
	}

	record, err := h.service.MarkComplete(r.Context(), userID, resourceKey)
	if err != nil {
		slog.Error("failed to mark progress",
			slog.String("user_id", userID),
			slog.String("resource_key", resourceKey),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewProgressFailedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"resource_key": record.ResourceKey,
		"completed":    record.Completed,
		"completed_at": record.CompletedAt,
	})
}

// GetProgress はリソースの完了状態を返す。
// GET /api/progress/{resourceKey}
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	resourceKey := chi.URLParam(r, "resourceKey")
	if resourceKey == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidResourceKeyError())
		return
	}

	completed, err := h.service.CheckProgress(r.Context(), userID, resourceKey)
	if err != nil {
		slog.Error("failed to check progress",
			slog.String("user_id", userID),
			slog.String("resource_key", resourceKey),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewProgressFailedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"resource_key": resourceKey,
		"completed":    completed,
	})
}
