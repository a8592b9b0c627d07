package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/pagegate/internal/middleware"
	"github.com/hitoshi/pagegate/internal/model"
)

// EntitlementServiceInterface はエンタイトルメントハンドラーが必要とするサービスインターフェース。
type EntitlementServiceInterface interface {
	ListByUser(ctx context.Context, userID string) ([]*model.Entitlement, error)
}

// EntitlementHandler はエンタイトルメント関連のHTTPハンドラー。
// 読み取り専用。付与・剥奪のエンドポイントは提供しない。
type EntitlementHandler struct {
	service EntitlementServiceInterface
}

// NewEntitlementHandler はEntitlementHandlerを生成する。
func NewEntitlementHandler(service EntitlementServiceInterface) *EntitlementHandler {
	return &EntitlementHandler{service: service}
}

// ListEntitlements は自分のエンタイトルメント一覧を返す。
// GET /api/entitlements
func (h *EntitlementHandler) ListEntitlements(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	entitlements, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list entitlements",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	items := make([]map[string]interface{}, 0, len(entitlements))
	for _, e := range entitlements {
		items = append(items, map[string]interface{}{
			"resource_key": e.ResourceKey,
			"granted_at":   e.GrantedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"entitlements": items,
	})
}
