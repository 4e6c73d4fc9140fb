package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"hive-backend/internal/services"
)

type NotificationHandler struct {
	app      *pocketbase.PocketBase
	notifier *services.NotificationService
}

func NewNotificationHandler(app *pocketbase.PocketBase, notifier *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		app:      app,
		notifier: notifier,
	}
}

// RegisterDevice - store a device channel token for the caller
func (h *NotificationHandler) RegisterDevice(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		TokenID string `json:"token_id"`
		Channel string `json:"channel"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.notifier.RegisterToken(e.Request.Context(), e.Auth.Id, req.TokenID, req.Channel); err != nil {
		return apis.NewBadRequestError("Failed to register device", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"message":  "Device registered",
		"token_id": req.TokenID,
	})
}

// UnregisterDevice - drop a device token for the caller
func (h *NotificationHandler) UnregisterDevice(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		TokenID string `json:"token_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.notifier.UnregisterToken(e.Request.Context(), e.Auth.Id, req.TokenID); err != nil {
		return apis.NewBadRequestError("Failed to unregister device", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"message": "Device unregistered",
	})
}
