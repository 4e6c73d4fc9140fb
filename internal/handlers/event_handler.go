package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"hive-backend/internal/services"
	"hive-backend/internal/status"
	"hive-backend/models"
)

type EventHandler struct {
	app       *pocketbase.PocketBase
	lifecycle *services.LifecycleService
}

func NewEventHandler(app *pocketbase.PocketBase, lifecycle *services.LifecycleService) *EventHandler {
	return &EventHandler{
		app:       app,
		lifecycle: lifecycle,
	}
}

// TransitionState - manual, permission-checked state change
func (h *EventHandler) TransitionState(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("You must be logged in to transition event states", nil)
	}

	eventID := e.Request.PathValue("eventId")

	var req struct {
		TargetState string `json:"target_state"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	message, err := h.lifecycle.ManualTransition(e.Request.Context(), e.Auth.Id, eventID, req.TargetState)
	if err != nil {
		return mapLifecycleError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": message,
	})
}

// GetStateHistory - current state plus the full transition log
func (h *EventHandler) GetStateHistory(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")

	record, err := h.app.FindRecordById("events", eventID)
	if err != nil {
		return apis.NewNotFoundError("Event not found", err)
	}

	event, err := models.EventFromRecord(record)
	if err != nil {
		return apis.NewInternalServerError("Failed to read event", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id":         event.ID,
		"state":            event.State,
		"state_updated_at": event.StateUpdatedAt,
		"state_history":    event.StateHistory,
	})
}

// ForceAdvance - admin trigger for an out-of-schedule advancer run
func (h *EventHandler) ForceAdvance(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	if e.Auth.GetString("role") != models.RoleAdmin {
		return apis.NewForbiddenError("Admin access required", nil)
	}

	if err := h.lifecycle.RunAdvancer(e.Request.Context()); err != nil {
		return apis.NewInternalServerError("Advancer run failed", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Event states updated",
	})
}

func mapLifecycleError(err error) error {
	switch {
	case errors.Is(err, status.ErrUnauthenticated):
		return apis.NewUnauthorizedError("You must be logged in to transition event states", err)
	case errors.Is(err, status.ErrInvalidArgument):
		return apis.NewBadRequestError("Event ID and a valid target state are required", err)
	case errors.Is(err, status.ErrUserNotFound):
		return apis.NewNotFoundError("User document not found", err)
	case errors.Is(err, status.ErrEventNotFound):
		return apis.NewNotFoundError("Event not found", err)
	case errors.Is(err, status.ErrPermissionDenied):
		return apis.NewForbiddenError("You do not have permission to make this state transition", err)
	default:
		return apis.NewInternalServerError("An error occurred while transitioning the event state", err)
	}
}
