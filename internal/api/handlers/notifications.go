package handlers

import (
	"net/http"

	"github.com/ramonehamilton/card-catalog/internal/api/response"
	"github.com/ramonehamilton/card-catalog/internal/notify"
)

// NotificationHandler exposes the viewer's notification channel.
type NotificationHandler struct {
	notifier *notify.Notifier
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifier *notify.Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// Current returns the active notification, or 204 when there is none.
func (h *NotificationHandler) Current(w http.ResponseWriter, _ *http.Request) {
	n, ok := h.notifier.Current()
	if !ok {
		response.NoContent(w)
		return
	}
	response.Success(w, n)
}

// Dismiss clears the active notification.
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]bool{"dismissed": h.notifier.Dismiss()})
}
