package controllers

import (
	"net/http"

	"github.com/bazaarhq/bazaar-backend/api/responses"
	"github.com/bazaarhq/bazaar-backend/api/validators"
	"github.com/bazaarhq/bazaar-backend/internal/notifications"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
)

var errNotificationsUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable")

// inboxHandler resolves the caller's inbox before running serve.
func inboxHandler(svc notifications.Service, logg *logger.Logger, serve func(r *http.Request, inbox notifications.Recipient) (any, error)) http.HandlerFunc {
	if svc == nil {
		return responses.Fail(logg, errNotificationsUnavailable)
	}
	return responses.Handle(logg, http.StatusOK, func(r *http.Request) (any, error) {
		inbox, err := recipientFromRequest(r)
		if err != nil {
			return nil, err
		}
		return serve(r, inbox)
	})
}

// ListNotifications pages the caller's inbox, newest first. ?unreadOnly=true
// hides read entries.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, inbox notifications.Recipient) (any, error) {
		page, err := validators.ParsePageParams(r)
		if err != nil {
			return nil, err
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unreadOnly")
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), notifications.ListParams{Recipient: inbox, UnreadOnly: unreadOnly, Params: page})
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, inbox notifications.Recipient) (any, error) {
		id, err := validators.ParseUUIDParam(r, "notificationId", "notification id")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), inbox, id); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, inbox notifications.Recipient) (any, error) {
		updated, err := svc.MarkAllRead(r.Context(), inbox)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": updated}, nil
	})
}
