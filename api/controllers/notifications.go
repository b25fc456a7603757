package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/api/middleware"
	"github.com/angelmondragon/sitestock-backend/api/responses"
	"github.com/angelmondragon/sitestock-backend/api/validators"
	"github.com/angelmondragon/sitestock-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
	"github.com/angelmondragon/sitestock-backend/pkg/pagination"
)

// inboxHandler resolves the calling user and hands off to fn. Any error fn
// returns is rendered through the standard error envelope.
func inboxHandler(svc notifications.Service, logg *logger.Logger, fn func(r *http.Request, userID uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		userID, _, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body, err := fn(r, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, body)
	}
}

// ListNotifications serves GET /notifications, newest first.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (any, error) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return nil, err
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unreadOnly")
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), notifications.ListParams{
			UserID:     userID,
			Limit:      limit,
			Cursor:     validators.SanitizeString(r.URL.Query().Get("cursor"), 256),
			UnreadOnly: unreadOnly,
		})
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (any, error) {
		id, err := validators.ParseURLUUID(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), userID, id); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, userID uuid.UUID) (any, error) {
		n, err := svc.MarkAllRead(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": n}, nil
	})
}
