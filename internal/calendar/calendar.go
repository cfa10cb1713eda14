package calendar

import (
	"context"

	"calbot/internal/models"
)

// Provider persists events to a user's remote calendar.
type Provider interface {
	// VerifyAccess checks that the credentials reach the server and
	// that the named calendar exists.
	VerifyAccess(ctx context.Context, serverURL, username, password, calendarName string) error
	// AddEvent writes the event to the user's configured calendar.
	AddEvent(ctx context.Context, creds *models.Credentials, event *models.Event) error
}
