package calendar

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"calbot/internal/models"
)

const timeLayout = "2006-01-02T15:04:05"

// CalDAVProvider talks to any CalDAV server (FastMail, Google, generic)
// over basic auth. A fresh client is built per call because every user
// carries their own credentials.
type CalDAVProvider struct {
	timezone string
	logger   *zap.Logger
}

func NewCalDAVProvider(timezone string, logger *zap.Logger) *CalDAVProvider {
	return &CalDAVProvider{timezone: timezone, logger: logger}
}

func (p *CalDAVProvider) connect(serverURL, username, password string) (*caldav.Client, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid CalDAV server URL: %w", err)
	}

	httpClient := webdav.HTTPClientWithBasicAuth(http.DefaultClient, username, password)
	client, err := caldav.NewClient(httpClient, base.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create CalDAV client: %w", err)
	}
	return client, nil
}

// findCalendar locates the calendar with the given display name under
// the principal's calendar home set.
func (p *CalDAVProvider) findCalendar(ctx context.Context, client *caldav.Client, name string) (*caldav.Calendar, error) {
	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}
	calendars, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	names := make([]string, 0, len(calendars))
	for i := range calendars {
		if calendars[i].Name == name {
			return &calendars[i], nil
		}
		names = append(names, calendars[i].Name)
	}
	return nil, fmt.Errorf("calendar %q not found, available calendars: %s",
		name, strings.Join(names, ", "))
}

func (p *CalDAVProvider) VerifyAccess(ctx context.Context, serverURL, username, password, calendarName string) error {
	client, err := p.connect(serverURL, username, password)
	if err != nil {
		return err
	}
	if _, err := p.findCalendar(ctx, client, calendarName); err != nil {
		return err
	}
	return nil
}

func (p *CalDAVProvider) AddEvent(ctx context.Context, creds *models.Credentials, event *models.Event) error {
	client, err := p.connect(creds.URL, creds.Username, creds.Password)
	if err != nil {
		return err
	}
	cal, err := p.findCalendar(ctx, client, creds.CalendarName)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(p.timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", p.timezone, err)
	}
	start, end, err := eventWindow(event, loc)
	if err != nil {
		return err
	}

	eventUID := uuid.New().String()

	icalEvent := ical.NewEvent()
	icalEvent.Component.Props.SetText("UID", eventUID)
	icalEvent.Component.Props.SetDateTime("DTSTAMP", time.Now())
	icalEvent.Component.Props.SetText("SUMMARY", event.Title)
	icalEvent.Component.Props.SetDateTime("DTSTART", start)
	icalEvent.Component.Props.SetDateTime("DTEND", end)
	icalEvent.Component.Props.SetText("STATUS", "CONFIRMED")
	if event.Description != "" {
		icalEvent.Component.Props.SetText("DESCRIPTION", event.Description)
	}
	if event.Location != "" {
		icalEvent.Component.Props.SetText("LOCATION", event.Location)
	}

	calData := ical.NewCalendar()
	calData.Component.Props.SetText("VERSION", "2.0")
	calData.Component.Props.SetText("PRODID", "-//calbot//calendar bot//EN")
	calData.Component.Children = append(calData.Component.Children, icalEvent.Component)

	path := strings.TrimSuffix(cal.Path, "/") + "/" + eventUID + ".ics"
	if _, err := client.PutCalendarObject(ctx, path, calData); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	p.logger.Info("event added to calendar",
		zap.String("uid", eventUID),
		zap.String("calendar", creds.CalendarName),
		zap.String("title", event.Title))
	return nil
}

// eventWindow parses the event's local timestamps; a missing end time
// defaults to one hour after the start.
func eventWindow(event *models.Event, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(timeLayout, event.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time %q: %w", event.StartTime, err)
	}
	end := start.Add(time.Hour)
	if event.EndTime != "" {
		end, err = time.ParseInLocation(timeLayout, event.EndTime, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end time %q: %w", event.EndTime, err)
		}
	}
	return start, end, nil
}
