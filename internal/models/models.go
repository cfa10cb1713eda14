package models

import "time"

// Sender identifies a chat participant.
type Sender struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Inbound is one transport-neutral inbound fragment: a text message or
// an already-downloaded image, plus the metadata needed to tag its
// sender and to anchor replies.
type Inbound struct {
	ChatID    int64
	MessageID int
	From      Sender
	// ForwardedFrom is set when the message was forwarded from a user
	// whose account is visible.
	ForwardedFrom *Sender
	// ForwardedName is set when the message was forwarded from a user
	// who hides their account; only the display name is known.
	ForwardedName string
	Text          string
	ImagePath     string
}

// Event is a parsed calendar event awaiting confirmation. Times are
// ISO-8601 local timestamps without an offset, as returned by the
// extraction service.
type Event struct {
	Title       string `json:"title"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
	Location    string `json:"location"`
	TokensUsed  int    `json:"tokens_used"`
}

// Credentials is a user's CalDAV connection record.
type Credentials struct {
	URL          string `json:"url"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	CalendarName string `json:"calendar_name"`
}

// Stats is a user's accumulated extraction usage.
type Stats struct {
	RequestCount int       `json:"requests_count"`
	TotalTokens  int       `json:"total_tokens"`
	LastRequest  time.Time `json:"last_request"`
}
