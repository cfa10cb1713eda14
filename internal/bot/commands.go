package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"calbot/internal/models"
)

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "google":
		b.handleGoogle(ctx, message)
	case "fastmail":
		b.handleFastmail(ctx, message)
	case "caldav":
		b.handleCalDAV(ctx, message)
	case "stats":
		b.handleStats(message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /start to see how to set things up.")
	}
}

func (b *Bot) advertiseCommands() error {
	cmd := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "How to get started"},
		tgbotapi.BotCommand{Command: "google", Description: "Connect Google Calendar"},
		tgbotapi.BotCommand{Command: "fastmail", Description: "Connect FastMail"},
		tgbotapi.BotCommand{Command: "caldav", Description: "Connect any CalDAV calendar"},
		tgbotapi.BotCommand{Command: "stats", Description: "Show usage statistics"},
	)
	_, err := b.api.Request(cmd)
	return err
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `👋 Hi! I turn messages into calendar events.

Connect your calendar first, with one of:

📧 Google Calendar:
/google account password [calendar]

📧 FastMail:
/fastmail account password [calendar]

🔧 Any other CalDAV calendar:
/caldav username password url calendar_name

Then just tell me about an event, for example:
• Meeting with a client tomorrow at 15:00
• Lecture on March 25 at 11am
• Forward me a conversation that mentions a date

I'll parse it and add the event to your calendar after you confirm.`

	b.sendMessage(message.Chat.ID, welcome)
}

const googleUsage = `Invalid command format. Use:
/google username password [calendar]

❗️ username — your account name (with or without @gmail.com)
❗️ password — an app password. To get one:
1. Enable two-factor authentication (2FA)
   • App passwords are unavailable without 2FA
   • Your normal account password will not work
2. Create an app password:
   • Open https://myaccount.google.com/apppasswords
   • Name it (e.g. "Calendar Bot") and use the generated password above

❗️ calendar — your calendar's name (optional)
   • Defaults to the primary calendar`

func (b *Bot) handleGoogle(ctx context.Context, message *tgbotapi.Message) {
	params := strings.Fields(message.CommandArguments())
	if len(params) < 2 || len(params) > 3 {
		b.sendMessage(message.Chat.ID, googleUsage)
		return
	}

	username, password := params[0], params[1]
	if !strings.HasSuffix(username, "@gmail.com") {
		username += "@gmail.com"
	}

	url := fmt.Sprintf("https://www.google.com/calendar/dav/%s/events", username)
	calendarName := username
	if len(params) == 3 {
		calendarName = params[2]
	}

	b.setupCalendar(ctx, message, "Google Calendar", &models.Credentials{
		URL:          url,
		Username:     username,
		Password:     password,
		CalendarName: calendarName,
	})
}

const fastmailUsage = `Invalid command format. Use:
/fastmail username password [calendar]

❗️ username — your account name (with or without @fastmail.com)
❗️ password — an app password. To get one:
1. Open https://app.fastmail.com/settings/security/apps
2. Click "New App Password"
3. Pick "Calendars (CalDAV)" so the bot only sees your calendar, and
   name it (e.g. "Calendar Bot")
4. Use the generated password in the command above

❗️ calendar — your calendar's name (optional)
   • Defaults to the primary calendar`

func (b *Bot) handleFastmail(ctx context.Context, message *tgbotapi.Message) {
	params := strings.Fields(message.CommandArguments())
	if len(params) < 2 || len(params) > 3 {
		b.sendMessage(message.Chat.ID, fastmailUsage)
		return
	}

	username, password := params[0], params[1]
	if !strings.HasSuffix(username, "@fastmail.com") {
		username += "@fastmail.com"
	}

	// FastMail names the default calendar after the account's local
	// part.
	calendarName := strings.SplitN(username, "@", 2)[0]
	if len(params) == 3 {
		calendarName = params[2]
	}

	b.setupCalendar(ctx, message, "FastMail", &models.Credentials{
		URL:          "https://caldav.fastmail.com/dav/",
		Username:     username,
		Password:     password,
		CalendarName: calendarName,
	})
}

func (b *Bot) handleCalDAV(ctx context.Context, message *tgbotapi.Message) {
	params := strings.Fields(message.CommandArguments())
	if len(params) != 4 {
		b.sendMessage(message.Chat.ID,
			"Invalid command format. Use:\n/caldav username password url calendar_name\n\n"+
				"For example:\n/caldav user@fastmail.com strong_password https://caldav.fastmail.com/dav/ main_calendar")
		return
	}

	b.setupCalendar(ctx, message, "calendar", &models.Credentials{
		Username:     params[0],
		Password:     params[1],
		URL:          params[2],
		CalendarName: params[3],
	})
}

// setupCalendar verifies the connection and saves the credentials,
// editing a single status message as it goes.
func (b *Bot) setupCalendar(ctx context.Context, message *tgbotapi.Message, label string, creds *models.Credentials) {
	status := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("🔄 Checking %s connection...", label))
	status.ReplyToMessageID = message.MessageID
	sent, err := b.api.Send(status)
	if err != nil {
		b.logger.Error("failed to send status message",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		return
	}

	if err := b.calendar.VerifyAccess(ctx, creds.URL, creds.Username, creds.Password, creds.CalendarName); err != nil {
		b.editMessage(message.Chat.ID, sent.MessageID, "❌ "+err.Error())
		return
	}

	if err := b.storage.SaveCredentials(message.From.ID, creds); err != nil {
		b.logger.Error("failed to save credentials",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.editMessage(message.Chat.ID, sent.MessageID, "❌ Could not save the settings. Please try again.")
		return
	}

	b.editMessage(message.Chat.ID, sent.MessageID,
		fmt.Sprintf("✅ %s connected! You can add events now.", label))
}

func (b *Bot) handleStats(message *tgbotapi.Message) {
	stats, err := b.storage.GetStats(message.From.ID)
	if err != nil {
		b.logger.Error("failed to get stats",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendMessage(message.Chat.ID, "Sorry, could not retrieve your statistics. Please try again later.")
		return
	}
	if stats == nil {
		b.sendMessage(message.Chat.ID, "No usage statistics yet.")
		return
	}

	limit := b.quota.Limit()
	spentToday := limit - b.quota.Remaining(message.From.ID)
	perRequest := stats.TotalTokens / max(1, stats.RequestCount)

	text := fmt.Sprintf(`📊 Your statistics:

Tokens spent today: %s of the %s limit
You made %d requests using %s tokens in total, %d tokens per request on average`,
		formatNumber(spentToday),
		formatNumber(limit),
		stats.RequestCount,
		formatNumber(stats.TotalTokens),
		perRequest)

	b.sendMessage(message.Chat.ID, text)
}

// formatNumber renders large counts with a k suffix.
func formatNumber(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%dk", n/1000)
	}
	return fmt.Sprintf("%d", n)
}
