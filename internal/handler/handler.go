package handler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"calbot/internal/batcher"
	"calbot/internal/calendar"
	"calbot/internal/extractor"
	"calbot/internal/models"
	"calbot/internal/pending"
	"calbot/internal/quota"
	"calbot/internal/storage"
)

// Messenger is the outbound chat surface the handler needs: plain
// replies, previews carrying a confirm button, markup edits, callback
// answers and the typing action.
type Messenger interface {
	Reply(chatID int64, replyTo int, text string) error
	// ReplyWithConfirm sends a preview with a confirm button and
	// returns the sent message's id.
	ReplyWithConfirm(chatID int64, replyTo int, text string) (int, error)
	// MarkConfirmed swaps the preview's button for a disabled
	// "already added" terminal state.
	MarkConfirmed(chatID int64, messageID int) error
	AnswerCallback(callbackID, text string) error
	SendTyping(chatID int64) error
}

// Callback is a confirm-button tap routed from the chat transport.
type Callback struct {
	ID        string // transport callback id, answered exactly once
	UserID    int64
	ChatID    int64
	MessageID int // the preview message the button belongs to
	Action    string
}

const (
	ActionAdd   = "add"
	ActionAdded = "added"

	// Telegram shows the typing status for about five seconds, so the
	// action is re-sent every four.
	typingInterval = 4 * time.Second
)

// Handler turns a flushed batch into a calendar outcome: quota and
// credential gates, the extraction call, the confirmation preview and
// the final commit.
type Handler struct {
	messenger Messenger
	extractor extractor.Extractor
	calendar  calendar.Provider
	store     storage.Storage
	quota     *quota.Tracker
	registry  *pending.Registry
	logger    *zap.Logger
}

func New(messenger Messenger, ext extractor.Extractor, cal calendar.Provider, store storage.Storage, tracker *quota.Tracker, registry *pending.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		messenger: messenger,
		extractor: ext,
		calendar:  cal,
		store:     store,
		quota:     tracker,
		registry:  registry,
		logger:    logger,
	}
}

// HandleBatch adapts a flushed batch to Process.
func (h *Handler) HandleBatch(f batcher.Flush) error {
	return h.Process(context.Background(), f)
}

// Process runs one extraction round. The image file, when present, is
// deleted as soon as the extraction call returns and never referenced
// afterwards; precondition early-returns delete it too.
func (h *Handler) Process(ctx context.Context, f batcher.Flush) error {
	anchor := f.Anchor
	imagePath := f.ImagePath
	userID := anchor.From.ID

	if !h.store.HasCredentials(userID) {
		h.removeImage(imagePath)
		h.reply(anchor, "You need to connect a calendar first. Use /caldav, /google or /fastmail.")
		return nil
	}

	if !h.quota.HasRemaining(userID) {
		h.removeImage(imagePath)
		h.reply(anchor, fmt.Sprintf("Daily token limit reached (%d). Try again tomorrow.", h.quota.Limit()))
		return nil
	}

	h.logger.Info("processing batch",
		zap.Int64("user_id", userID),
		zap.Int64("owner_id", f.OwnerID),
		zap.Int("text_len", len(f.Text)),
		zap.Bool("has_image", imagePath != ""))

	result, err := h.extractWithTyping(ctx, anchor.ChatID, f.Text, imagePath)

	h.removeImage(imagePath)

	if err != nil {
		h.logger.Error("extraction failed", zap.Error(err), zap.Int64("user_id", userID))
		h.reply(anchor, "Internal error while processing your message. Please try again later.")
		return err
	}

	h.quota.AddConsumed(userID, result.TokensUsed)
	if err := h.store.AddUsage(userID, result.TokensUsed); err != nil {
		h.logger.Error("failed to record usage", zap.Error(err), zap.Int64("user_id", userID))
	}

	if !result.OK {
		reason := result.FailureReason
		if reason == "" {
			reason = "Unknown error"
		}
		h.reply(anchor, "❌ "+reason)
		return nil
	}

	event := &models.Event{
		Title:       result.Title,
		StartTime:   result.StartTime,
		EndTime:     result.EndTime,
		Description: result.Description,
		Location:    result.Location,
		TokensUsed:  result.TokensUsed,
	}

	previewID, err := h.messenger.ReplyWithConfirm(anchor.ChatID, anchor.MessageID,
		"Please check the event details:\n\n"+FormatEvent(event))
	if err != nil {
		h.logger.Error("failed to send preview", zap.Error(err), zap.Int64("user_id", userID))
		return err
	}

	h.registry.Put(previewID, event)
	return nil
}

// extractWithTyping runs the extraction call with a typing indicator
// repeating alongside it. The indicator goroutine is cancelled and
// drained on every exit path so no stray action is sent after the
// call returns.
func (h *Handler) extractWithTyping(ctx context.Context, chatID int64, text, imagePath string) (*extractor.Result, error) {
	typingCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.typingLoop(typingCtx, chatID)
	}()
	defer func() {
		cancel()
		<-done
	}()

	return h.extractor.Extract(ctx, text, imagePath)
}

func (h *Handler) typingLoop(ctx context.Context, chatID int64) {
	ticker := time.NewTicker(typingInterval)
	defer ticker.Stop()
	for {
		if err := h.messenger.SendTyping(chatID); err != nil {
			h.logger.Warn("failed to send typing action",
				zap.Error(err),
				zap.Int64("chat_id", chatID))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Confirm handles a tap on a preview's button. The pending event is
// consumed from the registry before the commit, so a duplicate tap can
// never trigger a second commit. A failed commit is not re-queued; the
// user resends the original description to retry.
func (h *Handler) Confirm(ctx context.Context, cb Callback) {
	switch cb.Action {
	case ActionAdded:
		h.answer(cb.ID, "This event is already in the calendar")
		return
	case ActionAdd:
	default:
		h.answer(cb.ID, "Unknown action")
		return
	}

	event, ok := h.registry.Take(cb.MessageID)
	if !ok {
		// Most commonly a duplicate tap racing the markup edit.
		h.answer(cb.ID, "Could not find event information")
		return
	}

	creds, err := h.store.GetCredentials(cb.UserID)
	if err != nil || creds == nil {
		h.logger.Error("failed to load credentials for confirm",
			zap.Error(err),
			zap.Int64("user_id", cb.UserID))
		h.answer(cb.ID, "❌ Error")
		h.replyAt(cb.ChatID, cb.MessageID, "❌ Calendar connection settings not found. Use /caldav to set them up.")
		return
	}

	if err := h.calendar.AddEvent(ctx, creds, event); err != nil {
		h.logger.Error("failed to add event",
			zap.Error(err),
			zap.Int64("user_id", cb.UserID),
			zap.String("title", event.Title))
		h.answer(cb.ID, "❌ Error")
		h.replyAt(cb.ChatID, cb.MessageID, "❌ "+err.Error())
		return
	}

	h.answer(cb.ID, "✅ Event added to the calendar")
	if err := h.messenger.MarkConfirmed(cb.ChatID, cb.MessageID); err != nil {
		h.logger.Warn("failed to update preview markup",
			zap.Error(err),
			zap.Int64("chat_id", cb.ChatID))
	}

	h.logger.Info("event committed",
		zap.Int64("user_id", cb.UserID),
		zap.String("title", event.Title))
}

// FormatEvent renders the human-readable preview, omitting empty
// fields.
func FormatEvent(event *models.Event) string {
	var parts []string
	if event.Title != "" {
		parts = append(parts, "📌 "+event.Title)
	}
	if event.StartTime != "" {
		parts = append(parts, "🕒 Start: "+formatDateTime(event.StartTime))
	}
	if event.EndTime != "" {
		parts = append(parts, "🕒 End: "+formatDateTime(event.EndTime))
	}
	if event.Location != "" {
		parts = append(parts, "📍 "+event.Location)
	}
	if event.Description != "" {
		parts = append(parts, "📝 "+event.Description)
	}
	return strings.Join(parts, "\n")
}

func formatDateTime(iso string) string {
	t, err := time.Parse("2006-01-02T15:04:05", iso)
	if err != nil {
		return iso
	}
	return t.Format("02.01.2006 15:04")
}

func (h *Handler) removeImage(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		h.logger.Warn("failed to remove image", zap.Error(err), zap.String("path", path))
	}
}

func (h *Handler) reply(anchor models.Inbound, text string) {
	h.replyAt(anchor.ChatID, anchor.MessageID, text)
}

func (h *Handler) replyAt(chatID int64, replyTo int, text string) {
	if err := h.messenger.Reply(chatID, replyTo, text); err != nil {
		h.logger.Error("failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (h *Handler) answer(callbackID, text string) {
	if err := h.messenger.AnswerCallback(callbackID, text); err != nil {
		h.logger.Error("failed to answer callback",
			zap.Error(err),
			zap.String("callback_id", callbackID))
	}
}
