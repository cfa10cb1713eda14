package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"calbot/internal/batcher"
	"calbot/internal/calendar"
	"calbot/internal/extractor"
	"calbot/internal/handler"
	"calbot/internal/models"
	"calbot/internal/pending"
	"calbot/internal/quota"
	"calbot/internal/storage"
)

// Options tunes the message batching and image handling.
type Options struct {
	Debounce      time.Duration
	MaxBatchItems int
	// ImageDir is where downloaded photos are staged; defaults to the
	// system temp directory.
	ImageDir string
}

type Bot struct {
	api      *tgbotapi.BotAPI
	batcher  *batcher.Batcher
	handler  *handler.Handler
	dispatch *dispatcher
	storage  storage.Storage
	calendar calendar.Provider
	quota    *quota.Tracker
	logger   *zap.Logger
	imageDir string
}

func New(token string, opts Options, store storage.Storage, ext extractor.Extractor, cal calendar.Provider, tracker *quota.Tracker, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	imageDir := opts.ImageDir
	if imageDir == "" {
		imageDir = os.TempDir()
	}

	b := &Bot{
		api:      api,
		storage:  store,
		calendar: cal,
		quota:    tracker,
		logger:   logger,
		imageDir: imageDir,
	}
	b.handler = handler.New(b, ext, cal, store, tracker, pending.NewRegistry(), logger)
	b.batcher = batcher.New(opts.Debounce, opts.MaxBatchItems, b.handler, logger)
	b.dispatch = newDispatcher(logger)

	return b, nil
}

func (b *Bot) Start() error {
	if err := b.advertiseCommands(); err != nil {
		b.logger.Warn("failed to register bot commands", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	// Updates from the same user are handled in arrival order: a photo
	// download must not let a later fragment reach the batcher first.
	for update := range updates {
		switch {
		case update.Message != nil:
			msg := update.Message
			if msg.From == nil {
				continue
			}
			b.dispatch.enqueue(msg.From.ID, func() { b.handleMessage(msg) })
		case update.CallbackQuery != nil:
			cq := update.CallbackQuery
			if cq.From == nil {
				continue
			}
			b.dispatch.enqueue(cq.From.ID, func() { b.handleCallback(cq) })
		}
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(context.Background(), message)
		return
	}

	in := models.Inbound{
		ChatID:        message.Chat.ID,
		MessageID:     message.MessageID,
		From:          models.Sender{ID: message.From.ID, Name: displayName(message.From)},
		ForwardedName: message.ForwardSenderName,
		Text:          message.Text,
	}
	if message.Caption != "" {
		in.Text = message.Caption
	}
	if message.ForwardFrom != nil {
		in.ForwardedFrom = &models.Sender{
			ID:   message.ForwardFrom.ID,
			Name: displayName(message.ForwardFrom),
		}
	}

	if len(message.Photo) > 0 {
		path, err := b.downloadPhoto(message)
		if err != nil {
			b.logger.Error("failed to download photo",
				zap.Error(err),
				zap.Int64("user_id", message.From.ID))
		} else {
			in.ImagePath = path
		}
	}

	b.batcher.Submit(in)
}

func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}

	b.handler.Confirm(context.Background(), handler.Callback{
		ID:        cq.ID,
		UserID:    cq.From.ID,
		ChatID:    cq.Message.Chat.ID,
		MessageID: cq.Message.MessageID,
		Action:    cq.Data,
	})
}

// downloadPhoto fetches the largest rendition of the message's photo
// into the staging directory. The batcher takes ownership of the file.
func (b *Bot) downloadPhoto(message *tgbotapi.Message) (string, error) {
	photo := message.Photo[len(message.Photo)-1]

	fileURL, err := b.api.GetFileDirectURL(photo.FileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file URL: %w", err)
	}

	resp, err := http.Get(fileURL)
	if err != nil {
		return "", fmt.Errorf("failed to download photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download photo: status %s", resp.Status)
	}

	path := filepath.Join(b.imageDir, uuid.New().String()+".jpg")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return path, nil
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		name = u.UserName
	}
	return name
}

// Messenger implementation used by the conversation handler.

func (b *Bot) Reply(chatID int64, replyTo int, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ReplyWithConfirm(chatID int64, replyTo int, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Add to calendar", handler.ActionAdd),
		),
	)

	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (b *Bot) MarkConfirmed(chatID int64, messageID int) error {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Added", handler.ActionAdded),
		),
	)
	_, err := b.api.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, markup))
	return err
}

func (b *Bot) AnswerCallback(callbackID, text string) error {
	_, err := b.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

func (b *Bot) SendTyping(chatID int64) error {
	_, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) editMessage(chatID int64, messageID int, text string) {
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.logger.Error("failed to edit message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
