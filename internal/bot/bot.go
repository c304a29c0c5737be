// Package bot is the Telegram front end of the tracker. It serves the
// tracker commands to chat users and delivers telegram: notifications.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"video_tracker/internal/config"
	"video_tracker/internal/model"
	"video_tracker/internal/tracker"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Service is the set of tracker commands the bot exposes.
type Service interface {
	AddVideo(ctx context.Context, ref string) (*model.VideoSummary, bool, error)
	ListVideos(ctx context.Context) ([]model.VideoSummary, error)
	Video(ctx context.Context, ref string) (*model.VideoSummary, error)
	History(ctx context.Context, videoID string, limit int) ([]model.MetricSample, error)
	Refresh(ctx context.Context, videoID string) (*tracker.RefreshResult, error)
	Subscribe(ctx context.Context, videoID, subscriber string, minViewChange int64) (*model.Subscription, error)
	Unsubscribe(ctx context.Context, videoID, subscriber string) error
	Subscribers(ctx context.Context, videoID string) ([]model.Subscription, error)
	SetNotify(ctx context.Context, videoID, subscriber string, enabled bool) error
	DeleteVideo(ctx context.Context, videoID string) error
	ImportChannel(ctx context.Context, channelID string, limit int) (*tracker.ImportResult, error)
}

// Bot is the Telegram bot that handles user commands and sends notifications.
type Bot struct {
	api telegramAPI
	svc Service
	cfg *config.Config
	log *slog.Logger
}

// New creates a Bot with the given Telegram token, tracker service, and config.
func New(token string, svc Service, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api: api,
		svc: svc,
		cfg: cfg,
		log: log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// Send delivers a notification to the chat whose ID is to. It makes the
// bot usable as the sender of telegram: subscriber addresses.
func (b *Bot) Send(_ context.Context, to, subject, body string) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", to, err)
	}
	msg := tgbotapi.NewMessage(chatID, subject+"\n\n"+body)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

// replyError tells the user what went wrong in terms of the error kind.
func (b *Bot) replyError(chatID int64, err error) {
	switch tracker.KindOf(err) {
	case tracker.KindInvalidInput:
		b.reply(chatID, fmt.Sprintf("Invalid input: %v", err))
	case tracker.KindNotFound:
		b.reply(chatID, fmt.Sprintf("Not found: %v", err))
	case tracker.KindProviderUnavailable:
		b.reply(chatID, "YouTube is unavailable right now, try again later.")
	default:
		b.log.Error("command failed", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, try again later.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "track":
		b.handleTrack(ctx, chatID, args)
	case "list":
		b.handleList(ctx, chatID)
	case "info":
		b.handleInfo(ctx, chatID, args)
	case cmdHistory:
		b.handleHistory(ctx, chatID, args)
	case cmdRefresh:
		b.handleRefresh(ctx, chatID, args)
	case "subscribe":
		b.handleSubscribe(ctx, chatID, args)
	case "unsubscribe":
		b.handleUnsubscribe(ctx, chatID, args)
	case "pause":
		b.handleSetNotify(ctx, chatID, args, false)
	case "resume":
		b.handleSetNotify(ctx, chatID, args, true)
	case "subscribers":
		b.handleSubscribers(ctx, chatID, args)
	case "remove":
		b.handleRemove(ctx, chatID, args)
	case "import":
		b.handleImport(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
