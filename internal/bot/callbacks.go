package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdHistory = "history"
	cmdRefresh = "refresh"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return
	}

	action := parts[0]
	videoID := parts[1]

	b.log.Info("callback",
		"action", action,
		"video_id", videoID,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdHistory:
		b.handleHistory(ctx, chatID, videoID)
	case cmdRefresh:
		b.handleRefresh(ctx, chatID, videoID)
	case "delete_confirm":
		b.handleRemove(ctx, chatID, videoID)
	case "delete":
		b.deleteVideo(ctx, chatID, videoID)
	}
}
