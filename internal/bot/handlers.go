package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Video Tracker Bot!

Track YouTube videos and get notified when their numbers grow.

Quick start:
1. /track <url> - start tracking a video
2. /subscribe <video> - get updates in this chat
3. /history <video> - see how it has been doing

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Videos:
/track <url> - start tracking a video
/list - show tracked videos
/info <video> - video details
/history <video> [count] - recent samples
/refresh <video> - fetch the numbers now
/remove <video> - stop tracking and delete history
/import <channel_id> [count] - track the newest videos of a channel

Notifications:
/subscribe <video> [min_views] - notify this chat on growth
/unsubscribe <video> - stop notifications
/pause <video> - pause notifications
/resume <video> - resume notifications
/subscribers <video> - list subscribers

<video> is a YouTube URL or an 11 character video ID.`)
}

func (b *Bot) handleTrack(ctx context.Context, chatID int64, args string) {
	ref, err := ParseVideoArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /track <url>")
		return
	}

	v, created, err := b.svc.AddVideo(ctx, ref)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	if !created {
		b.reply(chatID, fmt.Sprintf("%s \"%s\" is already tracked.", v.VideoID, v.Title))
		return
	}
	b.reply(chatID, fmt.Sprintf("Now tracking %s \"%s\" by %s.\nUse /subscribe %s to get updates here.",
		v.VideoID, v.Title, v.ChannelName, v.VideoID))
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	videos, err := b.svc.ListVideos(ctx)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, FormatVideoList(videos))
}

func (b *Bot) handleInfo(ctx context.Context, chatID int64, args string) {
	ref, err := ParseVideoArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /info <video>")
		return
	}

	v, err := b.svc.Video(ctx, ref)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	subs, err := b.svc.Subscribers(ctx, v.VideoID)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatVideoInfo(v, subs))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("History", cmdHistory+":"+v.VideoID),
			tgbotapi.NewInlineKeyboardButtonData("Refresh", cmdRefresh+":"+v.VideoID),
			tgbotapi.NewInlineKeyboardButtonData("Remove", "delete_confirm:"+v.VideoID),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send video info", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64, args string) {
	ref, limit, err := ParseHistoryArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	samples, err := b.svc.History(ctx, ref, limit)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, FormatHistory(ref, samples))
}

func (b *Bot) handleRefresh(ctx context.Context, chatID int64, args string) {
	ref, err := ParseVideoArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /refresh <video>")
		return
	}

	res, err := b.svc.Refresh(ctx, ref)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, FormatRefresh(res.Sample.VideoID, res))
}

func (b *Bot) handleSubscribe(ctx context.Context, chatID int64, args string) {
	ref, minViews, err := ParseSubscribeArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	sub, err := b.svc.Subscribe(ctx, ref, chatSubscriber(chatID), minViews)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	text := fmt.Sprintf("Subscribed to %s.", sub.VideoID)
	if sub.MinViewChange > 0 {
		text += fmt.Sprintf(" You will be notified once the view gain reaches %d.", sub.MinViewChange)
	}
	b.reply(chatID, text)
}

func (b *Bot) handleUnsubscribe(ctx context.Context, chatID int64, args string) {
	ref, err := ParseVideoArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /unsubscribe <video>")
		return
	}

	if err := b.svc.Unsubscribe(ctx, ref, chatSubscriber(chatID)); err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, fmt.Sprintf("Unsubscribed from %s.", ref))
}

func (b *Bot) handleSetNotify(ctx context.Context, chatID int64, args string, enabled bool) {
	verb, done := "pause", "paused"
	if enabled {
		verb, done = "resume", "resumed"
	}

	ref, err := ParseVideoArg(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /%s <video>", verb))
		return
	}

	if err := b.svc.SetNotify(ctx, ref, chatSubscriber(chatID), enabled); err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, fmt.Sprintf("Notifications for %s %s.", ref, done))
}

func (b *Bot) handleSubscribers(ctx context.Context, chatID int64, args string) {
	ref, err := ParseVideoArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /subscribers <video>")
		return
	}

	subs, err := b.svc.Subscribers(ctx, ref)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, FormatSubscribers(ref, subs))
}

// handleRemove asks for confirmation; the deletion itself runs from the
// "delete" callback.
func (b *Bot) handleRemove(ctx context.Context, chatID int64, args string) {
	ref, err := ParseVideoArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /remove <video>")
		return
	}

	v, err := b.svc.Video(ctx, ref)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Delete %s \"%s\" with its history? This cannot be undone.", v.VideoID, v.Title))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, delete", "delete:"+v.VideoID),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "noop:0"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send delete confirmation", "error", err)
	}
}

func (b *Bot) deleteVideo(ctx context.Context, chatID int64, videoID string) {
	if err := b.svc.DeleteVideo(ctx, videoID); err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, fmt.Sprintf("%s deleted.", videoID))
}

func (b *Bot) handleImport(ctx context.Context, chatID int64, args string) {
	channelID, limit, err := ParseImportArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	res, err := b.svc.ImportChannel(ctx, channelID, limit)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, FormatImport(channelID, res))
}
