package bot

import (
	"fmt"
	"strconv"
	"strings"

	"video_tracker/internal/notify"
	"video_tracker/internal/tracker"
)

// ParseVideoArg extracts the video reference (URL or ID) from a command argument string.
func ParseVideoArg(args string) (string, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", fmt.Errorf("video ID is required")
	}
	return parts[0], nil
}

// ParseHistoryArgs parses arguments for /history.
// Format: <video> [count]
func ParseHistoryArgs(args string) (string, int, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", 0, fmt.Errorf("usage: /history <video> [count]")
	}
	if len(parts) == 1 {
		return parts[0], defaultHistoryRows, nil
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 1 || n > tracker.MaxHistoryLimit {
		return "", 0, fmt.Errorf("count must be between 1 and %d", tracker.MaxHistoryLimit)
	}
	return parts[0], n, nil
}

// ParseSubscribeArgs parses arguments for /subscribe.
// Format: <video> [min_views]
func ParseSubscribeArgs(args string) (string, int64, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", 0, fmt.Errorf("usage: /subscribe <video> [min_views]")
	}
	if len(parts) == 1 {
		return parts[0], 0, nil
	}
	n, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("min_views must be a non-negative number, got %q", parts[1])
	}
	return parts[0], n, nil
}

// ParseImportArgs parses arguments for /import.
// Format: <channel_id> [count]
func ParseImportArgs(args string) (string, int, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", 0, fmt.Errorf("usage: /import <channel_id> [count]")
	}
	if len(parts) == 1 {
		return parts[0], 0, nil
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 1 || n > tracker.MaxImportLimit {
		return "", 0, fmt.Errorf("count must be between 1 and %d", tracker.MaxImportLimit)
	}
	return parts[0], n, nil
}

// chatSubscriber is the subscriber address of a Telegram chat.
func chatSubscriber(chatID int64) string {
	return notify.Address{Kind: notify.KindTelegram, Target: strconv.FormatInt(chatID, 10)}.String()
}
