package youtube

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrInvalidVideoRef is returned for references that contain no usable video ID.
	ErrInvalidVideoRef = errors.New("invalid youtube video reference")
	// ErrInvalidChannelRef is returned for malformed channel IDs.
	ErrInvalidChannelRef = errors.New("invalid youtube channel id")
)

var (
	videoIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)
	channelIDPattern = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)
)

// ExtractVideoID returns the video ID from a watch, youtu.be, embed, shorts or
// live URL, or from a bare ID.
func ExtractVideoID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty reference: %w", ErrInvalidVideoRef)
	}
	if videoIDPattern.MatchString(s) {
		return s, nil
	}

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%q: %w", raw, ErrInvalidVideoRef)
	}

	var id string
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch host {
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case len(segments) >= 2 && isPathPrefix(segments[0]):
			id = segments[1]
		}
	case "youtu.be":
		id = segments[0]
	}

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%q: %w", raw, ErrInvalidVideoRef)
	}
	return id, nil
}

func isPathPrefix(seg string) bool {
	switch seg {
	case "embed", "shorts", "live", "v":
		return true
	}
	return false
}

// ValidateChannelID checks that id looks like a YouTube channel ID (UC...).
func ValidateChannelID(id string) error {
	if !channelIDPattern.MatchString(id) {
		return fmt.Errorf("%q: %w", id, ErrInvalidChannelRef)
	}
	return nil
}
