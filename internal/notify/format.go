package notify

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"video_tracker/internal/model"
)

// FormatUpdate renders the subject and plain-text body of an update message.
// Deltas keep the "+" prefix even when negative.
func FormatUpdate(title string, m model.Metrics, d model.Delta) (subject, body string) {
	subject = fmt.Sprintf("%s - New Updates (Views: +%s)", title, humanize.Comma(d.Views))

	var b strings.Builder
	fmt.Fprintf(&b, "Updates for %q\n\n", title)
	writeLine(&b, "Views", m.ViewCount, d.Views)
	writeLine(&b, "Likes", m.LikeCount, d.Likes)
	writeLine(&b, "Comments", m.CommentCount, d.Comments)
	return subject, b.String()
}

func writeLine(b *strings.Builder, label string, value, delta int64) {
	fmt.Fprintf(b, "%s: %s (+%s)\n", label, humanize.Comma(value), humanize.Comma(delta))
}
