package model

// Delta holds the signed change of each metric between two snapshots.
type Delta struct {
	Views    int64
	Likes    int64
	Comments int64
}

// Diff compares cur against prev. A nil prev is a zero baseline, so the
// first sample of a video yields its current values as the delta.
// Counts may go down after provider corrections, so deltas can be negative.
func Diff(prev *MetricSample, cur Metrics) Delta {
	var base MetricSample
	if prev != nil {
		base = *prev
	}
	return Delta{
		Views:    cur.ViewCount - base.ViewCount,
		Likes:    cur.LikeCount - base.LikeCount,
		Comments: cur.CommentCount - base.CommentCount,
	}
}

// AnyIncrease reports whether at least one metric strictly increased.
func (d Delta) AnyIncrease() bool {
	return d.Views > 0 || d.Likes > 0 || d.Comments > 0
}
