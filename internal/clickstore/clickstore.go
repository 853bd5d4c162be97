// Package clickstore records per-link click counts, per spec.md §4.4.
package clickstore

import (
	"context"
	"time"
)

// ClickCounter is the post-increment state of a single link's click count.
type ClickCounter struct {
	LinkID    string
	Count     int64
	CreatedAt time.Time
}

// Recorder atomically increments the click count for a link.
type Recorder interface {
	// IncrementClick upserts the click counter document for linkID,
	// incrementing count by one and setting created_at only on first
	// insert, and returns the post-increment document.
	IncrementClick(ctx context.Context, linkID string) (c *ClickCounter, err error)
}

// EmptyRecorder is a [Recorder] implementation that does nothing, ported
// from the teacher's billstat.EmptyRecorder, used for degraded-mode startup
// (spec.md §7, PermanentConfig).
type EmptyRecorder struct{}

// type check
var _ Recorder = EmptyRecorder{}

// IncrementClick implements the [Recorder] interface for EmptyRecorder.
func (EmptyRecorder) IncrementClick(_ context.Context, linkID string) (c *ClickCounter, err error) {
	return &ClickCounter{LinkID: linkID, Count: 0}, nil
}
