package reinvest

import (
	"time"
)

// Window is one fixed-length evaluation window, aligned to the UTC epoch.
type Window struct {
	Start  time.Time
	Length time.Duration
}

// WindowAt returns the window containing t.
func WindowAt(t time.Time, length time.Duration) Window {
	return Window{Start: t.UTC().Truncate(length), Length: length}
}

// EvaluatedWindow is the last complete window before t. A cycle triggered
// at t judges ROI over it, so every trigger inside the same window sees the
// same data and the same key.
func EvaluatedWindow(t time.Time, length time.Duration) Window {
	cur := WindowAt(t, length)
	return Window{Start: cur.Start.Add(-length), Length: length}
}

func (w Window) End() time.Time {
	return w.Start.Add(w.Length)
}

// ID is the idempotency half of (campaign_id, window_id).
func (w Window) ID() string {
	return w.Start.Format(time.RFC3339) + "/" + w.Length.String()
}
