package collector

import "time"

// Window is a half-open [Since, Until) interval bounding one search
// sub-query during a historical backfill.
type Window struct {
	Since time.Time
	Until time.Time
}

func (w Window) String() string {
	return w.Since.Format("2006-01-02") + ".." + w.Until.Format("2006-01-02")
}

// WindowsBetween splits [start, end) into contiguous windows of the
// given size. The last window is truncated at end so the range is never
// overshot. Degenerate input (non-positive size, start at or past end)
// yields nil.
func WindowsBetween(start, end time.Time, size time.Duration) []Window {
	if size <= 0 || !start.Before(end) {
		return nil
	}
	var out []Window
	for cur := start; cur.Before(end); {
		next := cur.Add(size)
		if next.After(end) {
			next = end
		}
		out = append(out, Window{Since: cur, Until: next})
		cur = next
	}
	return out
}
