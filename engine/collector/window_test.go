package collector

import (
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestWindowsBetweenTruncatesLast(t *testing.T) {
	got := WindowsBetween(day(1), day(17), 7*24*time.Hour)

	want := []Window{
		{Since: day(1), Until: day(8)},
		{Since: day(8), Until: day(15)},
		{Since: day(15), Until: day(17)},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d windows, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Since.Equal(want[i].Since) || !got[i].Until.Equal(want[i].Until) {
			t.Fatalf("window %d = %s, want %s..%s", i, got[i], want[i].Since, want[i].Until)
		}
	}
}

func TestWindowsBetweenExactFit(t *testing.T) {
	got := WindowsBetween(day(1), day(15), 7*24*time.Hour)

	if len(got) != 2 {
		t.Fatalf("got %d windows, want 2", len(got))
	}
	if !got[1].Until.Equal(day(15)) {
		t.Fatalf("last window ends %s, want %s", got[1].Until, day(15))
	}
}

func TestWindowsBetweenContiguous(t *testing.T) {
	windows := WindowsBetween(day(1), day(20), 3*24*time.Hour)

	for i := 1; i < len(windows); i++ {
		if !windows[i].Since.Equal(windows[i-1].Until) {
			t.Fatalf("gap between window %d and %d: %s vs %s",
				i-1, i, windows[i-1].Until, windows[i].Since)
		}
	}
	if !windows[0].Since.Equal(day(1)) || !windows[len(windows)-1].Until.Equal(day(20)) {
		t.Fatal("windows do not span the full range")
	}
}

func TestWindowsBetweenDegenerate(t *testing.T) {
	if got := WindowsBetween(day(5), day(5), 24*time.Hour); got != nil {
		t.Fatalf("empty range produced %v", got)
	}
	if got := WindowsBetween(day(9), day(5), 24*time.Hour); got != nil {
		t.Fatalf("inverted range produced %v", got)
	}
	if got := WindowsBetween(day(1), day(5), 0); got != nil {
		t.Fatalf("zero size produced %v", got)
	}
}

func TestWindowString(t *testing.T) {
	w := Window{Since: day(1), Until: day(8)}
	if got := w.String(); got != "2024-01-01..2024-01-08" {
		t.Fatalf("got %q", got)
	}
}
