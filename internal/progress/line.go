package progress

import (
	"fmt"
	"io"
	"time"
)

// Line renders a single-line progress display, rewriting itself in place.
// Render calls more frequent than the throttle interval are dropped.
type Line struct {
	out      io.Writer
	label    string
	lastDraw time.Time
	throttle time.Duration
	now      func() time.Time
}

// NewLine creates a progress line writing to out.
func NewLine(out io.Writer, label string) *Line {
	return &Line{
		out:      out,
		label:    label,
		throttle: 100 * time.Millisecond,
		now:      time.Now,
	}
}

// Render draws the stats if the throttle interval has elapsed.
func (l *Line) Render(s Stats) {
	now := l.now()
	if now.Sub(l.lastDraw) < l.throttle {
		return
	}
	l.lastDraw = now
	fmt.Fprintf(l.out, "\r%s %5.1f%%  %s / %s  %s/s",
		l.label, s.Percent,
		formatBytes(s.BytesDone), formatBytes(s.Total),
		formatBytes(int64(s.RateBps)))
}

// Finish draws the final state and terminates the line.
func (l *Line) Finish(s Stats) {
	fmt.Fprintf(l.out, "\r%s 100.0%%  %s / %s\n",
		l.label, formatBytes(s.Total), formatBytes(s.Total))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
