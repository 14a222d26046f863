package todoist

import (
	"fmt"
	"time"
)

// TimeFormat is the fixed Todoist datetime layout, e.g.
// "Mon 15 Aug 2016 14:30:00 +0000". Go time layouts are locale-independent,
// so parsing and formatting behave the same regardless of process locale.
const TimeFormat = "Mon 02 Jan 2006 15:04:05 -0700"

// palette is the ordered list of project colors the Todoist API addresses by
// index. Order is part of the wire contract and must not change.
var palette = [...]string{
	"#95ef63",
	"#ff8581",
	"#ffc471",
	"#f9ec75",
	"#a8c8e4",
	"#d2b8a3",
	"#e2a8e4",
	"#cccccc",
	"#fb886e",
	"#ffcc00",
	"#74e8d3",
	"#3bd5fb",
	"#dc4fad",
	"#ac193d",
	"#d24726",
	"#82ba00",
	"#03b3b2",
	"#008299",
	"#5db2ff",
	"#0072c6",
	"#000000",
	"#777777",
}

// colorToIndex maps a "#rrggbb" color to its palette index. Colors outside
// the palette map to index 0 (lossy, documented behavior).
func colorToIndex(color string) int {
	for i, c := range palette {
		if c == color {
			return i
		}
	}
	return 0
}

// colorFromIndex maps a palette index back to its "#rrggbb" color. An
// out-of-range index is a wire-contract violation.
func colorFromIndex(index int) (string, error) {
	if index < 0 || index >= len(palette) {
		return "", fmt.Errorf("color index %d outside palette of %d entries", index, len(palette))
	}
	return palette[index], nil
}

// formatTime renders a due date in the Todoist datetime format. A nil time
// maps to the empty string (no due date).
func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(TimeFormat)
}

// parseTime parses a Todoist datetime string. The empty string maps to nil.
func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(TimeFormat, s)
	if err != nil {
		return nil, fmt.Errorf("invalid todoist datetime %q: %w", s, err)
	}
	return &t, nil
}
