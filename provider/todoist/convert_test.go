package todoist

import (
	"testing"
	"time"
)

func TestParseTimeRoundTrip(t *testing.T) {
	formatted := "Mon 15 Aug 2016 14:30:00 +0000"

	parsed, err := parseTime(formatted)
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}
	if parsed == nil {
		t.Fatal("parseTime returned nil for a non-empty timestamp")
	}

	want := time.Date(2016, time.August, 15, 14, 30, 0, 0, time.UTC)
	if !parsed.Equal(want) {
		t.Errorf("parsed %v, want %v", parsed, want)
	}
	if got := formatTime(parsed); got != formatted {
		t.Errorf("formatTime = %q, want %q", got, formatted)
	}
}

func TestParseTimeEmpty(t *testing.T) {
	parsed, err := parseTime("")
	if err != nil {
		t.Fatalf("parseTime(\"\") failed: %v", err)
	}
	if parsed != nil {
		t.Errorf("parseTime(\"\") = %v, want nil", parsed)
	}
	if got := formatTime(nil); got != "" {
		t.Errorf("formatTime(nil) = %q, want empty", got)
	}
}

func TestParseTimeInvalid(t *testing.T) {
	if _, err := parseTime("2016-08-15T14:30:00Z"); err == nil {
		t.Error("expected error for RFC3339 input, got nil")
	}
}

func TestColorToIndex(t *testing.T) {
	if got := colorToIndex(palette[0]); got != 0 {
		t.Errorf("colorToIndex(palette[0]) = %d, want 0", got)
	}
	if got := colorToIndex(palette[21]); got != 21 {
		t.Errorf("colorToIndex(palette[21]) = %d, want 21", got)
	}
	// Unknown colors fall back to the first palette entry
	if got := colorToIndex("#123456"); got != 0 {
		t.Errorf("colorToIndex(unknown) = %d, want 0", got)
	}
	if got := colorToIndex(""); got != 0 {
		t.Errorf("colorToIndex(\"\") = %d, want 0", got)
	}
}

func TestColorFromIndex(t *testing.T) {
	color, err := colorFromIndex(0)
	if err != nil {
		t.Fatalf("colorFromIndex(0) failed: %v", err)
	}
	if color != palette[0] {
		t.Errorf("colorFromIndex(0) = %q, want %q", color, palette[0])
	}

	if _, err := colorFromIndex(len(palette)); err == nil {
		t.Error("expected error for out-of-range index, got nil")
	}
	if _, err := colorFromIndex(-1); err == nil {
		t.Error("expected error for negative index, got nil")
	}
}
