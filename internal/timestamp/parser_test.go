package timestamp

import (
	"testing"
	"time"
)

func TestParseBound_Absolute(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"RFC3339", "2024-01-15T10:30:45Z", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{"RFC3339Nano", "2024-01-15T10:30:45.123456789Z", time.Date(2024, 1, 15, 10, 30, 45, 123456789, time.UTC)},
		{"RFC3339 offset", "2024-01-15T10:30:45+05:00", time.Date(2024, 1, 15, 5, 30, 45, 0, time.UTC)},
		{"space separated", "2024-01-15 10:30:45", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{"millis", "2024-01-15 10:30:45.123", time.Date(2024, 1, 15, 10, 30, 45, 123000000, time.UTC)},
		{"minutes", "2024-01-15 10:30", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"date only", "2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"now", "now", now},
		{"empty", "", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBound(tt.input, now)
			if err != nil {
				t.Fatalf("ParseBound(%q): %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseBound(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseBound_Relative(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	got, err := ParseBound("-15m", now)
	if err != nil {
		t.Fatalf("ParseBound: %v", err)
	}
	if want := now.Add(-15 * time.Minute); !got.Equal(want) {
		t.Errorf("ParseBound(-15m) = %v, want %v", got, want)
	}
}

func TestParseBound_Invalid(t *testing.T) {
	for _, input := range []string{"yesterday", "-15 parsecs", "2024-13-45"} {
		if _, err := ParseBound(input, time.Now()); err == nil {
			t.Errorf("ParseBound(%q) expected error", input)
		}
	}
}
