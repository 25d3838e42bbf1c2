// time_test.go
package time

import (
	"testing"
	"time"
)

func TestShortDur(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "0s"},
		{"1 second", 1 * time.Second, "1s"},
		{"1 minute 0 seconds", 1 * time.Minute, "1m"},
		{"1 minute 30 seconds", 1*time.Minute + 30*time.Second, "1m30s"},
		{"1 hour 0 minutes 0 seconds", 1 * time.Hour, "1h"},
		{"1 hour 30 minutes 0 seconds", 1*time.Hour + 30*time.Minute, "1h30m"},
		{"1 hour 0 minutes 30 seconds", 1*time.Hour + 30*time.Second, "1h0m30s"},
		{"500 milliseconds", 500 * time.Millisecond, "500ms"},
		{"1 second 500 milliseconds", 1*time.Second + 500*time.Millisecond, "1.5s"},
		{"negative 1 minute", -1 * time.Minute, "-1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShortDur(tt.duration); got != tt.want {
				t.Errorf("ShortDur(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestParseExpiryDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"empty means never", "", time.Time{}, false},
		{"blank means never", "  ", time.Time{}, false},
		{"valid date", "2030-12-31", time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"wrong order", "31-12-2030", time.Time{}, true},
		{"impossible day", "2030-02-30", time.Time{}, true},
		{"garbage", "tomorrow", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpiryDate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseExpiryDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseExpiryDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
