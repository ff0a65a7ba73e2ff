package domain

import (
	"testing"
	"time"
)

func TestDateTruncatesKeepingWallDate(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	got := Date(time.Date(2024, 6, 11, 0, 30, 0, 0, tokyo))
	want := time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("Date() = %v, want %v", got, want)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2024-06-10", NewDate(2024, time.June, 10), false},
		{" 2024-06-10 ", NewDate(2024, time.June, 10), false},
		{"2024-06-10 00:00:00", NewDate(2024, time.June, 10), false},
		{"2024-06-10T09:00:00+09:00", NewDate(2024, time.June, 10), false},
		{"2024/06/10", time.Time{}, true},
		{"", time.Time{}, true},
		{"2024-13-01", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(NewDate(2024, time.January, 5)); got != "2024-01-05" {
		t.Errorf("FormatDate() = %q", got)
	}
}

func TestOutcomeString(t *testing.T) {
	for o, want := range map[Outcome]string{
		OutcomeOK:     "ok",
		OutcomeEmpty:  "empty",
		OutcomeFailed: "failed",
		Outcome(42):   "unknown",
	} {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", o, got, want)
		}
	}
}
