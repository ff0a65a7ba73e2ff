package util

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, targetAttempts, attempts)
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	require.Error(t, err)
	assert.Equal(t, maxAttempts, attempts)
}

func TestRetryPermanentStops(t *testing.T) {
	sentinel := errors.New("bad request")
	attempts := 0

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		return Permanent(sentinel)
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, sentinel)
}

func TestPacerSpacesCalls(t *testing.T) {
	clock := time.Date(2024, 6, 11, 9, 0, 0, 0, time.UTC)
	var slept []time.Duration

	p := NewPacer(time.Second)
	p.now = func() time.Time { return clock }
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock = clock.Add(d)
		return nil
	}

	ctx := context.Background()
	require.NoError(t, p.Wait(ctx)) // first call: no wait
	clock = clock.Add(700 * time.Millisecond)
	p.Done()
	clock = clock.Add(300 * time.Millisecond)
	require.NoError(t, p.Wait(ctx)) // 700ms idle remaining
	clock = clock.Add(5 * time.Second)
	p.Done()
	require.NoError(t, p.Wait(ctx)) // a slow call still earns the full interval
	p.Done()
	clock = clock.Add(2 * time.Second)
	require.NoError(t, p.Wait(ctx)) // interval already elapsed

	assert.Equal(t, []time.Duration{700 * time.Millisecond, time.Second}, slept)
}

func TestPacerCancelled(t *testing.T) {
	p := NewPacer(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Wait(ctx))

	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestTradingCalendarToday(t *testing.T) {
	// 2024-06-10 23:30 UTC is already 2024-06-11 in Tokyo.
	cal, err := NewTradingCalendar("Asia/Tokyo")
	require.NoError(t, err)
	cal.now = func() time.Time { return time.Date(2024, 6, 10, 23, 30, 0, 0, time.UTC) }

	assert.Equal(t, time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC), cal.Today())
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown", "ticker", "7203")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "ticker=7203")

	buf.Reset()
	NewLoggerTo(&buf, "debug", "json").Debug("x")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
