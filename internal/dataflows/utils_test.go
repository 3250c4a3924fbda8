package dataflows

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/traditionalchinese"
)

func TestParseNumber(t *testing.T) {
	assert.Equal(t, 1234.5, ParseNumber("1,234.5"))
	assert.Equal(t, 0.85, ParseNumber(" 0.85 "))
	assert.Equal(t, 0.0, ParseNumber("0.00"))
	for _, s := range []string{"", "-", "--", "N/A"} {
		assert.True(t, math.IsNaN(ParseNumber(s)), s)
	}
}

func TestDecodeTWSEText(t *testing.T) {
	text, err := DecodeTWSEText([]byte("\ufeff股價淨值比"))
	require.NoError(t, err)
	assert.Equal(t, "股價淨值比", text)

	big5, err := traditionalchinese.Big5.NewEncoder().Bytes([]byte("股價淨值比"))
	require.NoError(t, err)
	text, err = DecodeTWSEText(big5)
	require.NoError(t, err)
	assert.Equal(t, "股價淨值比", text)
}

func TestWithRetry(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	attempts := 0
	err := WithRetry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("busy")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = WithRetry(context.Background(), cfg, func() error {
		attempts++
		return errors.New("down")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, 3, attempts)
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}
