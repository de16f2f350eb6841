package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundKES(t *testing.T) {
	assert.Equal(t, float64(100), RoundKES(99.5))
	assert.Equal(t, float64(99), RoundKES(99.4))
	assert.Equal(t, float64(1500), RoundKES(5000*30/100.0))
}

func TestGenerateBookingNumber(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	bn := GenerateBookingNumber(now)
	assert.True(t, strings.HasPrefix(bn, "BK-20260829-"))
	assert.Len(t, bn, len("BK-20260829-000000"))
}

func TestFormatPhone(t *testing.T) {
	for _, in := range []string{"0712345678", "+254712345678", "254712345678", " 0712345678 "} {
		out, err := FormatPhone(in)
		assert.NoError(t, err, in)
		assert.Equal(t, "254712345678", out)
	}
	for _, in := range []string{"12345", "07123456789", "712345678", ""} {
		_, err := FormatPhone(in)
		assert.Error(t, err, in)
	}
}

func TestWindowsOverlap(t *testing.T) {
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	end := func(t time.Time) *time.Time { return &t }

	assert.True(t, WindowsOverlap(base, end(base.Add(2*time.Hour)), base.Add(time.Hour), end(base.Add(3*time.Hour))))
	assert.False(t, WindowsOverlap(base, end(base.Add(time.Hour)), base.Add(time.Hour), end(base.Add(2*time.Hour))))
	assert.False(t, WindowsOverlap(base, end(base.Add(time.Hour)), base.Add(4*time.Hour), nil))

	// open-ended windows assume the default two hour duration
	assert.True(t, WindowsOverlap(base, nil, base.Add(time.Hour), nil))
	assert.False(t, WindowsOverlap(base, nil, base.Add(2*time.Hour), nil))
}
