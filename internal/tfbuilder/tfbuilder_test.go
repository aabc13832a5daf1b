package tfbuilder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-signals/internal/model"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// minuteBars returns n one-minute bars starting at base+offset, closing at
// start, start+1, ...
func minuteBars(offset time.Duration, n int, start float64) []model.Bar {
	out := make([]model.Bar, n)
	for i := range out {
		c := start + float64(i)
		out[i] = model.Bar{
			Time:  base.Add(offset + time.Duration(i)*time.Minute),
			Open:  c - 0.5,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		}
	}
	return out
}

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1m", time.Minute},
		{"15m", 15 * time.Minute},
		{"1h", time.Hour},
		{"4H", 4 * time.Hour},
		{"1d", 24 * time.Hour},
		{" 30s ", 30 * time.Second},
	}
	for _, tt := range tests {
		got, err := ParseTimeframe(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "0m", "-1h", "1.5s", "xd", "abc"} {
		_, err := ParseTimeframe(bad)
		assert.Error(t, err, bad)
	}
}

func TestResample_Hourly(t *testing.T) {
	bars := minuteBars(0, 150, 100) // 2.5 hours
	out := Resample(bars, time.Hour)
	require.Len(t, out, 3)

	first := out[0]
	assert.Equal(t, base, first.Time)
	assert.Equal(t, 99.5, first.Open)
	assert.Equal(t, 160.0, first.High) // close 159 + 1
	assert.Equal(t, 99.0, first.Low)
	assert.Equal(t, 159.0, first.Close)

	assert.Equal(t, base.Add(time.Hour), out[1].Time)
	assert.Equal(t, 219.0, out[1].Close)

	// Forming last bucket holds 30 bars.
	assert.Equal(t, base.Add(2*time.Hour), out[2].Time)
	assert.Equal(t, 249.0, out[2].Close)
	require.NoError(t, model.ValidateBars(out))
}

func TestResample_AlignsToBucketStart(t *testing.T) {
	bars := minuteBars(50*time.Minute, 20, 10) // 00:50 .. 01:09
	out := Resample(bars, time.Hour)
	require.Len(t, out, 2)
	assert.Equal(t, base, out[0].Time)
	assert.Equal(t, base.Add(time.Hour), out[1].Time)
	assert.Equal(t, 9.5, out[0].Open)
	assert.Equal(t, 19.0, out[0].Close)
	assert.Equal(t, 29.0, out[1].Close)
}

func TestResample_Gaps(t *testing.T) {
	bars := []model.Bar{
		{Time: base, Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{Time: base.Add(5 * time.Hour), Open: 3, High: 4, Low: 2.5, Close: 3.5},
	}
	out := Resample(bars, time.Hour)
	require.Len(t, out, 2)
	assert.Equal(t, base.Add(5*time.Hour), out[1].Time)
}

func TestResample_Empty(t *testing.T) {
	assert.Nil(t, Resample(nil, time.Hour))
}

func TestBuilder_StaleAndCallback(t *testing.T) {
	b := New(time.Hour)
	var finalized []model.Bar
	b.OnBar = func(bar model.Bar) { finalized = append(finalized, bar) }

	_, ok := b.Add(model.Bar{Time: base.Add(time.Hour), Open: 1, High: 1, Low: 1, Close: 1})
	assert.False(t, ok)

	_, ok = b.Add(model.Bar{Time: base, Open: 9, High: 9, Low: 9, Close: 9})
	assert.False(t, ok)
	assert.Equal(t, 1, b.Stale())

	forming, ok := b.Forming()
	require.True(t, ok)
	assert.Equal(t, 1.0, forming.Close)

	done, ok := b.Add(model.Bar{Time: base.Add(2 * time.Hour), Open: 2, High: 2, Low: 2, Close: 2})
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Hour), done.Time)

	_, ok = b.Flush()
	require.True(t, ok)
	_, ok = b.Flush()
	assert.False(t, ok)
	assert.Len(t, finalized, 2)
}
