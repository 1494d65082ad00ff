package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToUTC(t *testing.T) {
	east := time.FixedZone("UTC+3", 3*60*60)

	got, err := ToUTC("09:00", east)
	require.NoError(t, err)
	assert.Equal(t, "06:00", got)
}

func TestToLocal(t *testing.T) {
	west := time.FixedZone("UTC-5", -5*60*60)

	got, err := ToLocal("06:00", west)
	require.NoError(t, err)
	assert.Equal(t, "01:00", got)
}

func TestRoundTrip(t *testing.T) {
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("UTC+3", 3*60*60),
		time.FixedZone("UTC-5", -5*60*60),
		time.FixedZone("UTC+5:30", 5*60*60+30*60),
	}

	for _, loc := range zones {
		for _, in := range []string{"00:00", "09:00", "18:30", "23:45"} {
			utc, err := ToUTC(in, loc)
			require.NoError(t, err)
			back, err := ToLocal(utc, loc)
			require.NoError(t, err)
			assert.Equal(t, in, back, "zone %s", loc)
		}
	}
}

func TestCrossesMidnight(t *testing.T) {
	// Only the HH:MM pair is kept; there is no date rollover tracking.
	east := time.FixedZone("UTC+3", 3*60*60)

	got, err := ToUTC("01:00", east)
	require.NoError(t, err)
	assert.Equal(t, "22:00", got)
}

func TestInvalidInput(t *testing.T) {
	for _, in := range []string{"", "9", "25:00", "12:75", "abc", "09:00junk", "09:00:00", "12:30 "} {
		_, err := ToUTC(in, time.UTC)
		assert.Error(t, err, "input %q", in)
		_, err = ToLocal(in, time.UTC)
		assert.Error(t, err, "input %q", in)
	}
}
