package sifen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsuncionOffset(t *testing.T) {
	_, offset := NowAsuncion().Zone()
	assert.Equal(t, -3*60*60, offset)
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("2026-01-15T10:30:00")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15T10:30:00", FormatDateTime(got))
	_, offset := got.Zone()
	assert.Equal(t, -3*60*60, offset)
}

func TestParseRejectsImpossibleDates(t *testing.T) {
	for _, s := range []string{
		"2023-02-29", // 2023 is not a leap year
		"2100-02-29", // centuries not divisible by 400 are not leap years
		"2026-13-01",
		"2026-04-31",
	} {
		_, err := ParseDate(s)
		assert.Error(t, err, "date %s", s)
	}

	leap, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.February, leap.Month())
	assert.Equal(t, 29, leap.Day())
}
