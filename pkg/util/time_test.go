package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "time/tzdata"
)

func TestParseDDMMYY(t *testing.T) {
	date, err := ParseDDMMYY("010316", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, time.March, 1, 0, 0, 0, 0, time.UTC), date)

	for _, bad := range []string{"", "0103", "01031a", "320116", "290215", "011316"} {
		_, err := ParseDDMMYY(bad, time.UTC)
		assert.Error(t, err, bad)
	}
}

func TestAddTimeToDate(t *testing.T) {
	date := time.Date(2016, time.March, 1, 0, 0, 0, 0, time.UTC)
	clock := time.Date(0, time.January, 1, 14, 5, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2016, time.March, 1, 14, 5, 0, 0, time.UTC), AddTimeToDate(date, clock))
}

func TestEnvironmentOrDefault(t *testing.T) {
	env := map[string]string{"FAREHARVEST_A": "set", "FAREHARVEST_B": ""}

	assert.Equal(t, "set", EnvironmentOrDefault(env, "FAREHARVEST_A", "x"))
	assert.Equal(t, "x", EnvironmentOrDefault(env, "FAREHARVEST_B", "x"))
	assert.Equal(t, "x", EnvironmentOrDefault(env, "FAREHARVEST_C", "x"))
}

func TestAddTimeToDateKeepsSkippedClockTimes(t *testing.T) {
	// 01:30 does not exist in Europe/London on 27 March 2016
	date, err := ParseDDMMYY("270316", time.UTC)
	require.NoError(t, err)
	clock, err := time.Parse("15:04", "01:30")
	require.NoError(t, err)

	departure := AddTimeToDate(date, clock)
	assert.Equal(t, 1, departure.Hour())
	assert.Equal(t, "2016-03-27 01:30:00", departure.Format("2006-01-02 15:04:05"))
}

func TestWallClock(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	previous := time.Local
	time.Local = london
	defer func() { time.Local = previous }()

	instant := time.Date(2016, time.June, 1, 8, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2016, time.June, 1, 9, 15, 0, 0, time.UTC), WallClock(instant))
}
