package ctdf

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintMatchesStoredFormat(t *testing.T) {
	departs := time.Date(2016, 3, 1, 12, 0, 0, 0, time.UTC)
	arrives := time.Date(2016, 3, 1, 16, 49, 0, 0, time.UTC)

	assert.Equal(t, "b62010402d4da8d7cc7b6c9fd4ecb85cf08e8888", Fingerprint("PAD", "SAU", 2, departs, arrives))
}

func TestFingerprintStability(t *testing.T) {
	departs := time.Date(2016, 3, 1, 12, 0, 0, 0, time.UTC)
	arrives := time.Date(2016, 3, 1, 16, 49, 0, 0, time.UTC)

	base := Fingerprint("PAD", "SAU", 2, departs, arrives)
	require.Len(t, base, 40)
	assert.Equal(t, base, Fingerprint("PAD", "SAU", 2, departs, arrives))

	variants := map[string]string{
		"origin":      Fingerprint("PNZ", "SAU", 2, departs, arrives),
		"destination": Fingerprint("PAD", "EXD", 2, departs, arrives),
		"changes":     Fingerprint("PAD", "SAU", 1, departs, arrives),
		"departure":   Fingerprint("PAD", "SAU", 2, departs.Add(time.Minute), arrives),
		"arrival":     Fingerprint("PAD", "SAU", 2, departs, arrives.AddDate(0, 0, 1)),
	}

	for field, fingerprint := range variants {
		assert.NotEqual(t, base, fingerprint, field)
	}
}

func TestJourneyShiftDays(t *testing.T) {
	journey := &Journey{
		OriginCode:      "PAD",
		DestinationCode: "SAU",
		Changes:         0,
		DepartureTime:   time.Date(2016, 3, 1, 1, 15, 0, 0, time.UTC),
		ArrivalTime:     time.Date(2016, 3, 1, 6, 2, 0, 0, time.UTC),
	}
	journey.ComputeFingerprint()
	before := journey.Fingerprint

	journey.ShiftDays(1)

	assert.Equal(t, time.Date(2016, 3, 2, 1, 15, 0, 0, time.UTC), journey.DepartureTime)
	assert.Equal(t, time.Date(2016, 3, 2, 6, 2, 0, 0, time.UTC), journey.ArrivalTime)
	assert.Equal(t, journey.ArrivalTime.Sub(journey.DepartureTime), time.Duration(journey.Duration))
	assert.NotEqual(t, before, journey.Fingerprint)
	assert.Equal(t, "470021c67480e62a402c196bee32f09e4e8d2c12", journey.Fingerprint)
}

func TestFareDaysBeforeDeparture(t *testing.T) {
	journey := &Journey{DepartureTime: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
	fare := &Fare{Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}

	assert.Equal(t, 8, fare.DaysBeforeDeparture(journey))
}

func TestFareDaysBeforeDepartureSummerTime(t *testing.T) {
	// Seen at 01:00 BST, departing 23.5 hours later on the UK clock
	journey := &Journey{DepartureTime: time.Date(2016, time.June, 10, 0, 30, 0, 0, time.UTC)}
	fare := &Fare{Timestamp: time.Date(2016, time.June, 9, 0, 0, 0, 0, time.UTC)}

	assert.Equal(t, 0, fare.DaysBeforeDeparture(journey))
}

func TestFingerprintSkippedClockTime(t *testing.T) {
	// 01:30 on 27 March 2016 is skipped by the UK clocks going forward
	journey := &Journey{
		OriginCode:      "PAD",
		DestinationCode: "SAU",
		DepartureTime:   time.Date(2016, time.March, 27, 1, 30, 0, 0, time.UTC),
		ArrivalTime:     time.Date(2016, time.March, 27, 6, 2, 0, 0, time.UTC),
	}
	journey.ComputeFingerprint()

	expected := sha1.Sum([]byte("PADSAU02016-03-27 01:30:002016-03-27 06:02:00"))
	assert.Equal(t, hex.EncodeToString(expected[:]), journey.Fingerprint)
}

func TestDurationMarshalJSON(t *testing.T) {
	out, err := Duration(4*time.Hour + 49*time.Minute).MarshalJSON()
	require.NoError(t, err)

	assert.JSONEq(t, `{"seconds": 17340}`, string(out))
}
