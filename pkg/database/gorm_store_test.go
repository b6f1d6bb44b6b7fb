package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJourneyRecordConversion(t *testing.T) {
	journey := testJourney()
	fare := testFare(time.Date(2016, time.February, 20, 9, 0, 0, 0, time.Local))

	record := newJourneyRecord(journey)
	record.ID = 7
	record.Fares = []fareRecord{*newFareRecord(fare, 7)}
	record.Fares[0].ID = 12

	assert.Equal(t, int64(17340), record.DurationSeconds)

	result := record.toJourney()
	assert.Equal(t, "7", result.ID)
	assert.Equal(t, journey.Fingerprint, result.Fingerprint)
	assert.Equal(t, journey.Duration, result.Duration)
	assert.Len(t, result.Fares, 1)
	assert.Equal(t, "12", result.Fares[0].ID)
	assert.Equal(t, "7", result.Fares[0].JourneyRef)
	assert.Nil(t, result.Fares[0].Journey)
}

func TestFareRecordWithJourney(t *testing.T) {
	journey := newJourneyRecord(testJourney())
	journey.ID = 3

	record := newFareRecord(testFare(time.Now()), 3)
	record.ID = 4
	record.Journey = journey

	fare := record.toFare()
	assert.NotNil(t, fare.Journey)
	assert.Equal(t, "3", fare.Journey.ID)
}

func TestParseRecordID(t *testing.T) {
	id, ok := parseRecordID("42")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"", "0", "-1", "abc", "507f1f77bcf86cd799439011"} {
		_, ok := parseRecordID(bad)
		assert.False(t, ok, bad)
	}
}
