package ctdf

import (
	"time"

	"golang.org/x/exp/slices"
)

// Journey is a single scheduled trip between two stations as quoted by the
// upstream fare search. Its identity is the Fingerprint.
//
// DepartureTime and ArrivalTime are UK clock readings held in UTC, not
// instants. Clock times skipped by the spring transition stay as quoted.
type Journey struct {
	ID          string `groups:"basic"`
	Fingerprint string `groups:"basic"`

	OriginCode      string `groups:"basic"`
	OriginName      string `groups:"basic"`
	DestinationCode string `groups:"basic"`
	DestinationName string `groups:"basic"`

	DepartureTime time.Time `groups:"basic"`
	ArrivalTime   time.Time `groups:"basic"`
	Duration      Duration  `groups:"basic"`

	Changes int `groups:"basic"`

	Fares []*Fare `groups:"detailed" json:",omitempty"`
}

// ComputeFingerprint refreshes the derived Duration and Fingerprint fields
// from the current identity fields.
func (j *Journey) ComputeFingerprint() {
	j.Duration = Duration(j.ArrivalTime.Sub(j.DepartureTime))
	j.Fingerprint = Fingerprint(j.OriginCode, j.DestinationCode, j.Changes, j.DepartureTime, j.ArrivalTime)
}

// ShiftDays moves both departure and arrival by whole calendar days and
// recomputes the derived fields.
func (j *Journey) ShiftDays(days int) {
	j.DepartureTime = j.DepartureTime.AddDate(0, 0, days)
	j.ArrivalTime = j.ArrivalTime.AddDate(0, 0, days)

	j.ComputeFingerprint()
}

func (j *Journey) SortFares() {
	slices.SortFunc(j.Fares, func(a, b *Fare) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
