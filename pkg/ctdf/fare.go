package ctdf

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/travigo/fareharvest/pkg/util"
)

// Fare is one ticket price seen for a Journey at Timestamp
type Fare struct {
	ID         string `groups:"basic"`
	JourneyRef string `groups:"basic"`

	Price decimal.Decimal `groups:"basic"`

	CarrierCode string `groups:"basic"`
	CarrierName string `groups:"basic"`

	Type        string `groups:"basic"`
	Flexibility string `groups:"basic"`
	Permission  string `groups:"basic"`

	Timestamp time.Time `groups:"basic"`

	Journey *Journey `groups:"detailed" json:",omitempty"`
}

// DaysBeforeDeparture is the number of whole days between the observation and
// the journey leaving, measured on the UK clock.
func (f *Fare) DaysBeforeDeparture(journey *Journey) int {
	return int(journey.DepartureTime.Sub(util.WallClock(f.Timestamp)) / (24 * time.Hour))
}
