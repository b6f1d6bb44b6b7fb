package export

import (
	"io"

	"github.com/gocarina/gocsv"
	"github.com/travigo/fareharvest/pkg/ctdf"
)

const timestampLayout = "2006-01-02 15:04:05"

// FareRow is one fare flattened together with the journey it was seen on
type FareRow struct {
	FareID    string `csv:"fare_id"`
	JourneyID string `csv:"journey_id"`

	Fingerprint     string `csv:"fingerprint"`
	OriginCode      string `csv:"origin"`
	DestinationCode string `csv:"destination"`
	Departs         string `csv:"departs"`
	Arrives         string `csv:"arrives"`
	DurationMinutes int    `csv:"duration_minutes"`
	Changes         int    `csv:"changes"`

	Price       string `csv:"price"`
	Type        string `csv:"type"`
	Flexibility string `csv:"flexibility"`
	Permission  string `csv:"permission"`
	CarrierCode string `csv:"carrier"`
	CarrierName string `csv:"carrier_name"`

	Timestamp           string `csv:"timestamp"`
	DaysBeforeDeparture int    `csv:"days_before_departure"`
}

func NewFareRow(fare *ctdf.Fare) FareRow {
	row := FareRow{
		FareID:      fare.ID,
		JourneyID:   fare.JourneyRef,
		Price:       fare.Price.StringFixed(2),
		Type:        fare.Type,
		Flexibility: fare.Flexibility,
		Permission:  fare.Permission,
		CarrierCode: fare.CarrierCode,
		CarrierName: fare.CarrierName,
		Timestamp:   fare.Timestamp.Format(timestampLayout),
	}

	if journey := fare.Journey; journey != nil {
		row.Fingerprint = journey.Fingerprint
		row.OriginCode = journey.OriginCode
		row.DestinationCode = journey.DestinationCode
		row.Departs = journey.DepartureTime.Format(timestampLayout)
		row.Arrives = journey.ArrivalTime.Format(timestampLayout)
		row.DurationMinutes = int(journey.Duration.Seconds() / 60)
		row.Changes = journey.Changes
		row.DaysBeforeDeparture = fare.DaysBeforeDeparture(journey)
	}

	return row
}

func WriteFaresCSV(fares []*ctdf.Fare, out io.Writer) error {
	rows := make([]FareRow, 0, len(fares))
	for _, fare := range fares {
		rows = append(rows, NewFareRow(fare))
	}

	return gocsv.Marshal(rows, out)
}
