package harvest

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/travigo/fareharvest/pkg/ctdf"
	"github.com/travigo/fareharvest/pkg/util"
)

const (
	resultBlockSelector      = `[class*="mtx"]`
	journeyBreakdownSelector = ".journey-breakdown input"
	fareBreakdownSelector    = ".fare-breakdown input"

	minimumJourneyFields = 9
	minimumFareFields    = 17

	clockFormat = "15:04"
)

// Observation is one fare seen on one journey at one point in time
type Observation struct {
	Journey *ctdf.Journey
	Fare    *ctdf.Fare
}

type Extractor struct {
	Now func() time.Time
}

// Extract parses a results page using the current time as the observation timestamp
func Extract(body io.Reader, requestedDate string) ([]Observation, error) {
	extractor := Extractor{}
	return extractor.Extract(body, requestedDate)
}

func (e *Extractor) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Extract returns one Observation per well-formed result block, in document order.
// Malformed blocks are skipped.
func (e *Extractor) Extract(body io.Reader, requestedDate string) ([]Observation, error) {
	// Journey times are kept as quoted clock readings
	date, err := util.ParseDDMMYY(requestedDate, time.UTC)
	if err != nil {
		return nil, err
	}

	document, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}

	observedAt := e.now()
	observations := []Observation{}

	document.Find(resultBlockSelector).Each(func(index int, block *goquery.Selection) {
		observation, err := parseResultBlock(block, date, observedAt)
		if err != nil {
			log.Debug().Err(err).Int("block", index).Str("date", requestedDate).Msg("Skipping result block")
			return
		}

		observations = append(observations, observation)
	})

	return observations, nil
}

func parseResultBlock(block *goquery.Selection, date time.Time, observedAt time.Time) (Observation, error) {
	journeyValue, exists := block.Find(journeyBreakdownSelector).First().Attr("value")
	if !exists {
		return Observation{}, fmt.Errorf("no journey breakdown")
	}
	fareValue, exists := block.Find(fareBreakdownSelector).First().Attr("value")
	if !exists {
		return Observation{}, fmt.Errorf("no fare breakdown")
	}

	journey, err := parseJourneyFields(strings.Split(journeyValue, "|"), date)
	if err != nil {
		return Observation{}, err
	}

	fare, err := parseFareFields(strings.Split(fareValue, "|"), observedAt)
	if err != nil {
		return Observation{}, err
	}

	return Observation{Journey: journey, Fare: fare}, nil
}

func parseJourneyFields(fields []string, date time.Time) (*ctdf.Journey, error) {
	if len(fields) < minimumJourneyFields {
		return nil, fmt.Errorf("journey breakdown has %d fields, expected at least %d", len(fields), minimumJourneyFields)
	}

	departureClock, err := time.Parse(clockFormat, strings.TrimSpace(fields[2]))
	if err != nil {
		return nil, fmt.Errorf("departure time: %w", err)
	}
	arrivalClock, err := time.Parse(clockFormat, strings.TrimSpace(fields[5]))
	if err != nil {
		return nil, fmt.Errorf("arrival time: %w", err)
	}
	changes, err := strconv.Atoi(strings.TrimSpace(fields[8]))
	if err != nil {
		return nil, fmt.Errorf("changes: %w", err)
	}
	if changes < 0 {
		return nil, fmt.Errorf("negative changes %d", changes)
	}

	departureTime := util.AddTimeToDate(date, departureClock)
	arrivalTime := util.AddTimeToDate(date, arrivalClock)

	// Overnight services arrive on the following day
	if arrivalTime.Hour() < departureTime.Hour() {
		arrivalTime = arrivalTime.AddDate(0, 0, 1)
	}

	journey := &ctdf.Journey{
		OriginName:      strings.TrimSpace(fields[0]),
		OriginCode:      strings.TrimSpace(fields[1]),
		DestinationName: strings.TrimSpace(fields[3]),
		DestinationCode: strings.TrimSpace(fields[4]),
		DepartureTime:   departureTime,
		ArrivalTime:     arrivalTime,
		Changes:         changes,
	}
	journey.ComputeFingerprint()

	return journey, nil
}

func parseFareFields(fields []string, observedAt time.Time) (*ctdf.Fare, error) {
	if len(fields) < minimumFareFields {
		return nil, fmt.Errorf("fare breakdown has %d fields, expected at least %d", len(fields), minimumFareFields)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(fields[5]))
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}

	return &ctdf.Fare{
		Type:        strings.TrimSpace(fields[3]),
		Price:       price,
		CarrierCode: strings.TrimSpace(fields[10]),
		CarrierName: strings.TrimSpace(fields[11]),
		Permission:  strings.TrimSpace(fields[15]),
		Flexibility: strings.TrimSpace(fields[16]),
		Timestamp:   observedAt,
	}, nil
}
