package schedule

import (
	"fmt"
	"iter"
	"time"
)

const (
	DateFormat = "020106"
	TimeFormat = "1504"

	DefaultHorizonDays = 90
	DefaultStepHours   = 3
)

// Descriptor is one upstream fare search: a route, a calendar day and the
// time of day the search is anchored on. Each search returns roughly three
// hours of departures.
type Descriptor struct {
	OriginCode      string
	DestinationCode string

	Date      time.Time
	TimeOfDay string // HHMM

	// RequestedDate is the DDMMYY day sent upstream. Extracted times are
	// interpreted relative to it.
	RequestedDate string
}

// Time returns the anchor as a full timestamp in the Date's location
func (d Descriptor) Time() (time.Time, error) {
	if len(d.TimeOfDay) != len(TimeFormat) {
		return time.Time{}, fmt.Errorf("time of day %q is not HHMM", d.TimeOfDay)
	}

	anchor, err := time.Parse(TimeFormat, d.TimeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time of day %q: %w", d.TimeOfDay, err)
	}

	return time.Date(d.Date.Year(), d.Date.Month(), d.Date.Day(), anchor.Hour(), anchor.Minute(), 0, 0, d.Date.Location()), nil
}

// Validate checks the fields sent upstream are well formed
func (d Descriptor) Validate() error {
	if d.OriginCode == "" || d.DestinationCode == "" {
		return fmt.Errorf("descriptor %s is missing a station code", d.Key())
	}

	if _, err := d.Time(); err != nil {
		return err
	}

	if _, err := time.Parse(DateFormat, d.RequestedDate); err != nil {
		return fmt.Errorf("parsing requested date %q: %w", d.RequestedDate, err)
	}

	return nil
}

func (d Descriptor) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s", d.OriginCode, d.DestinationCode, d.RequestedDate, d.TimeOfDay)
}

func (d Descriptor) String() string {
	return d.Key()
}

// Generator produces the searches covering the forward observation horizon
// for one route. Days 1..HorizonDays after Reference are covered, each
// sampled every StepHours starting at midnight.
type Generator struct {
	OriginCode      string
	DestinationCode string

	Reference time.Time

	HorizonDays int
	StepHours   int
}

func NewGenerator(originCode string, destinationCode string, reference time.Time) Generator {
	return Generator{
		OriginCode:      originCode,
		DestinationCode: destinationCode,
		Reference:       reference,
		HorizonDays:     DefaultHorizonDays,
		StepHours:       DefaultStepHours,
	}
}

func (g Generator) horizonDays() int {
	if g.HorizonDays <= 0 {
		return DefaultHorizonDays
	}
	return g.HorizonDays
}

func (g Generator) stepHours() int {
	if g.StepHours <= 0 || g.StepHours > 24 {
		return DefaultStepHours
	}
	return g.StepHours
}

func (g Generator) samplesPerDay() int {
	step := g.stepHours()
	return (24 + step - 1) / step
}

// All lazily yields every descriptor, day-major then time-of-day. The
// sequence only depends on the Generator's fields, so ranging over it again
// reproduces it exactly.
func (g Generator) All() iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		reference := time.Date(g.Reference.Year(), g.Reference.Month(), g.Reference.Day(), 0, 0, 0, 0, g.Reference.Location())
		step := g.stepHours()

		for day := 1; day <= g.horizonDays(); day++ {
			date := reference.AddDate(0, 0, day)
			requestedDate := date.Format(DateFormat)

			for hour := 0; hour < 24; hour += step {
				descriptor := Descriptor{
					OriginCode:      g.OriginCode,
					DestinationCode: g.DestinationCode,
					Date:            date,
					TimeOfDay:       fmt.Sprintf("%02d00", hour),
					RequestedDate:   requestedDate,
				}

				if !yield(descriptor) {
					return
				}
			}
		}
	}
}

func (g Generator) Descriptors() []Descriptor {
	descriptors := make([]Descriptor, 0, g.Len())
	for descriptor := range g.All() {
		descriptors = append(descriptors, descriptor)
	}

	return descriptors
}

func (g Generator) Len() int {
	return g.horizonDays() * g.samplesPerDay()
}
