package database

import (
	"context"
	"fmt"
	"time"

	"github.com/travigo/fareharvest/pkg/ctdf"
	"github.com/travigo/fareharvest/pkg/util"
)

// FareStore persists observations and answers read queries over them
type FareStore interface {
	FindJourneyByFingerprint(ctx context.Context, fingerprint string) (*ctdf.Journey, error)
	ListFaresForJourney(ctx context.Context, journeyID string) ([]*ctdf.Fare, error)
	CreateJourneyWithFare(ctx context.Context, journey *ctdf.Journey, fare *ctdf.Fare) (string, string, error)
	AppendFare(ctx context.Context, journeyID string, fare *ctdf.Fare) (string, error)

	QueryJourneys(ctx context.Context, filter JourneyFilter) ([]*ctdf.Journey, error)
	GetJourney(ctx context.Context, id string) (*ctdf.Journey, error)
	QueryFares(ctx context.Context, filter FareFilter) ([]*ctdf.Fare, error)
	GetFare(ctx context.Context, id string) (*ctdf.Fare, error)
}

// OpenStore returns the store for the connected backend
func OpenStore() (FareStore, error) {
	switch {
	case MongoGlobalInstance != nil:
		return NewMongoStore(GetCollection(FareJourneysCollection)), nil
	case GlobalGorm != nil:
		return NewGormStore(GlobalGorm), nil
	default:
		return nil, fmt.Errorf("no database connected")
	}
}

type JourneyFilter struct {
	OriginCode      string
	DestinationCode string
	Changes         *int

	// Date matches journeys departing on that calendar day
	Date time.Time

	Limit int
}

type FareFilter struct {
	JourneyFilter

	JourneyID   string
	Type        string
	Flexibility string
	Permission  string
	CarrierCode string
}

func (f JourneyFilter) dayBounds() (time.Time, time.Time) {
	start := util.StartOfDay(f.Date)
	return start, start.AddDate(0, 0, 1)
}
