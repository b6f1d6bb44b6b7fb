package harvest

import (
	"context"

	"github.com/travigo/fareharvest/pkg/ctdf"
)

// Store is the durable record of journeys and the fares seen on them. Every
// method is expected to be atomic on its own.
type Store interface {
	// FindJourneyByFingerprint returns nil, nil when no journey matches
	FindJourneyByFingerprint(ctx context.Context, fingerprint string) (*ctdf.Journey, error)
	ListFaresForJourney(ctx context.Context, journeyID string) ([]*ctdf.Fare, error)
	// CreateJourneyWithFare persists both or neither. A concurrent insert of
	// the same fingerprint reports ctdf.ErrDuplicateFingerprint.
	CreateJourneyWithFare(ctx context.Context, journey *ctdf.Journey, fare *ctdf.Fare) (journeyID string, fareID string, err error)
	AppendFare(ctx context.Context, journeyID string, fare *ctdf.Fare) (fareID string, err error)
}

// Locker provides mutual exclusion per key. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
