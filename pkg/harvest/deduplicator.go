package harvest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/fareharvest/pkg/ctdf"
)

const DefaultDedupWindow = 23 * time.Hour

type Outcome int

const (
	// OutcomeUnknown accompanies an error; nothing is known to have been stored
	OutcomeUnknown Outcome = iota
	OutcomeNewJourney
	OutcomeNewFare
	OutcomeSuppressed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnknown:
		return "unknown"
	case OutcomeNewJourney:
		return "new_journey"
	case OutcomeNewFare:
		return "new_fare"
	case OutcomeSuppressed:
		return "suppressed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Deduplicator decides whether an observation is worth keeping. A fare is
// persisted for a journey only when no fare already stored for it was seen
// within Window of the new observation.
type Deduplicator struct {
	Store  Store
	Locker Locker
	Window time.Duration
}

func NewDeduplicator(store Store, locker Locker) *Deduplicator {
	if locker == nil {
		locker = NewKeyedMutex()
	}

	return &Deduplicator{
		Store:  store,
		Locker: locker,
		Window: DefaultDedupWindow,
	}
}

func (d *Deduplicator) Ingest(ctx context.Context, observation Observation) (Outcome, error) {
	journey := observation.Journey
	fare := observation.Fare

	unlock, err := d.Locker.Lock(ctx, journey.Fingerprint)
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("locking fingerprint %s: %w", journey.Fingerprint, err)
	}
	defer unlock()

	existing, err := d.Store.FindJourneyByFingerprint(ctx, journey.Fingerprint)
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("finding journey %s: %w", journey.Fingerprint, err)
	}

	if existing == nil {
		journeyID, fareID, err := d.Store.CreateJourneyWithFare(ctx, journey, fare)

		if errors.Is(err, ctdf.ErrDuplicateFingerprint) {
			// Another process created it between the lookup and the insert
			existing, err = d.Store.FindJourneyByFingerprint(ctx, journey.Fingerprint)
			if err != nil {
				return OutcomeUnknown, fmt.Errorf("finding journey %s: %w", journey.Fingerprint, err)
			}
			if existing == nil {
				return OutcomeUnknown, fmt.Errorf("journey %s reported duplicate but not found", journey.Fingerprint)
			}

			return d.ingestExisting(ctx, existing, fare)
		} else if err != nil {
			return OutcomeUnknown, fmt.Errorf("creating journey %s: %w", journey.Fingerprint, err)
		}

		journey.ID = journeyID
		fare.ID = fareID
		fare.JourneyRef = journeyID

		return OutcomeNewJourney, nil
	}

	return d.ingestExisting(ctx, existing, fare)
}

func (d *Deduplicator) ingestExisting(ctx context.Context, existing *ctdf.Journey, fare *ctdf.Fare) (Outcome, error) {
	fares, err := d.Store.ListFaresForJourney(ctx, existing.ID)
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("listing fares for journey %s: %w", existing.ID, err)
	}

	gap := NearestObservationGap(fares, fare.Timestamp)
	if gap <= d.window() {
		log.Debug().
			Str("fingerprint", existing.Fingerprint).
			Dur("gap", gap).
			Msg("Suppressed fare observation")

		return OutcomeSuppressed, nil
	}

	fareID, err := d.Store.AppendFare(ctx, existing.ID, fare)
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("appending fare to journey %s: %w", existing.ID, err)
	}

	fare.ID = fareID
	fare.JourneyRef = existing.ID

	return OutcomeNewFare, nil
}

func (d *Deduplicator) window() time.Duration {
	if d.Window <= 0 {
		return DefaultDedupWindow
	}
	return d.Window
}

// NearestObservationGap is the smallest absolute distance between at and any
// fare timestamp. With no fares the gap is unbounded.
func NearestObservationGap(fares []*ctdf.Fare, at time.Time) time.Duration {
	nearest := time.Duration(math.MaxInt64)

	for _, fare := range fares {
		gap := at.Sub(fare.Timestamp)
		if gap < 0 {
			gap = -gap
		}

		if gap < nearest {
			nearest = gap
		}
	}

	return nearest
}
