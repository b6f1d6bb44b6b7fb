package harvest

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/travigo/fareharvest/pkg/ctdf"
)

type fakeStore struct {
	mutex sync.Mutex

	journeys      map[string]*ctdf.Journey
	byFingerprint map[string]string
	fares         map[string][]*ctdf.Fare
	nextID        int

	findCalls int

	findErr   error
	createErr error
	appendErr error

	// runs before CreateJourneyWithFare takes the store lock
	beforeCreate func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		journeys:      map[string]*ctdf.Journey{},
		byFingerprint: map[string]string{},
		fares:         map[string][]*ctdf.Fare{},
	}
}

func (s *fakeStore) id() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

func (s *fakeStore) FindJourneyByFingerprint(ctx context.Context, fingerprint string) (*ctdf.Journey, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}

	id, exists := s.byFingerprint[fingerprint]
	if !exists {
		return nil, nil
	}

	journey := *s.journeys[id]
	return &journey, nil
}

func (s *fakeStore) ListFaresForJourney(ctx context.Context, journeyID string) ([]*ctdf.Fare, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.journeys[journeyID]; !exists {
		return nil, ctdf.ErrNotFound
	}

	return append([]*ctdf.Fare{}, s.fares[journeyID]...), nil
}

func (s *fakeStore) CreateJourneyWithFare(ctx context.Context, journey *ctdf.Journey, fare *ctdf.Fare) (string, string, error) {
	if s.beforeCreate != nil {
		s.beforeCreate()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.createErr != nil {
		return "", "", s.createErr
	}
	if _, exists := s.byFingerprint[journey.Fingerprint]; exists {
		return "", "", ctdf.ErrDuplicateFingerprint
	}

	return s.insert(journey, fare)
}

func (s *fakeStore) insert(journey *ctdf.Journey, fare *ctdf.Fare) (string, string, error) {
	stored := *journey
	stored.ID = s.id()
	s.journeys[stored.ID] = &stored
	s.byFingerprint[stored.Fingerprint] = stored.ID

	storedFare := *fare
	storedFare.ID = s.id()
	storedFare.JourneyRef = stored.ID
	s.fares[stored.ID] = []*ctdf.Fare{&storedFare}

	return stored.ID, storedFare.ID, nil
}

func (s *fakeStore) AppendFare(ctx context.Context, journeyID string, fare *ctdf.Fare) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.appendErr != nil {
		return "", s.appendErr
	}
	if _, exists := s.journeys[journeyID]; !exists {
		return "", ctdf.ErrNotFound
	}

	storedFare := *fare
	storedFare.ID = s.id()
	storedFare.JourneyRef = journeyID
	s.fares[journeyID] = append(s.fares[journeyID], &storedFare)

	return storedFare.ID, nil
}

func (s *fakeStore) counts() (int, int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	fares := 0
	for _, journeyFares := range s.fares {
		fares += len(journeyFares)
	}

	return len(s.journeys), fares
}

func journeyValue(departs string, arrives string, changes int) string {
	return strings.Join([]string{
		"London Paddington", "PAD", departs,
		"St Austell", "SAU", arrives,
		"", "", strconv.Itoa(changes),
	}, "|")
}

func fareValue(price string) string {
	fields := make([]string, 17)
	fields[3] = "Off-Peak Single"
	fields[5] = price
	fields[10] = "GW"
	fields[11] = "Great Western Railway"
	fields[15] = "Any Permitted"
	fields[16] = "Flexible"

	return strings.Join(fields, "|")
}

func resultBlock(journey string, fare string) string {
	return fmt.Sprintf(
		`<div class="mtx"><div class="journey-breakdown"><input type="hidden" value="%s"></div><div class="fare-breakdown"><input type="hidden" value="%s"></div></div>`,
		html.EscapeString(journey),
		html.EscapeString(fare),
	)
}

func resultsPage(blocks ...string) string {
	return "<html><body><div id=\"oft\">" + strings.Join(blocks, "\n") + "</div></body></html>"
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testObservation(departs time.Time, arrives time.Time, seen time.Time) Observation {
	journey := &ctdf.Journey{
		OriginCode:      "PAD",
		OriginName:      "London Paddington",
		DestinationCode: "SAU",
		DestinationName: "St Austell",
		DepartureTime:   departs,
		ArrivalTime:     arrives,
	}
	journey.ComputeFingerprint()

	return Observation{
		Journey: journey,
		Fare: &ctdf.Fare{
			Type:      "Off-Peak Single",
			Timestamp: seen,
		},
	}
}
