package harvest

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/fareharvest/pkg/schedule"
)

type fakeFetcher struct {
	mutex sync.Mutex

	page     string
	failures map[string][]error
	calls    map[string]int
}

func newFakeFetcher(page string) *fakeFetcher {
	return &fakeFetcher{
		page:     page,
		failures: map[string][]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, descriptor schedule.Descriptor) (*Page, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	key := descriptor.Key()
	f.calls[key]++

	if failures := f.failures[key]; len(failures) > 0 {
		f.failures[key] = failures[1:]
		return nil, failures[0]
	}

	return &Page{
		Descriptor: descriptor,
		StatusCode: http.StatusOK,
		Body:       []byte(f.page),
	}, nil
}

type memoryCheckpoint struct {
	mutex sync.Mutex
	done  map[string]bool
}

func (c *memoryCheckpoint) Done(ctx context.Context, key string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.done[key], nil
}

func (c *memoryCheckpoint) MarkDone(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.done[key] = true
	return nil
}

type recordingSink struct {
	mutex  sync.Mutex
	events []IngestEvent
}

func (s *recordingSink) Record(event IngestEvent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events = append(s.events, event)
}

// Two days with two samples each
func testGenerator() schedule.Generator {
	generator := schedule.NewGenerator("PAD", "SAU", time.Date(2016, time.February, 29, 10, 0, 0, 0, time.Local))
	generator.HorizonDays = 2
	generator.StepHours = 12

	return generator
}

func testPage() string {
	return resultsPage(
		resultBlock(journeyValue("12:00", "16:49", 2), fareValue("45.50")),
		resultBlock(journeyValue("13:03", "17:55", 0), fareValue("62.00")),
	)
}

func newTestHarvester(fetcher PageFetcher, store *fakeStore) *Harvester {
	harvester := NewHarvester(fetcher, NewDeduplicator(store, nil))
	harvester.Extractor = &Extractor{Now: fixedClock(time.Date(2016, time.February, 29, 10, 0, 0, 0, time.Local))}

	return harvester
}

func TestHarvesterRun(t *testing.T) {
	store := newFakeStore()
	sink := &recordingSink{}

	harvester := newTestHarvester(newFakeFetcher(testPage()), store)
	harvester.Events = sink

	summary, err := harvester.Run(context.Background(), testGenerator())
	require.NoError(t, err)

	assert.Equal(t, Summary{
		Descriptors:  4,
		Observations: 8,
		NewJourneys:  4,
		Suppressed:   4,
	}, summary)

	journeys, fares := store.counts()
	assert.Equal(t, 4, journeys)
	assert.Equal(t, 4, fares)

	assert.Len(t, sink.events, 8)
	assert.Equal(t, "PAD/SAU/010316/0000", sink.events[0].Descriptor)
	assert.Equal(t, OutcomeNewJourney.String(), sink.events[0].Outcome)
}

func TestHarvesterRunParallel(t *testing.T) {
	store := newFakeStore()

	harvester := newTestHarvester(newFakeFetcher(testPage()), store)
	harvester.Workers = 4

	summary, err := harvester.Run(context.Background(), testGenerator())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Descriptors)
	assert.Equal(t, 4, summary.NewJourneys)
	assert.Equal(t, 4, summary.Suppressed)

	journeys, fares := store.counts()
	assert.Equal(t, 4, journeys)
	assert.Equal(t, 4, fares)
}

func TestHarvesterSkipsFetchFailures(t *testing.T) {
	fetcher := newFakeFetcher(testPage())
	fetcher.failures["PAD/SAU/010316/0000"] = []error{&StatusError{StatusCode: http.StatusBadGateway}}

	harvester := newTestHarvester(fetcher, newFakeStore())

	summary, err := harvester.Run(context.Background(), testGenerator())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Descriptors)
	assert.Equal(t, 1, summary.FetchFailures)
	assert.Equal(t, 6, summary.Observations)
	assert.Equal(t, 1, fetcher.calls["PAD/SAU/010316/0000"])
}

func TestHarvesterRetries(t *testing.T) {
	fetcher := newFakeFetcher(testPage())
	fetcher.failures["PAD/SAU/010316/0000"] = []error{
		&StatusError{StatusCode: http.StatusServiceUnavailable},
		errors.New("connection reset by peer"),
	}
	fetcher.failures["PAD/SAU/010316/1200"] = []error{&StatusError{StatusCode: http.StatusNotFound}}

	harvester := newTestHarvester(fetcher, newFakeStore())
	harvester.Retries = 3
	harvester.NewBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	summary, err := harvester.Run(context.Background(), testGenerator())
	require.NoError(t, err)

	assert.Equal(t, 3, fetcher.calls["PAD/SAU/010316/0000"])
	assert.Equal(t, 1, fetcher.calls["PAD/SAU/010316/1200"])
	assert.Equal(t, 1, summary.FetchFailures)
}

func TestHarvesterStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("disk full")

	fetcher := newFakeFetcher(testPage())
	harvester := newTestHarvester(fetcher, store)

	summary, err := harvester.Run(context.Background(), testGenerator())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.createErr)

	assert.Equal(t, 4, summary.Descriptors)
	assert.Equal(t, 4, summary.StoreFailures)
	assert.Len(t, fetcher.calls, 4)
}

func TestHarvesterCheckpoint(t *testing.T) {
	checkpoint := &memoryCheckpoint{done: map[string]bool{"PAD/SAU/010316/0000": true}}

	fetcher := newFakeFetcher(testPage())
	fetcher.failures["PAD/SAU/020316/1200"] = []error{errors.New("timeout")}

	harvester := newTestHarvester(fetcher, newFakeStore())
	harvester.Checkpoint = checkpoint

	summary, err := harvester.Run(context.Background(), testGenerator())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Resumed)
	assert.Equal(t, 3, summary.Descriptors)
	assert.Zero(t, fetcher.calls["PAD/SAU/010316/0000"])

	assert.True(t, checkpoint.done["PAD/SAU/010316/1200"])
	assert.True(t, checkpoint.done["PAD/SAU/020316/0000"])
	assert.False(t, checkpoint.done["PAD/SAU/020316/1200"])
}

func TestHarvesterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := newFakeFetcher(testPage())
	harvester := newTestHarvester(fetcher, newFakeStore())

	summary, err := harvester.Run(ctx, testGenerator())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Descriptors)
	assert.Empty(t, fetcher.calls)
}

func TestHarvesterRollover(t *testing.T) {
	page := resultsPage(
		resultBlock(journeyValue("21:00", "23:59", 0), fareValue("20.00")),
		resultBlock(journeyValue("00:30", "05:02", 1), fareValue("20.00")),
	)
	store := newFakeStore()
	harvester := newTestHarvester(newFakeFetcher(page), store)

	summary, err := harvester.ProcessDescriptor(context.Background(), testDescriptor)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rollovers)
	assert.Equal(t, 2, summary.NewJourneys)

	journeys, _ := store.counts()
	assert.Equal(t, 2, journeys)
	for _, journey := range store.journeys {
		if journey.Changes == 1 {
			assert.Equal(t, at(2, 0, 30), journey.DepartureTime)
		}
	}
}

func TestSummaryAdd(t *testing.T) {
	summary := Summary{Descriptors: 1, NewFares: 2}
	summary.Add(Summary{Descriptors: 2, NewFares: 1, StoreFailures: 1})

	assert.Equal(t, Summary{Descriptors: 3, NewFares: 3, StoreFailures: 1}, summary)
}
