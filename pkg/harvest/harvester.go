package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/fareharvest/pkg/schedule"
)

type Summary struct {
	Descriptors     int
	Resumed         int
	FetchFailures   int
	ExtractFailures int
	Observations    int
	Rollovers       int
	NewJourneys     int
	NewFares        int
	Suppressed      int
	StoreFailures   int
}

func (s *Summary) Add(other Summary) {
	s.Descriptors += other.Descriptors
	s.Resumed += other.Resumed
	s.FetchFailures += other.FetchFailures
	s.ExtractFailures += other.ExtractFailures
	s.Observations += other.Observations
	s.Rollovers += other.Rollovers
	s.NewJourneys += other.NewJourneys
	s.NewFares += other.NewFares
	s.Suppressed += other.Suppressed
	s.StoreFailures += other.StoreFailures
}

func (s Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Int("descriptors", s.Descriptors).
		Int("resumed", s.Resumed).
		Int("fetchfailures", s.FetchFailures).
		Int("extractfailures", s.ExtractFailures).
		Int("observations", s.Observations).
		Int("rollovers", s.Rollovers).
		Int("newjourneys", s.NewJourneys).
		Int("newfares", s.NewFares).
		Int("suppressed", s.Suppressed).
		Int("storefailures", s.StoreFailures)
}

type Harvester struct {
	Fetcher      PageFetcher
	Extractor    *Extractor
	Deduplicator *Deduplicator

	Workers int
	Retries int

	// NewBackOff builds the retry policy used when Retries > 0
	NewBackOff func() backoff.BackOff

	Checkpoint Checkpoint
	Events     EventSink
}

func NewHarvester(fetcher PageFetcher, deduplicator *Deduplicator) *Harvester {
	return &Harvester{
		Fetcher:      fetcher,
		Extractor:    &Extractor{},
		Deduplicator: deduplicator,
		Workers:      1,
	}
}

type descriptorResult struct {
	Summary Summary
	Err     error
}

// Run walks the whole schedule. Descriptors whose page cannot be fetched are
// skipped; store failures abort only the descriptor they happened on and are
// returned joined once the run is over.
func (h *Harvester) Run(ctx context.Context, generator schedule.Generator) (Summary, error) {
	startTime := time.Now()

	log.Info().
		Str("origin", generator.OriginCode).
		Str("destination", generator.DestinationCode).
		Int("descriptors", generator.Len()).
		Int("workers", h.Workers).
		Msg("Starting harvest")

	var results []descriptorResult

	if h.Workers <= 1 {
		for descriptor := range generator.All() {
			if ctx.Err() != nil {
				break
			}

			results = append(results, h.runDescriptor(ctx, descriptor))
		}
	} else {
		p := pool.NewWithResults[descriptorResult]().WithMaxGoroutines(h.Workers)

		for descriptor := range generator.All() {
			if ctx.Err() != nil {
				break
			}

			p.Go(func() descriptorResult {
				return h.runDescriptor(ctx, descriptor)
			})
		}

		results = p.Wait()
	}

	summary := Summary{}
	var errs []error
	for _, result := range results {
		summary.Add(result.Summary)

		if result.Err != nil {
			errs = append(errs, result.Err)
		}
	}
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}

	log.Info().
		EmbedObject(summary).
		Str("length", time.Since(startTime).String()).
		Msg("Harvest complete")

	return summary, errors.Join(errs...)
}

func (h *Harvester) runDescriptor(ctx context.Context, descriptor schedule.Descriptor) descriptorResult {
	key := descriptor.Key()

	if h.Checkpoint != nil {
		done, err := h.Checkpoint.Done(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("descriptor", key).Msg("Failed to read checkpoint")
		} else if done {
			log.Debug().Str("descriptor", key).Msg("Already harvested, skipping")
			return descriptorResult{Summary: Summary{Resumed: 1}}
		}
	}

	summary, err := h.ProcessDescriptor(ctx, descriptor)

	if h.Checkpoint != nil && err == nil && summary.FetchFailures == 0 && summary.ExtractFailures == 0 {
		if err := h.Checkpoint.MarkDone(ctx, key); err != nil {
			log.Warn().Err(err).Str("descriptor", key).Msg("Failed to write checkpoint")
		}
	}

	return descriptorResult{Summary: summary, Err: err}
}

// ProcessDescriptor fetches, extracts, corrects and ingests one results page.
// Observations are ingested in document order.
func (h *Harvester) ProcessDescriptor(ctx context.Context, descriptor schedule.Descriptor) (Summary, error) {
	summary := Summary{Descriptors: 1}
	key := descriptor.Key()

	page, err := h.fetch(ctx, descriptor)
	if err != nil {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		log.Warn().Err(err).Str("descriptor", key).Msg("Failed to fetch page, skipping")
		descriptorsProcessed.WithLabelValues("fetch_failed").Inc()
		summary.FetchFailures = 1

		return summary, nil
	}

	extractor := h.Extractor
	if extractor == nil {
		extractor = &Extractor{}
	}

	observations, err := extractor.Extract(bytes.NewReader(page.Body), descriptor.RequestedDate)
	if err != nil {
		log.Warn().Err(err).Str("descriptor", key).Msg("Failed to extract page, skipping")
		descriptorsProcessed.WithLabelValues("extract_failed").Inc()
		summary.ExtractFailures = 1

		return summary, nil
	}

	summary.Observations = len(observations)
	summary.Rollovers = CorrectRollover(observations)

	for _, observation := range observations {
		outcome, err := h.Deduplicator.Ingest(ctx, observation)
		if err != nil {
			log.Error().Err(err).Str("descriptor", key).Str("fingerprint", observation.Journey.Fingerprint).Msg("Failed to store observation")
			descriptorsProcessed.WithLabelValues("store_failed").Inc()
			summary.StoreFailures++

			return summary, fmt.Errorf("descriptor %s: %w", key, err)
		}

		switch outcome {
		case OutcomeNewJourney:
			summary.NewJourneys++
		case OutcomeNewFare:
			summary.NewFares++
		case OutcomeSuppressed:
			summary.Suppressed++
		}
		observationsIngested.WithLabelValues(outcome.String()).Inc()

		if h.Events != nil {
			h.Events.Record(IngestEvent{
				Timestamp:       observation.Fare.Timestamp,
				Descriptor:      key,
				Fingerprint:     observation.Journey.Fingerprint,
				OriginCode:      observation.Journey.OriginCode,
				DestinationCode: observation.Journey.DestinationCode,
				DepartureTime:   observation.Journey.DepartureTime,
				FareType:        observation.Fare.Type,
				Price:           observation.Fare.Price,
				Outcome:         outcome.String(),
			})
		}
	}

	descriptorsProcessed.WithLabelValues("ok").Inc()

	log.Debug().
		Str("descriptor", key).
		Int("observations", summary.Observations).
		Int("rollovers", summary.Rollovers).
		Int("newjourneys", summary.NewJourneys).
		Int("newfares", summary.NewFares).
		Msg("Processed descriptor")

	return summary, nil
}

func (h *Harvester) fetch(ctx context.Context, descriptor schedule.Descriptor) (*Page, error) {
	if h.Retries <= 0 {
		return h.Fetcher.Fetch(ctx, descriptor)
	}

	newBackOff := h.NewBackOff
	if newBackOff == nil {
		newBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}

	var page *Page
	operation := func() error {
		var err error
		page, err = h.Fetcher.Fetch(ctx, descriptor)

		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(h.Retries)), ctx)

	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		log.Debug().Err(err).Str("descriptor", descriptor.Key()).Str("wait", wait.String()).Msg("Retrying fetch")
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}

// Client errors other than rate limiting will not change on a retry
func retryable(err error) bool {
	var statusError *StatusError
	if errors.As(err, &statusError) {
		return statusError.StatusCode >= 500 || statusError.StatusCode == http.StatusTooManyRequests
	}

	return true
}
