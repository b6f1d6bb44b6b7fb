package harvest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/travigo/fareharvest/pkg/elastic_client"
)

type IngestEvent struct {
	Timestamp time.Time

	Descriptor  string
	Fingerprint string

	OriginCode      string
	DestinationCode string
	DepartureTime   time.Time

	FareType string
	Price    decimal.Decimal

	Outcome string
}

// EventSink receives one event per deduplication decision
type EventSink interface {
	Record(event IngestEvent)
}

type ElasticEventSink struct{}

func (s ElasticEventSink) Record(event IngestEvent) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode ingest event")
		return
	}

	elastic_client.IndexRequest(ElasticEventIndexName(event.Timestamp), bytes.NewReader(eventJSON))
}

func ElasticEventIndexName(t time.Time) string {
	return fmt.Sprintf("fareharvest-events-%d-%02d", t.Year(), t.Month())
}

type NoopEventSink struct{}

func (NoopEventSink) Record(IngestEvent) {}

// DefaultEventSink indexes into Elasticsearch when a client has been set up
func DefaultEventSink() EventSink {
	if elastic_client.Client == nil {
		return NoopEventSink{}
	}
	return ElasticEventSink{}
}
