package harvest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fareharvest/pkg/schedule"
)

const QueueName = "harvest-queue"

// EnqueueSchedule publishes every descriptor of the schedule for queue workers
func EnqueueSchedule(queue rmq.Queue, generator schedule.Generator) (int, error) {
	var payloads []string

	for descriptor := range generator.All() {
		payload, err := json.Marshal(descriptor)
		if err != nil {
			return 0, fmt.Errorf("encoding descriptor %s: %w", descriptor.Key(), err)
		}

		payloads = append(payloads, string(payload))
	}

	if len(payloads) == 0 {
		return 0, nil
	}

	if err := queue.Publish(payloads...); err != nil {
		return 0, err
	}

	return len(payloads), nil
}

type DescriptorProcessor interface {
	ProcessDescriptor(ctx context.Context, descriptor schedule.Descriptor) (Summary, error)
}

// BatchConsumer runs queued descriptors through the harvester. Deliveries are
// acked once processed, including pages that could not be fetched, and
// rejected when their observations could not be stored.
type BatchConsumer struct {
	Context   context.Context
	Processor DescriptorProcessor
}

func NewBatchConsumer(ctx context.Context, processor DescriptorProcessor) *BatchConsumer {
	return &BatchConsumer{
		Context:   ctx,
		Processor: processor,
	}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	ctx := consumer.Context
	if ctx == nil {
		ctx = context.Background()
	}

	for _, delivery := range batch {
		var descriptor schedule.Descriptor
		if err := json.Unmarshal([]byte(delivery.Payload()), &descriptor); err != nil {
			log.Error().Err(err).Str("payload", delivery.Payload()).Msg("Failed to decode queued descriptor")

			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject queued descriptor")
			}
			continue
		}

		if err := descriptor.Validate(); err != nil {
			log.Error().Err(err).Str("payload", delivery.Payload()).Msg("Rejected invalid queued descriptor")

			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject queued descriptor")
			}
			continue
		}

		summary, err := consumer.Processor.ProcessDescriptor(ctx, descriptor)
		if err != nil {
			log.Error().Err(err).Str("descriptor", descriptor.Key()).Msg("Failed to process queued descriptor")

			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject queued descriptor")
			}
			continue
		}

		log.Debug().EmbedObject(summary).Str("descriptor", descriptor.Key()).Msg("Processed queued descriptor")

		if err := delivery.Ack(); err != nil {
			log.Error().Err(err).Msg("Failed to ack queued descriptor")
		}
	}
}
