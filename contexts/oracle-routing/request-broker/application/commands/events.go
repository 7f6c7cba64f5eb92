package commands

import (
	"encoding/json"
	"time"

	"coolrouter/contexts/oracle-routing/request-broker/ports"
)

const (
	TopicRequestCreated   = "request.created"
	TopicVotingCompleted  = "voting.completed"
	TopicRequestFulfilled = "request.fulfilled"
)

func newBrokerEnvelope(
	eventID string,
	eventType string,
	requestID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Lifecycle events are partitioned by request id for stable ordering on
	// per-request consumers.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "request-broker",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "request_id",
		PartitionKey:     requestID,
		Data:             payload,
	}, nil
}
