package ports

import (
	"context"
	"time"

	"coolrouter/contexts/oracle-routing/llm-consumer/domain/entities"
	contractsv1 "coolrouter/contracts/gen/events/v1"
)

// ConsumerStateRepository owns consumer-state persistence keyed by request id.
type ConsumerStateRepository interface {
	// CreateState must fail for a duplicate request id.
	CreateState(ctx context.Context, state entities.ConsumerState) error
	GetState(ctx context.Context, requestID string) (entities.ConsumerState, error)
	SaveState(ctx context.Context, state entities.ConsumerState) error
	// DeleteState compensates a failed forward to the broker.
	DeleteState(ctx context.Context, requestID string) error
}

// MessageInput is one task payload item forwarded to the broker.
type MessageInput struct {
	Role    string
	Content string
}

// CallbackAccountInput declares one callback target on submission.
type CallbackAccountInput struct {
	Identity string
	Writable bool
}

// LLMRequestSubmission is the consumer's view of a broker create-request
// call.
type LLMRequestSubmission struct {
	RequestID         string
	RequestingParty   string
	Provider          string
	ModelID           string
	Messages          []MessageInput
	CallbackTargets   []CallbackAccountInput
	MinVotes          int
	ApprovalThreshold int
}

// RequestSubmitter forwards a request to the broker. A non-nil error means
// nothing was created and the consumer state must not be kept.
type RequestSubmitter interface {
	SubmitRequest(ctx context.Context, submission LLMRequestSubmission) error
}

// Clock allows deterministic testing of timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
