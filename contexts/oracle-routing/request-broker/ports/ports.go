package ports

import (
	"context"
	"time"

	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	contractsv1 "coolrouter/contracts/gen/events/v1"
)

// RequestRepository owns request persistence and the transaction boundary for
// lifecycle writes. The host storage guarantees single-writer semantics per
// request id; repository implementations outside such a host must serialize
// writes to one record themselves.
type RequestRepository interface {
	// CreateRequestWithOutbox atomically persists a brand-new request and its
	// creation event. A duplicate id must fail with ErrRequestExists.
	CreateRequestWithOutbox(ctx context.Context, request entities.Request, event EventEnvelope) error
	GetRequest(ctx context.Context, requestID string) (entities.Request, error)
	// UpdateRequestWithOutbox atomically replaces a request's mutable state
	// and appends zero or more events produced by the same transition.
	UpdateRequestWithOutbox(ctx context.Context, request entities.Request, events []EventEnvelope) error
}

// SignerVerifier answers whether a caller asserted as identity also proved
// control of that identity over the given message.
type SignerVerifier interface {
	Verify(ctx context.Context, identity string, message []byte, signature []byte) (bool, error)
}

// AccountMeta is one attached account on an outbound invocation.
type AccountMeta struct {
	Identity string
	Writable bool
}

// Invocation is a cross-program call addressed to a target program. Data
// starts with the 8-byte method discriminator.
type Invocation struct {
	Program  string
	Accounts []AccountMeta
	Data     []byte
}

// CallbackInvoker delivers an invocation with all-or-nothing semantics: a
// non-nil error means the target rejected and nothing was committed.
type CallbackInvoker interface {
	Invoke(ctx context.Context, invocation Invocation) error
}

// Clock allows deterministic testing of timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
