package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	domainerrors "coolrouter/contexts/oracle-routing/request-broker/domain/errors"
	"coolrouter/contexts/oracle-routing/request-broker/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store is the in-memory record store. One mutex serializes all writes,
// which preserves the host-platform guarantee that no two operations mutate
// the same request concurrently. Records emulate fixed-size allocation:
// every write re-checks the declared maximum sizes and rejects growth past
// them instead of reallocating.
type Store struct {
	mu sync.RWMutex

	requests map[string]entities.Request
	outbox   map[string]outboxRecord
}

func NewStore(seed []entities.Request) *Store {
	requests := make(map[string]entities.Request, len(seed))
	for _, request := range seed {
		requests[request.ID] = request
	}
	return &Store{
		requests: requests,
		outbox:   make(map[string]outboxRecord),
	}
}

func (s *Store) CreateRequestWithOutbox(_ context.Context, request entities.Request, event ports.EventEnvelope) error {
	if err := checkAllocatedBounds(request); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(request.ID)
	if _, exists := s.requests[id]; exists {
		return domainerrors.ErrRequestExists
	}
	s.requests[id] = cloneRequest(request)
	return s.appendOutboxLocked(event)
}

func (s *Store) GetRequest(_ context.Context, requestID string) (entities.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[strings.TrimSpace(requestID)]
	if !ok {
		return entities.Request{}, domainerrors.ErrRequestNotFound
	}
	return cloneRequest(request), nil
}

func (s *Store) UpdateRequestWithOutbox(_ context.Context, request entities.Request, events []ports.EventEnvelope) error {
	if err := checkAllocatedBounds(request); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(request.ID)
	if _, ok := s.requests[id]; !ok {
		return domainerrors.ErrRequestNotFound
	}
	s.requests[id] = cloneRequest(request)
	for _, event := range events {
		if err := s.appendOutboxLocked(event); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]ports.OutboxMessage, 0)
	for _, record := range s.outbox {
		if record.published {
			continue
		}
		items = append(items, record.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[outboxID]
	if !ok {
		return nil
	}
	record.published = true
	s.outbox[outboxID] = record
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) appendOutboxLocked(event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.outbox[event.EventID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     event.EventID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      payload,
			CreatedAt:    event.OccurredAt,
		},
	}
	return nil
}

// checkAllocatedBounds rejects any record that would no longer fit the space
// reserved at allocation time.
func checkAllocatedBounds(request entities.Request) error {
	if len(request.ID) > entities.MaxRequestIDLength {
		return domainerrors.ErrRequestIDTooLong
	}
	if len(request.Provider) > entities.MaxProviderLength {
		return domainerrors.ErrProviderTooLong
	}
	if len(request.ModelID) > entities.MaxModelIDLength {
		return domainerrors.ErrModelIDTooLong
	}
	if len(request.CallbackTargets) > entities.MaxCallbackTargets {
		return domainerrors.ErrTooManyTargets
	}
	if len(request.Votes) > entities.MaxOracleVotes {
		return domainerrors.ErrTooManyVotes
	}
	return nil
}

func cloneRequest(request entities.Request) entities.Request {
	clone := request
	clone.CallbackTargets = append([]entities.CallbackTarget(nil), request.CallbackTargets...)
	clone.Votes = append([]entities.Vote(nil), request.Votes...)
	return clone
}
