package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"coolrouter/contexts/oracle-routing/llm-consumer/domain/entities"
	domainerrors "coolrouter/contexts/oracle-routing/llm-consumer/domain/errors"

	"github.com/google/uuid"
)

// Store keeps consumer state in memory behind one mutex.
type Store struct {
	mu     sync.RWMutex
	states map[string]entities.ConsumerState
}

func NewStore() *Store {
	return &Store{
		states: make(map[string]entities.ConsumerState),
	}
}

func (s *Store) CreateState(_ context.Context, state entities.ConsumerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := strings.TrimSpace(state.RequestID)
	if _, exists := s.states[id]; exists {
		return domainerrors.ErrStateExists
	}
	s.states[id] = cloneState(state)
	return nil
}

func (s *Store) GetState(_ context.Context, requestID string) (entities.ConsumerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[strings.TrimSpace(requestID)]
	if !ok {
		return entities.ConsumerState{}, domainerrors.ErrStateNotFound
	}
	return cloneState(state), nil
}

func (s *Store) SaveState(_ context.Context, state entities.ConsumerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := strings.TrimSpace(state.RequestID)
	if _, ok := s.states[id]; !ok {
		return domainerrors.ErrStateNotFound
	}
	s.states[id] = cloneState(state)
	return nil
}

func (s *Store) DeleteState(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, strings.TrimSpace(requestID))
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func cloneState(state entities.ConsumerState) entities.ConsumerState {
	clone := state
	clone.Response = append([]byte(nil), state.Response...)
	return clone
}
