package pebbleadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	domainerrors "coolrouter/contexts/oracle-routing/request-broker/domain/errors"
	"coolrouter/contexts/oracle-routing/request-broker/ports"

	"github.com/cockroachdb/pebble"
)

// Key prefixes
const (
	prefixReq = "req:" // req:{id} -> request JSON
	prefixObx = "obx:" // obx:{event_id} -> outbox JSON
)

// Store is a key-addressed persistent record store on pebble. A request and
// the events of its transition commit in one synced batch, and a process-wide
// mutex serializes writers so no two operations mutate one record
// concurrently.
type Store struct {
	mu sync.Mutex
	db *pebble.DB
}

type requestRow struct {
	ID                string      `json:"id"`
	RequestingParty   string      `json:"requesting_party"`
	Provider          string      `json:"provider"`
	ModelID           string      `json:"model_id"`
	CallbackTargets   []targetRow `json:"callback_targets"`
	Status            string      `json:"status"`
	CreatedAt         int64       `json:"created_at"` // Unix nano
	MinVotes          int         `json:"min_votes"`
	ApprovalThreshold int         `json:"approval_threshold"`
	Votes             []voteRow   `json:"votes"`
	WinningHash       *string     `json:"winning_hash,omitempty"`
}

type targetRow struct {
	Identity string `json:"identity"`
	Writable bool   `json:"writable"`
}

type voteRow struct {
	OracleID   string `json:"oracle_id"`
	ResultHash string `json:"result_hash"`
}

type outboxRow struct {
	OutboxID     string `json:"outbox_id"`
	EventType    string `json:"event_type"`
	PartitionKey string `json:"partition_key"`
	Payload      []byte `json:"payload"`
	Status       string `json:"status"` // pending, published
	CreatedAt    int64  `json:"created_at"`
	PublishedAt  *int64 `json:"published_at,omitempty"`
}

func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateRequestWithOutbox(_ context.Context, request entities.Request, event ports.EventEnvelope) error {
	if err := checkAllocatedBounds(request); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := []byte(prefixReq + strings.TrimSpace(request.ID))
	if _, closer, err := s.db.Get(key); err == nil {
		_ = closer.Close()
		return domainerrors.ErrRequestExists
	} else if err != pebble.ErrNotFound {
		return fmt.Errorf("lookup request: %w", err)
	}

	value, err := json.Marshal(rowFromEntity(request))
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(key, value, nil); err != nil {
		return err
	}
	if err := appendOutboxToBatch(batch, event); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *Store) GetRequest(_ context.Context, requestID string) (entities.Request, error) {
	value, closer, err := s.db.Get([]byte(prefixReq + strings.TrimSpace(requestID)))
	if err == pebble.ErrNotFound {
		return entities.Request{}, domainerrors.ErrRequestNotFound
	}
	if err != nil {
		return entities.Request{}, fmt.Errorf("lookup request: %w", err)
	}
	defer closer.Close()

	var row requestRow
	if err := json.Unmarshal(value, &row); err != nil {
		return entities.Request{}, err
	}
	return row.toEntity(), nil
}

func (s *Store) UpdateRequestWithOutbox(_ context.Context, request entities.Request, events []ports.EventEnvelope) error {
	if err := checkAllocatedBounds(request); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := []byte(prefixReq + strings.TrimSpace(request.ID))
	if _, closer, err := s.db.Get(key); err == pebble.ErrNotFound {
		return domainerrors.ErrRequestNotFound
	} else if err != nil {
		return fmt.Errorf("lookup request: %w", err)
	} else {
		_ = closer.Close()
	}

	value, err := json.Marshal(rowFromEntity(request))
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(key, value, nil); err != nil {
		return err
	}
	for _, event := range events {
		if err := appendOutboxToBatch(batch, event); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefixObx),
		UpperBound: []byte(prefixObx + "\xff"),
	})
	if err != nil {
		return nil, fmt.Errorf("open outbox iterator: %w", err)
	}
	defer iter.Close()

	items := make([]ports.OutboxMessage, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		var row outboxRow
		if err := json.Unmarshal(iter.Value(), &row); err != nil {
			return nil, err
		}
		if row.Status != "pending" {
			continue
		}
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    time.Unix(0, row.CreatedAt).UTC(),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := []byte(prefixObx + outboxID)
	value, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup outbox row: %w", err)
	}
	var row outboxRow
	unmarshalErr := json.Unmarshal(value, &row)
	_ = closer.Close()
	if unmarshalErr != nil {
		return unmarshalErr
	}

	at := publishedAt.UTC().UnixNano()
	row.Status = "published"
	row.PublishedAt = &at
	updated, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return s.db.Set(key, updated, pebble.Sync)
}

func appendOutboxToBatch(batch *pebble.Batch, event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	row := outboxRow{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		Status:       "pending",
		CreatedAt:    event.OccurredAt.UTC().UnixNano(),
	}
	value, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return batch.Set([]byte(prefixObx+event.EventID), value, nil)
}

// checkAllocatedBounds mirrors the fixed-size allocation rule: a record may
// never grow past the space declared for it.
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

func rowFromEntity(request entities.Request) requestRow {
	targets := make([]targetRow, 0, len(request.CallbackTargets))
	for _, target := range request.CallbackTargets {
		targets = append(targets, targetRow{Identity: target.Identity, Writable: target.Writable})
	}
	votes := make([]voteRow, 0, len(request.Votes))
	for _, vote := range request.Votes {
		votes = append(votes, voteRow{OracleID: vote.OracleID, ResultHash: vote.ResultHash})
	}
	var winning *string
	if request.WinningHash != "" {
		value := request.WinningHash
		winning = &value
	}
	return requestRow{
		ID:                request.ID,
		RequestingParty:   request.RequestingParty,
		Provider:          request.Provider,
		ModelID:           request.ModelID,
		CallbackTargets:   targets,
		Status:            string(request.Status),
		CreatedAt:         request.CreatedAt.UnixNano(),
		MinVotes:          request.MinVotes,
		ApprovalThreshold: request.ApprovalThreshold,
		Votes:             votes,
		WinningHash:       winning,
	}
}

func (row requestRow) toEntity() entities.Request {
	targets := make([]entities.CallbackTarget, 0, len(row.CallbackTargets))
	for _, target := range row.CallbackTargets {
		targets = append(targets, entities.CallbackTarget{Identity: target.Identity, Writable: target.Writable})
	}
	votes := make([]entities.Vote, 0, len(row.Votes))
	for _, vote := range row.Votes {
		votes = append(votes, entities.Vote{OracleID: vote.OracleID, ResultHash: vote.ResultHash})
	}
	winning := ""
	if row.WinningHash != nil {
		winning = *row.WinningHash
	}
	return entities.Request{
		ID:                row.ID,
		RequestingParty:   row.RequestingParty,
		Provider:          row.Provider,
		ModelID:           row.ModelID,
		CallbackTargets:   targets,
		Status:            entities.RequestStatus(row.Status),
		CreatedAt:         time.Unix(0, row.CreatedAt).UTC(),
		MinVotes:          row.MinVotes,
		ApprovalThreshold: row.ApprovalThreshold,
		Votes:             votes,
		WinningHash:       winning,
	}
}
