package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "coolrouter/contexts/oracle-routing/llm-consumer/application"
	"coolrouter/contexts/oracle-routing/llm-consumer/domain/entities"
	domainerrors "coolrouter/contexts/oracle-routing/llm-consumer/domain/errors"
	"coolrouter/contexts/oracle-routing/llm-consumer/ports"
)

const (
	defaultProvider = "openai"
	defaultModelID  = "gpt-4"

	// responsePreviewLimit bounds the preview carried on response.received
	// events.
	responsePreviewLimit = 100

	TopicResponseReceived = "response.received"
)

// ConsumerUseCase implements the requester side of the oracle flow: it
// forwards prompts to the broker as create-request calls and receives the
// attested payload back through the callback endpoint.
type ConsumerUseCase struct {
	// ProgramID is this consumer's own program identity; the broker records
	// it as the requesting party and the dispatcher addresses the callback to
	// it.
	ProgramID string
	States    ports.ConsumerStateRepository
	Submitter ports.RequestSubmitter
	Events    ports.EventPublisher
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// RequestLLMResponseCommand starts one LLM query.
type RequestLLMResponseCommand struct {
	RequestID         string
	Prompt            string
	Authority         string
	MinVotes          int
	ApprovalThreshold int
}

// LLMCallbackCommand is the decoded callback delivered by the broker's
// dispatcher.
type LLMCallbackCommand struct {
	RequestID    string
	Payload      []byte
	StateAccount string
}

// StateAccountID derives the deterministic identity of the consumer-state
// record declared as the callback target.
func StateAccountID(authority string, requestID string) string {
	return "consumer-state:" + authority + ":" + requestID
}

// RequestLLMResponse stores the pending query and forwards it to the broker
// with the consumer's state record as the sole writable callback target. A
// rejected forward removes the stored state again.
func (uc ConsumerUseCase) RequestLLMResponse(ctx context.Context, cmd RequestLLMResponseCommand) (entities.ConsumerState, error) {
	logger := application.ResolveLogger(uc.Logger)
	requestID := strings.TrimSpace(cmd.RequestID)
	logger.Info("llm request processing started",
		"event", "consumer_request_started",
		"module", "oracle-routing/llm-consumer",
		"layer", "application",
		"request_id", requestID,
		"authority", cmd.Authority,
	)

	if requestID == "" {
		return entities.ConsumerState{}, domainerrors.ErrRequestIDRequired
	}
	if strings.TrimSpace(cmd.Prompt) == "" {
		return entities.ConsumerState{}, domainerrors.ErrPromptRequired
	}
	if cmd.MinVotes < 1 || cmd.ApprovalThreshold < 1 || cmd.ApprovalThreshold > 100 {
		return entities.ConsumerState{}, domainerrors.ErrInvalidVoteParameters
	}

	now := uc.now()
	state := entities.ConsumerState{
		RequestID:    requestID,
		Prompt:       cmd.Prompt,
		StateAccount: StateAccountID(cmd.Authority, requestID),
		Authority:    cmd.Authority,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.States.CreateState(ctx, state); err != nil {
		return entities.ConsumerState{}, err
	}

	submission := ports.LLMRequestSubmission{
		RequestID:       requestID,
		RequestingParty: uc.ProgramID,
		Provider:        defaultProvider,
		ModelID:         defaultModelID,
		Messages: []ports.MessageInput{
			{Role: "user", Content: cmd.Prompt},
		},
		CallbackTargets: []ports.CallbackAccountInput{
			{Identity: state.StateAccount, Writable: true},
		},
		MinVotes:          cmd.MinVotes,
		ApprovalThreshold: cmd.ApprovalThreshold,
	}
	if err := uc.Submitter.SubmitRequest(ctx, submission); err != nil {
		logger.Warn("broker forward rejected; removing pending state",
			"event", "consumer_request_forward_rejected",
			"module", "oracle-routing/llm-consumer",
			"layer", "application",
			"request_id", requestID,
			"error", err.Error(),
		)
		if deleteErr := uc.States.DeleteState(ctx, requestID); deleteErr != nil {
			logger.Error("pending state compensation failed",
				"event", "consumer_request_compensation_failed",
				"module", "oracle-routing/llm-consumer",
				"layer", "application",
				"request_id", requestID,
				"error", deleteErr.Error(),
			)
		}
		return entities.ConsumerState{}, err
	}

	logger.Info("llm request forwarded",
		"event", "consumer_request_forwarded",
		"module", "oracle-routing/llm-consumer",
		"layer", "application",
		"request_id", requestID,
		"state_account", state.StateAccount,
	)
	return state, nil
}

// LLMCallback stores the attested payload for a pending query. The request
// id must match an existing record and the callback must be addressed to
// that record's state account.
func (uc ConsumerUseCase) LLMCallback(ctx context.Context, cmd LLMCallbackCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	requestID := strings.TrimSpace(cmd.RequestID)
	logger.Info("llm callback received",
		"event", "consumer_callback_received",
		"module", "oracle-routing/llm-consumer",
		"layer", "application",
		"request_id", requestID,
		"payload_length", len(cmd.Payload),
	)

	if requestID == "" {
		return domainerrors.ErrRequestIDRequired
	}
	state, err := uc.States.GetState(ctx, requestID)
	if err != nil {
		return err
	}
	if state.RequestID != requestID {
		return domainerrors.ErrRequestIDMismatch
	}
	if cmd.StateAccount != state.StateAccount {
		logger.Warn("callback addressed to wrong state account",
			"event", "consumer_callback_wrong_account",
			"module", "oracle-routing/llm-consumer",
			"layer", "application",
			"request_id", requestID,
			"state_account", cmd.StateAccount,
		)
		return domainerrors.ErrStateAccountMismatch
	}

	now := uc.now()
	state.Response = append([]byte(nil), cmd.Payload...)
	state.HasResponse = true
	state.UpdatedAt = now
	if err := uc.States.SaveState(ctx, state); err != nil {
		return err
	}

	if err := uc.publishResponseReceived(ctx, state, now); err != nil {
		return err
	}
	logger.Info("llm response stored",
		"event", "consumer_response_stored",
		"module", "oracle-routing/llm-consumer",
		"layer", "application",
		"request_id", requestID,
		"payload_length", len(cmd.Payload),
	)
	return nil
}

// GetResponse returns the stored payload, failing while none arrived yet.
func (uc ConsumerUseCase) GetResponse(ctx context.Context, requestID string) ([]byte, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, domainerrors.ErrRequestIDRequired
	}
	state, err := uc.States.GetState(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !state.HasResponse {
		return nil, domainerrors.ErrNoResponse
	}
	return append([]byte(nil), state.Response...), nil
}

func (uc ConsumerUseCase) publishResponseReceived(ctx context.Context, state entities.ConsumerState, occurredAt time.Time) error {
	// Event publication is optional for pure test wiring, so nil is a no-op.
	if uc.Events == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	preview := string(state.Response)
	if len(preview) > responsePreviewLimit {
		preview = preview[:responsePreviewLimit]
	}
	data, err := json.Marshal(map[string]any{
		"request_id":       state.RequestID,
		"response_preview": preview,
	})
	if err != nil {
		return err
	}
	return uc.Events.Publish(ctx, TopicResponseReceived, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        TopicResponseReceived,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "llm-consumer",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "request_id",
		PartitionKey:     state.RequestID,
		Data:             data,
	})
}

func (uc ConsumerUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
