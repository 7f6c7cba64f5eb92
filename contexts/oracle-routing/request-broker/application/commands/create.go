package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "coolrouter/contexts/oracle-routing/request-broker/application"
	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	domainerrors "coolrouter/contexts/oracle-routing/request-broker/domain/errors"
	"coolrouter/contexts/oracle-routing/request-broker/ports"
)

// LifecycleUseCase orchestrates the request state machine: create, vote,
// fulfill. Every operation is all-or-nothing; validation happens before any
// write and a failed write leaves no partial state behind.
type LifecycleUseCase struct {
	Requests ports.RequestRepository
	Signers  ports.SignerVerifier
	Invoker  ports.CallbackInvoker
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

// CreateRequestCommand is the write-model input for request creation.
type CreateRequestCommand struct {
	RequestID         string
	RequestingParty   string
	Provider          string
	ModelID           string
	Messages          []entities.Message
	CallbackTargets   []entities.CallbackTarget
	MinVotes          int
	ApprovalThreshold int
}

// CreateRequest validates every declared bound, allocates the pending record
// and emits request.created in the same transaction.
func (uc LifecycleUseCase) CreateRequest(ctx context.Context, cmd CreateRequestCommand) (entities.Request, error) {
	logger := application.ResolveLogger(uc.Logger)
	requestID := strings.TrimSpace(cmd.RequestID)
	logger.Info("request create processing started",
		"event", "broker_request_create_started",
		"module", "oracle-routing/request-broker",
		"layer", "application",
		"request_id", requestID,
		"requesting_party", cmd.RequestingParty,
		"provider", cmd.Provider,
		"model_id", cmd.ModelID,
	)

	if requestID == "" {
		return entities.Request{}, domainerrors.ErrRequestIDRequired
	}
	if len(requestID) > entities.MaxRequestIDLength {
		return entities.Request{}, domainerrors.ErrRequestIDTooLong
	}
	if len(cmd.Provider) > entities.MaxProviderLength {
		return entities.Request{}, domainerrors.ErrProviderTooLong
	}
	if len(cmd.ModelID) > entities.MaxModelIDLength {
		return entities.Request{}, domainerrors.ErrModelIDTooLong
	}
	if len(cmd.Messages) > entities.MaxMessages {
		return entities.Request{}, domainerrors.ErrTooManyMessages
	}
	if len(cmd.CallbackTargets) > entities.MaxCallbackTargets {
		return entities.Request{}, domainerrors.ErrTooManyTargets
	}
	if cmd.MinVotes < 1 {
		return entities.Request{}, domainerrors.ErrInvalidMinVotes
	}
	if cmd.ApprovalThreshold < entities.MinApprovalThreshold ||
		cmd.ApprovalThreshold > entities.MaxApprovalThreshold {
		return entities.Request{}, domainerrors.ErrInvalidThreshold
	}

	now := uc.now()
	// Targets are captured verbatim: order and writable flags are frozen here
	// and fulfill must later address exactly this list.
	targets := make([]entities.CallbackTarget, len(cmd.CallbackTargets))
	copy(targets, cmd.CallbackTargets)

	request := entities.Request{
		ID:                requestID,
		RequestingParty:   cmd.RequestingParty,
		Provider:          cmd.Provider,
		ModelID:           cmd.ModelID,
		CallbackTargets:   targets,
		Status:            entities.StatusPending,
		CreatedAt:         now,
		MinVotes:          cmd.MinVotes,
		ApprovalThreshold: cmd.ApprovalThreshold,
	}

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Request{}, err
	}
	messages := make([]map[string]string, 0, len(cmd.Messages))
	for _, message := range cmd.Messages {
		messages = append(messages, map[string]string{
			"role":    message.Role,
			"content": message.Content,
		})
	}
	event, err := newBrokerEnvelope(eventID, TopicRequestCreated, requestID, now, map[string]any{
		"request_id":         requestID,
		"requesting_party":   cmd.RequestingParty,
		"provider":           cmd.Provider,
		"model_id":           cmd.ModelID,
		"messages":           messages,
		"min_votes":          cmd.MinVotes,
		"approval_threshold": cmd.ApprovalThreshold,
	})
	if err != nil {
		return entities.Request{}, err
	}

	if err := uc.Requests.CreateRequestWithOutbox(ctx, request, event); err != nil {
		logger.Warn("request create persistence failed",
			"event", "broker_request_create_failed",
			"module", "oracle-routing/request-broker",
			"layer", "application",
			"request_id", requestID,
			"error", err.Error(),
		)
		return entities.Request{}, err
	}

	logger.Info("request created",
		"event", "broker_request_created",
		"module", "oracle-routing/request-broker",
		"layer", "application",
		"request_id", requestID,
		"requesting_party", cmd.RequestingParty,
		"min_votes", cmd.MinVotes,
		"approval_threshold", cmd.ApprovalThreshold,
		"callback_targets", len(targets),
	)
	return request, nil
}

func (uc LifecycleUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
