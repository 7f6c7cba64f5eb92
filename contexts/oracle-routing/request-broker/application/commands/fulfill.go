package commands

import (
	"context"
	"fmt"
	"strings"

	application "coolrouter/contexts/oracle-routing/request-broker/application"
	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	domainerrors "coolrouter/contexts/oracle-routing/request-broker/domain/errors"
	"coolrouter/contexts/oracle-routing/request-broker/ports"
)

// FulfillRequestCommand carries the winning payload and the caller's view of
// the callback route. The caller itself is unauthenticated: anyone may
// finalize a resolved request because the payload is only trusted after it
// hashes to the committed winning hash.
type FulfillRequestCommand struct {
	RequestID        string
	CallbackProgram  string
	ProvidedAccounts []string
	Payload          []byte
}

// FulfillRequestResult reports the terminal record and the dispatched
// payload length (event logs carry length, never content).
type FulfillRequestResult struct {
	Request       entities.Request
	PayloadLength int
}

// FulfillRequest verifies the payload against the winning hash, verifies the
// callback route against the creation-time declaration, dispatches the
// callback and only then marks the record fulfilled. A dispatch failure
// aborts the whole operation with no state change.
func (uc LifecycleUseCase) FulfillRequest(ctx context.Context, cmd FulfillRequestCommand) (FulfillRequestResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	requestID := strings.TrimSpace(cmd.RequestID)
	logger.Info("fulfill processing started",
		"event", "broker_fulfill_started",
		"module", "oracle-routing/request-broker",
		"layer", "application",
		"request_id", requestID,
		"callback_program", cmd.CallbackProgram,
		"payload_length", len(cmd.Payload),
	)

	if requestID == "" {
		return FulfillRequestResult{}, domainerrors.ErrRequestIDRequired
	}

	request, err := uc.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return FulfillRequestResult{}, err
	}

	if request.Status != entities.StatusVotingCompleted {
		logger.Warn("fulfill rejected: wrong status",
			"event", "broker_fulfill_wrong_status",
			"module", "oracle-routing/request-broker",
			"layer", "application",
			"request_id", requestID,
			"status", string(request.Status),
		)
		return FulfillRequestResult{}, domainerrors.ErrVotingNotCompleted
	}
	// Invariant check: a voting_completed record always has a winning hash.
	if request.WinningHash == "" {
		return FulfillRequestResult{}, domainerrors.ErrWinningHashMissing
	}
	if entities.HashPayload(cmd.Payload) != request.WinningHash {
		logger.Warn("fulfill rejected: payload hash mismatch",
			"event", "broker_fulfill_hash_mismatch",
			"module", "oracle-routing/request-broker",
			"layer", "application",
			"request_id", requestID,
		)
		return FulfillRequestResult{}, domainerrors.ErrPayloadHashMismatch
	}
	if cmd.CallbackProgram != request.RequestingParty {
		return FulfillRequestResult{}, domainerrors.ErrCallbackProgramMismatch
	}
	if len(cmd.ProvidedAccounts) != len(request.CallbackTargets) {
		return FulfillRequestResult{}, domainerrors.ErrCallbackTargetMismatch
	}
	for i, target := range request.CallbackTargets {
		if cmd.ProvidedAccounts[i] != target.Identity {
			return FulfillRequestResult{}, domainerrors.ErrCallbackTargetMismatch
		}
	}

	invocation, err := BuildCallbackInvocation(request, cmd.Payload)
	if err != nil {
		return FulfillRequestResult{}, err
	}
	if err := uc.Invoker.Invoke(ctx, invocation); err != nil {
		logger.Warn("callback dispatch rejected",
			"event", "broker_fulfill_dispatch_rejected",
			"module", "oracle-routing/request-broker",
			"layer", "application",
			"request_id", requestID,
			"callback_program", request.RequestingParty,
			"error", err.Error(),
		)
		return FulfillRequestResult{}, fmt.Errorf("%w: %v", domainerrors.ErrCallbackDispatchRejected, err)
	}

	request.Status = entities.StatusFulfilled

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return FulfillRequestResult{}, err
	}
	event, err := newBrokerEnvelope(eventID, TopicRequestFulfilled, requestID, uc.now(), map[string]any{
		"request_id":     requestID,
		"payload_length": len(cmd.Payload),
	})
	if err != nil {
		return FulfillRequestResult{}, err
	}
	if err := uc.Requests.UpdateRequestWithOutbox(ctx, request, []ports.EventEnvelope{event}); err != nil {
		return FulfillRequestResult{}, err
	}

	logger.Info("request fulfilled",
		"event", "broker_request_fulfilled",
		"module", "oracle-routing/request-broker",
		"layer", "application",
		"request_id", requestID,
		"payload_length", len(cmd.Payload),
	)
	return FulfillRequestResult{Request: request, PayloadLength: len(cmd.Payload)}, nil
}
