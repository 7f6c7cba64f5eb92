package httpadapter

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"coolrouter/contexts/oracle-routing/request-broker/application/commands"
	"coolrouter/contexts/oracle-routing/request-broker/application/queries"
	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	httptransport "coolrouter/contexts/oracle-routing/request-broker/transport/http"
)

type Handler struct {
	Lifecycle commands.LifecycleUseCase
	Status    queries.RequestStatusUseCase
	Logger    *slog.Logger
}

func (h Handler) CreateRequestHandler(
	ctx context.Context,
	req httptransport.CreateRequestRequest,
) (httptransport.RequestResponse, error) {
	messages := make([]entities.Message, 0, len(req.Messages))
	for _, message := range req.Messages {
		messages = append(messages, entities.Message{Role: message.Role, Content: message.Content})
	}
	targets := make([]entities.CallbackTarget, 0, len(req.CallbackTargets))
	for _, target := range req.CallbackTargets {
		targets = append(targets, entities.CallbackTarget{Identity: target.Identity, Writable: target.Writable})
	}

	request, err := h.Lifecycle.CreateRequest(ctx, commands.CreateRequestCommand{
		RequestID:         req.RequestID,
		RequestingParty:   req.RequestingParty,
		Provider:          req.Provider,
		ModelID:           req.ModelID,
		Messages:          messages,
		CallbackTargets:   targets,
		MinVotes:          req.MinVotes,
		ApprovalThreshold: req.ApprovalThreshold,
	})
	if err != nil {
		return httptransport.RequestResponse{}, err
	}
	return mapRequest(request), nil
}

func (h Handler) SubmitVoteHandler(
	ctx context.Context,
	requestID string,
	req httptransport.SubmitVoteRequest,
) (httptransport.SubmitVoteResponse, error) {
	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		return httptransport.SubmitVoteResponse{}, err
	}
	result, err := h.Lifecycle.SubmitVote(ctx, commands.SubmitVoteCommand{
		RequestID:  requestID,
		OracleID:   req.OracleID,
		ResultHash: req.ResultHash,
		Signature:  signature,
	})
	if err != nil {
		return httptransport.SubmitVoteResponse{}, err
	}
	return httptransport.SubmitVoteResponse{
		RequestID:      result.Request.ID,
		Status:         string(result.Request.Status),
		TotalVotesCast: result.TotalVotes,
		LeadingCount:   result.LeadingCount,
		Resolved:       result.Resolved,
		WinningHash:    result.WinningHash,
	}, nil
}

func (h Handler) FulfillRequestHandler(
	ctx context.Context,
	requestID string,
	req httptransport.FulfillRequestRequest,
) (httptransport.FulfillRequestResponse, error) {
	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		return httptransport.FulfillRequestResponse{}, err
	}
	result, err := h.Lifecycle.FulfillRequest(ctx, commands.FulfillRequestCommand{
		RequestID:        requestID,
		CallbackProgram:  req.CallbackProgram,
		ProvidedAccounts: req.ProvidedAccounts,
		Payload:          payload,
	})
	if err != nil {
		return httptransport.FulfillRequestResponse{}, err
	}
	return httptransport.FulfillRequestResponse{
		RequestID:     result.Request.ID,
		Status:        string(result.Request.Status),
		PayloadLength: result.PayloadLength,
	}, nil
}

func (h Handler) GetRequestHandler(ctx context.Context, requestID string) (httptransport.RequestResponse, error) {
	request, err := h.Status.GetRequest(ctx, requestID)
	if err != nil {
		return httptransport.RequestResponse{}, err
	}
	return mapRequest(request), nil
}

func mapRequest(request entities.Request) httptransport.RequestResponse {
	targets := make([]httptransport.CallbackTargetDTO, 0, len(request.CallbackTargets))
	for _, target := range request.CallbackTargets {
		targets = append(targets, httptransport.CallbackTargetDTO{
			Identity: target.Identity,
			Writable: target.Writable,
		})
	}
	return httptransport.RequestResponse{
		RequestID:         request.ID,
		RequestingParty:   request.RequestingParty,
		Provider:          request.Provider,
		ModelID:           request.ModelID,
		CallbackTargets:   targets,
		Status:            string(request.Status),
		CreatedAt:         request.CreatedAt.UTC().Format(time.RFC3339),
		MinVotes:          request.MinVotes,
		ApprovalThreshold: request.ApprovalThreshold,
		TotalVotesCast:    request.TotalVotesCast(),
		WinningHash:       request.WinningHash,
	}
}
