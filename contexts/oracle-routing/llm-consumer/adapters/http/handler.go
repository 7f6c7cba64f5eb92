package httpadapter

import (
	"context"
	"encoding/base64"
	"log/slog"

	"coolrouter/contexts/oracle-routing/llm-consumer/application/commands"
	httptransport "coolrouter/contexts/oracle-routing/llm-consumer/transport/http"
)

type Handler struct {
	Consumer commands.ConsumerUseCase
	Logger   *slog.Logger
}

func (h Handler) RequestLLMResponseHandler(
	ctx context.Context,
	req httptransport.RequestLLMResponseRequest,
) (httptransport.RequestLLMResponseResponse, error) {
	state, err := h.Consumer.RequestLLMResponse(ctx, commands.RequestLLMResponseCommand{
		RequestID:         req.RequestID,
		Prompt:            req.Prompt,
		Authority:         req.Authority,
		MinVotes:          req.MinVotes,
		ApprovalThreshold: req.ApprovalThreshold,
	})
	if err != nil {
		return httptransport.RequestLLMResponseResponse{}, err
	}
	return httptransport.RequestLLMResponseResponse{
		RequestID:    state.RequestID,
		StateAccount: state.StateAccount,
		HasResponse:  state.HasResponse,
	}, nil
}

func (h Handler) GetResponseHandler(ctx context.Context, requestID string) (httptransport.GetResponseResponse, error) {
	payload, err := h.Consumer.GetResponse(ctx, requestID)
	if err != nil {
		return httptransport.GetResponseResponse{}, err
	}
	return httptransport.GetResponseResponse{
		RequestID: requestID,
		Response:  base64.StdEncoding.EncodeToString(payload),
	}, nil
}
