package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	llmconsumer "coolrouter/contexts/oracle-routing/llm-consumer"
	consumererrors "coolrouter/contexts/oracle-routing/llm-consumer/domain/errors"
	consumerhttp "coolrouter/contexts/oracle-routing/llm-consumer/transport/http"
	requestbroker "coolrouter/contexts/oracle-routing/request-broker"
	brokererrors "coolrouter/contexts/oracle-routing/request-broker/domain/errors"
	brokerhttp "coolrouter/contexts/oracle-routing/request-broker/transport/http"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	broker   requestbroker.Module
	consumer llmconsumer.Module
}

func New(
	broker requestbroker.Module,
	consumer llmconsumer.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		broker:   broker,
		consumer: consumer,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routed mux for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /v1/requests", s.handleCreateRequest)
	s.mux.HandleFunc("GET /v1/requests/{request_id}", s.handleGetRequest)
	s.mux.HandleFunc("POST /v1/requests/{request_id}/votes", s.handleSubmitVote)
	s.mux.HandleFunc("POST /v1/requests/{request_id}/fulfill", s.handleFulfillRequest)

	s.mux.HandleFunc("POST /v1/consumer/requests", s.handleConsumerRequest)
	s.mux.HandleFunc("GET /v1/consumer/requests/{request_id}/response", s.handleConsumerResponse)
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req brokerhttp.CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBrokerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.broker.Handler.CreateRequestHandler(r.Context(), req)
	if err != nil {
		writeBrokerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	resp, err := s.broker.Handler.GetRequestHandler(r.Context(), requestID)
	if err != nil {
		writeBrokerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	var req brokerhttp.SubmitVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBrokerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if _, err := base64.StdEncoding.DecodeString(req.Signature); err != nil {
		writeBrokerError(w, http.StatusBadRequest, "invalid_signature_encoding", "signature must be base64")
		return
	}

	requestID := r.PathValue("request_id")
	resp, err := s.broker.Handler.SubmitVoteHandler(r.Context(), requestID, req)
	if err != nil {
		writeBrokerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFulfillRequest(w http.ResponseWriter, r *http.Request) {
	var req brokerhttp.FulfillRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBrokerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if _, err := base64.StdEncoding.DecodeString(req.Payload); err != nil {
		writeBrokerError(w, http.StatusBadRequest, "invalid_payload_encoding", "payload must be base64")
		return
	}

	requestID := r.PathValue("request_id")
	resp, err := s.broker.Handler.FulfillRequestHandler(r.Context(), requestID, req)
	if err != nil {
		writeBrokerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConsumerRequest(w http.ResponseWriter, r *http.Request) {
	var req consumerhttp.RequestLLMResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeConsumerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.consumer.Handler.RequestLLMResponseHandler(r.Context(), req)
	if err != nil {
		writeConsumerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleConsumerResponse(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	resp, err := s.consumer.Handler.GetResponseHandler(r.Context(), requestID)
	if err != nil {
		writeConsumerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeBrokerDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, brokererrors.ErrRequestIDRequired),
		errors.Is(err, brokererrors.ErrRequestIDTooLong),
		errors.Is(err, brokererrors.ErrProviderTooLong),
		errors.Is(err, brokererrors.ErrModelIDTooLong),
		errors.Is(err, brokererrors.ErrTooManyMessages),
		errors.Is(err, brokererrors.ErrTooManyTargets),
		errors.Is(err, brokererrors.ErrInvalidMinVotes),
		errors.Is(err, brokererrors.ErrInvalidThreshold):
		writeBrokerError(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	case errors.Is(err, brokererrors.ErrInvalidResultHash):
		writeBrokerError(w, http.StatusUnprocessableEntity, "invalid_result_hash", err.Error())
	case errors.Is(err, brokererrors.ErrRequestNotFound):
		writeBrokerError(w, http.StatusNotFound, "request_not_found", err.Error())
	case errors.Is(err, brokererrors.ErrRequestExists):
		writeBrokerError(w, http.StatusConflict, "request_exists", err.Error())
	case errors.Is(err, brokererrors.ErrNotPending):
		writeBrokerError(w, http.StatusConflict, "voting_closed", err.Error())
	case errors.Is(err, brokererrors.ErrAlreadyVoted):
		writeBrokerError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, brokererrors.ErrTooManyVotes):
		writeBrokerError(w, http.StatusConflict, "vote_limit_reached", err.Error())
	case errors.Is(err, brokererrors.ErrOracleNotVerified):
		writeBrokerError(w, http.StatusUnauthorized, "oracle_not_verified", err.Error())
	case errors.Is(err, brokererrors.ErrVotingNotCompleted):
		writeBrokerError(w, http.StatusConflict, "voting_not_completed", err.Error())
	case errors.Is(err, brokererrors.ErrWinningHashMissing):
		writeBrokerError(w, http.StatusConflict, "winning_hash_missing", err.Error())
	case errors.Is(err, brokererrors.ErrPayloadHashMismatch):
		writeBrokerError(w, http.StatusUnprocessableEntity, "payload_hash_mismatch", err.Error())
	case errors.Is(err, brokererrors.ErrCallbackProgramMismatch):
		writeBrokerError(w, http.StatusUnprocessableEntity, "callback_program_mismatch", err.Error())
	case errors.Is(err, brokererrors.ErrCallbackTargetMismatch):
		writeBrokerError(w, http.StatusUnprocessableEntity, "callback_target_mismatch", err.Error())
	case errors.Is(err, brokererrors.ErrCallbackDispatchRejected):
		writeBrokerError(w, http.StatusBadGateway, "callback_rejected", err.Error())
	default:
		writeBrokerError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeConsumerDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, consumererrors.ErrRequestIDRequired),
		errors.Is(err, consumererrors.ErrPromptRequired),
		errors.Is(err, consumererrors.ErrInvalidVoteParameters):
		writeConsumerError(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	case errors.Is(err, consumererrors.ErrStateExists):
		writeConsumerError(w, http.StatusConflict, "state_exists", err.Error())
	case errors.Is(err, consumererrors.ErrStateNotFound):
		writeConsumerError(w, http.StatusNotFound, "state_not_found", err.Error())
	case errors.Is(err, consumererrors.ErrNoResponse):
		writeConsumerError(w, http.StatusNotFound, "no_response", err.Error())
	case errors.Is(err, consumererrors.ErrRequestIDMismatch),
		errors.Is(err, consumererrors.ErrStateAccountMismatch):
		writeConsumerError(w, http.StatusUnprocessableEntity, "callback_mismatch", err.Error())
	default:
		writeConsumerError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeBrokerError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, brokerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeConsumerError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, consumerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
