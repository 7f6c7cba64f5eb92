package commands

import (
	"context"
	"strings"

	application "coolrouter/contexts/oracle-routing/request-broker/application"
	"coolrouter/contexts/oracle-routing/request-broker/domain/consensus"
	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	domainerrors "coolrouter/contexts/oracle-routing/request-broker/domain/errors"
	"coolrouter/contexts/oracle-routing/request-broker/ports"
)

// SubmitVoteCommand is one oracle's hash commitment plus the proof that the
// caller controls the oracle identity.
type SubmitVoteCommand struct {
	RequestID  string
	OracleID   string
	ResultHash string
	Signature  []byte
}

// SubmitVoteResult returns the post-vote record and resolution markers the
// transport layer maps to API semantics.
type SubmitVoteResult struct {
	Request      entities.Request
	Resolved     bool
	WinningHash  string
	LeadingCount int
	TotalVotes   int
}

// VoteSigningMessage is the canonical byte string an oracle signs to
// authenticate one vote. Clients and the verifier must agree on this form.
func VoteSigningMessage(requestID string, resultHash string) []byte {
	return []byte("vote:" + requestID + ":" + resultHash)
}

// SubmitVote authenticates the oracle, applies the vote through the consensus
// engine and persists the updated record. When the vote crosses both
// thresholds the same transaction records the winning hash and emits
// voting.completed.
func (uc LifecycleUseCase) SubmitVote(ctx context.Context, cmd SubmitVoteCommand) (SubmitVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	requestID := strings.TrimSpace(cmd.RequestID)
	oracleID := strings.TrimSpace(cmd.OracleID)
	resultHash := strings.ToLower(strings.TrimSpace(cmd.ResultHash))
	logger.Info("vote processing started",
		"event", "broker_vote_started",
		"module", "oracle-routing/request-broker",
		"layer", "application",
		"request_id", requestID,
		"oracle_id", oracleID,
	)

	if requestID == "" {
		return SubmitVoteResult{}, domainerrors.ErrRequestIDRequired
	}
	if !entities.IsValidResultHash(resultHash) {
		return SubmitVoteResult{}, domainerrors.ErrInvalidResultHash
	}

	verified, err := uc.Signers.Verify(ctx, oracleID, VoteSigningMessage(requestID, resultHash), cmd.Signature)
	if err != nil {
		logger.Error("oracle verification errored",
			"event", "broker_vote_verify_errored",
			"module", "oracle-routing/request-broker",
			"layer", "application",
			"request_id", requestID,
			"oracle_id", oracleID,
			"error", err.Error(),
		)
		return SubmitVoteResult{}, err
	}
	if !verified {
		logger.Warn("oracle verification rejected",
			"event", "broker_vote_verify_rejected",
			"module", "oracle-routing/request-broker",
			"layer", "application",
			"request_id", requestID,
			"oracle_id", oracleID,
		)
		return SubmitVoteResult{}, domainerrors.ErrOracleNotVerified
	}

	request, err := uc.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return SubmitVoteResult{}, err
	}

	outcome, err := consensus.ApplyVote(request, oracleID, resultHash)
	if err != nil {
		logger.Warn("vote rejected by consensus preconditions",
			"event", "broker_vote_rejected",
			"module", "oracle-routing/request-broker",
			"layer", "application",
			"request_id", requestID,
			"oracle_id", oracleID,
			"error", err.Error(),
		)
		return SubmitVoteResult{}, err
	}

	var events []ports.EventEnvelope
	if outcome.Resolved {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return SubmitVoteResult{}, err
		}
		event, err := newBrokerEnvelope(eventID, TopicVotingCompleted, requestID, uc.now(), map[string]any{
			"request_id":   requestID,
			"winning_hash": outcome.WinningHash,
			"vote_count":   outcome.LeadingCount,
			"total_votes":  outcome.TotalVotes,
		})
		if err != nil {
			return SubmitVoteResult{}, err
		}
		events = append(events, event)
	}

	if err := uc.Requests.UpdateRequestWithOutbox(ctx, outcome.Request, events); err != nil {
		return SubmitVoteResult{}, err
	}

	logger.Info("vote recorded",
		"event", "broker_vote_recorded",
		"module", "oracle-routing/request-broker",
		"layer", "application",
		"request_id", requestID,
		"oracle_id", oracleID,
		"total_votes", outcome.TotalVotes,
		"leading_count", outcome.LeadingCount,
		"resolved", outcome.Resolved,
	)
	if outcome.Resolved {
		logger.Info("voting completed",
			"event", "broker_voting_completed",
			"module", "oracle-routing/request-broker",
			"layer", "application",
			"request_id", requestID,
			"winning_hash", outcome.WinningHash,
			"vote_count", outcome.LeadingCount,
			"total_votes", outcome.TotalVotes,
		)
	}
	return SubmitVoteResult{
		Request:      outcome.Request,
		Resolved:     outcome.Resolved,
		WinningHash:  outcome.WinningHash,
		LeadingCount: outcome.LeadingCount,
		TotalVotes:   outcome.TotalVotes,
	}, nil
}
