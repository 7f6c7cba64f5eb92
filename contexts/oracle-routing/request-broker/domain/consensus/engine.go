package consensus

import (
	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	domainerrors "coolrouter/contexts/oracle-routing/request-broker/domain/errors"
)

// Outcome describes the effect of applying one vote.
type Outcome struct {
	Request      entities.Request
	Resolved     bool
	WinningHash  string
	LeadingCount int
	TotalVotes   int
}

// ApplyVote appends one oracle's hash commitment and re-evaluates consensus.
// Resolution is checked after every vote, so the request closes on the exact
// vote that first satisfies both the absolute minimum and the percentage
// threshold. The input request is not mutated.
func ApplyVote(request entities.Request, oracleID string, resultHash string) (Outcome, error) {
	if request.Status != entities.StatusPending {
		return Outcome{}, domainerrors.ErrNotPending
	}
	if request.HasVoteFrom(oracleID) {
		return Outcome{}, domainerrors.ErrAlreadyVoted
	}
	if len(request.Votes) >= entities.MaxOracleVotes {
		return Outcome{}, domainerrors.ErrTooManyVotes
	}

	votes := make([]entities.Vote, 0, len(request.Votes)+1)
	votes = append(votes, request.Votes...)
	votes = append(votes, entities.Vote{OracleID: oracleID, ResultHash: resultHash})
	request.Votes = votes

	counts := CountHashes(request.Votes)
	leader, _ := Leader(counts)
	total := request.TotalVotesCast()
	percentage := VotePercentage(leader.Count, total)

	outcome := Outcome{
		Request:      request,
		LeadingCount: leader.Count,
		TotalVotes:   total,
	}
	if leader.Count >= request.MinVotes && percentage >= request.ApprovalThreshold {
		outcome.Request.WinningHash = leader.ResultHash
		outcome.Request.Status = entities.StatusVotingCompleted
		outcome.Resolved = true
		outcome.WinningHash = leader.ResultHash
	}
	return outcome, nil
}
