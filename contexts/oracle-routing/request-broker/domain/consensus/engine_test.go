package consensus

import (
	"fmt"
	"testing"

	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	domainerrors "coolrouter/contexts/oracle-routing/request-broker/domain/errors"
)

func hashOf(seed string) string {
	return entities.HashPayload([]byte(seed))
}

func pendingRequest(minVotes int, threshold int) entities.Request {
	return entities.Request{
		ID:                "req-1",
		RequestingParty:   "consumer-program",
		Status:            entities.StatusPending,
		MinVotes:          minVotes,
		ApprovalThreshold: threshold,
	}
}

func TestCountHashesPreservesFirstSeenOrder(t *testing.T) {
	votes := []entities.Vote{
		{OracleID: "o1", ResultHash: hashOf("b")},
		{OracleID: "o2", ResultHash: hashOf("a")},
		{OracleID: "o3", ResultHash: hashOf("b")},
		{OracleID: "o4", ResultHash: hashOf("a")},
	}

	counts := CountHashes(votes)
	if len(counts) != 2 {
		t.Fatalf("expected 2 distinct hashes, got %d", len(counts))
	}
	if counts[0].ResultHash != hashOf("b") || counts[0].Count != 2 {
		t.Fatalf("expected first-seen hash first with count 2, got %+v", counts[0])
	}

	leader, ok := Leader(counts)
	if !ok {
		t.Fatalf("expected a leader")
	}
	if leader.ResultHash != hashOf("b") {
		t.Fatalf("tie must resolve to earliest-reported hash, got %s", leader.ResultHash)
	}
}

func TestApplyVoteResolvesOnThresholdCrossingVote(t *testing.T) {
	request := pendingRequest(2, 60)

	first, err := ApplyVote(request, "o1", hashOf("answer"))
	if err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	if first.Resolved {
		t.Fatalf("one vote must not resolve with min_votes=2")
	}
	if first.Request.Status != entities.StatusPending {
		t.Fatalf("expected pending after first vote, got %s", first.Request.Status)
	}

	second, err := ApplyVote(first.Request, "o2", hashOf("answer"))
	if err != nil {
		t.Fatalf("second vote failed: %v", err)
	}
	if !second.Resolved {
		t.Fatalf("second agreeing vote must resolve (count=2, pct=100)")
	}
	if second.Request.Status != entities.StatusVotingCompleted {
		t.Fatalf("expected voting_completed, got %s", second.Request.Status)
	}
	if second.Request.WinningHash != hashOf("answer") {
		t.Fatalf("unexpected winning hash %s", second.Request.WinningHash)
	}
	if second.LeadingCount != 2 || second.TotalVotes != 2 {
		t.Fatalf("unexpected tallies: %+v", second)
	}
}

func TestApplyVoteRejectsDuplicateOracle(t *testing.T) {
	request := pendingRequest(3, 100)

	first, err := ApplyVote(request, "o1", hashOf("a"))
	if err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	if _, err := ApplyVote(first.Request, "o1", hashOf("b")); err != domainerrors.ErrAlreadyVoted {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	if len(first.Request.Votes) != 1 {
		t.Fatalf("rejected vote must not be recorded")
	}
}

func TestApplyVoteRejectsClosedVoting(t *testing.T) {
	request := pendingRequest(1, 1)
	request.Status = entities.StatusVotingCompleted
	request.WinningHash = hashOf("done")

	if _, err := ApplyVote(request, "o9", hashOf("late")); err != domainerrors.ErrNotPending {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
}

func TestApplyVoteEnforcesOracleCap(t *testing.T) {
	request := pendingRequest(64, 100)
	for i := 0; i < entities.MaxOracleVotes; i++ {
		request.Votes = append(request.Votes, entities.Vote{
			OracleID:   fmt.Sprintf("oracle-%d", i),
			ResultHash: hashOf(fmt.Sprintf("spread-%d", i)),
		})
	}

	if _, err := ApplyVote(request, "one-too-many", hashOf("z")); err != domainerrors.ErrTooManyVotes {
		t.Fatalf("expected ErrTooManyVotes, got %v", err)
	}
}

func TestUnanimityThresholdBlockedByDissent(t *testing.T) {
	request := pendingRequest(3, 100)

	one, err := ApplyVote(request, "o1", hashOf("agree"))
	if err != nil {
		t.Fatalf("vote 1 failed: %v", err)
	}
	two, err := ApplyVote(one.Request, "o2", hashOf("agree"))
	if err != nil {
		t.Fatalf("vote 2 failed: %v", err)
	}
	if two.Resolved {
		t.Fatalf("two votes must not satisfy min_votes=3")
	}

	three, err := ApplyVote(two.Request, "o3", hashOf("dissent"))
	if err != nil {
		t.Fatalf("vote 3 failed: %v", err)
	}
	if three.Resolved {
		t.Fatalf("2/3 agreement must not satisfy a 100%% threshold")
	}
	if three.Request.Status != entities.StatusPending {
		t.Fatalf("request must stay pending, got %s", three.Request.Status)
	}
	if three.Request.WinningHash != "" {
		t.Fatalf("winning hash must stay unset while pending")
	}
}

func TestVotePercentageFloors(t *testing.T) {
	if pct := VotePercentage(2, 3); pct != 66 {
		t.Fatalf("expected floor(200/3)=66, got %d", pct)
	}
	if pct := VotePercentage(0, 0); pct != 0 {
		t.Fatalf("expected 0 for empty vote set, got %d", pct)
	}
}
