package consensus

import "coolrouter/contexts/oracle-routing/request-broker/domain/entities"

// HashCount is one distinct result hash with the number of oracles that
// reported it.
type HashCount struct {
	ResultHash string
	Count      int
}

// CountHashes groups identical result hashes across the vote list and
// preserves first-seen order, which makes tie-breaking deterministic: on
// equal counts the earliest-reported hash stays ahead.
func CountHashes(votes []entities.Vote) []HashCount {
	counts := make([]HashCount, 0, len(votes))
	index := make(map[string]int, len(votes))
	for _, vote := range votes {
		if at, seen := index[vote.ResultHash]; seen {
			counts[at].Count++
			continue
		}
		index[vote.ResultHash] = len(counts)
		counts = append(counts, HashCount{ResultHash: vote.ResultHash, Count: 1})
	}
	return counts
}

// Leader returns the hash with the maximum count. Ties are not an error:
// the first-seen hash wins because CountHashes preserves insertion order and
// the comparison is strictly greater-than.
func Leader(counts []HashCount) (HashCount, bool) {
	if len(counts) == 0 {
		return HashCount{}, false
	}
	leader := counts[0]
	for _, candidate := range counts[1:] {
		if candidate.Count > leader.Count {
			leader = candidate
		}
	}
	return leader, true
}

// VotePercentage is the integer (floored) share of all cast votes held by
// the leading hash.
func VotePercentage(leadingCount int, totalVotes int) int {
	if totalVotes == 0 {
		return 0
	}
	return leadingCount * 100 / totalVotes
}
