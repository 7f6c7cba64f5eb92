package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Storage for a request is allocated once with fixed maximum space, so every
// variable-length field carries a hard cap enforced before any write.
const (
	MaxRequestIDLength = 64
	MaxProviderLength  = 64
	MaxModelIDLength   = 64
	MaxMessages        = 50
	MaxCallbackTargets = 32
	MaxOracleVotes     = 32

	MinApprovalThreshold = 1
	MaxApprovalThreshold = 100

	// ResultHashLength is the hex length of a SHA-256 commitment.
	ResultHashLength = 64
)

type RequestStatus string

const (
	StatusPending         RequestStatus = "pending"
	StatusVotingCompleted RequestStatus = "voting_completed"
	StatusFulfilled       RequestStatus = "fulfilled"
)

// Message is one item of the task payload forwarded to the external model.
// Opaque to the broker beyond the per-request count cap.
type Message struct {
	Role    string
	Content string
}

// CallbackTarget is one account the fulfillment callback must touch, captured
// verbatim at creation: identity plus whether the callback may write to it.
type CallbackTarget struct {
	Identity string
	Writable bool
}

// Vote is a single oracle's hash commitment to the externally computed
// result. Votes are append-only and never revised.
type Vote struct {
	OracleID   string
	ResultHash string
}

// Request tracks one LLM request through pending -> voting_completed ->
// fulfilled. Status only moves forward; WinningHash is set exactly once, at
// the voting_completed transition.
type Request struct {
	ID                string
	RequestingParty   string
	Provider          string
	ModelID           string
	CallbackTargets   []CallbackTarget
	Status            RequestStatus
	CreatedAt         time.Time
	MinVotes          int
	ApprovalThreshold int
	Votes             []Vote
	WinningHash       string
}

// TotalVotesCast is derived from the vote list so the two can never diverge.
func (r Request) TotalVotesCast() int {
	return len(r.Votes)
}

// HasVoteFrom reports whether the oracle already committed a hash.
func (r Request) HasVoteFrom(oracleID string) bool {
	for _, vote := range r.Votes {
		if vote.OracleID == oracleID {
			return true
		}
	}
	return false
}

// HashPayload computes the canonical hex SHA-256 commitment for a payload.
// Both oracles and the fulfillment verifier must use this exact form.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// IsValidResultHash reports whether value is a well-formed lowercase hex
// SHA-256 commitment.
func IsValidResultHash(value string) bool {
	if len(value) != ResultHashLength {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
