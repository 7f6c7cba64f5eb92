package errors

import "errors"

var (
	ErrRequestIDTooLong  = errors.New("request id exceeds 64 bytes")
	ErrRequestIDRequired = errors.New("request id is required")
	ErrProviderTooLong   = errors.New("provider exceeds 64 bytes")
	ErrModelIDTooLong    = errors.New("model id exceeds 64 bytes")
	ErrTooManyMessages   = errors.New("too many messages (max 50)")
	ErrTooManyTargets    = errors.New("too many callback targets (max 32)")
	ErrInvalidMinVotes   = errors.New("min votes must be at least 1")
	ErrInvalidThreshold  = errors.New("approval threshold must be between 1 and 100")
	ErrInvalidResultHash = errors.New("result hash must be 32 hex-encoded bytes")

	ErrRequestExists   = errors.New("request with this id already exists")
	ErrRequestNotFound = errors.New("request not found")

	ErrNotPending         = errors.New("request is not pending")
	ErrVotingNotCompleted = errors.New("voting is not completed")
	ErrAlreadyVoted       = errors.New("oracle has already voted on this request")
	ErrTooManyVotes       = errors.New("vote limit reached (max 32)")
	ErrOracleNotVerified  = errors.New("oracle identity could not be verified")

	ErrWinningHashMissing       = errors.New("winning hash is not set")
	ErrPayloadHashMismatch      = errors.New("payload does not match winning hash")
	ErrCallbackProgramMismatch  = errors.New("callback program does not match requesting party")
	ErrCallbackTargetMismatch   = errors.New("callback target mismatch")
	ErrCallbackDispatchRejected = errors.New("callback target rejected the dispatch")
)
