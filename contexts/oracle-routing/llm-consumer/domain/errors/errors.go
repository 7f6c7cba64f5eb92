package errors

import "errors"

var (
	ErrRequestIDRequired     = errors.New("request id is required")
	ErrPromptRequired        = errors.New("prompt is required")
	ErrStateExists           = errors.New("consumer state with this request id already exists")
	ErrStateNotFound         = errors.New("consumer state not found")
	ErrRequestIDMismatch     = errors.New("request id does not match pending record")
	ErrStateAccountMismatch  = errors.New("callback addressed to wrong state account")
	ErrNoResponse            = errors.New("no response available yet")
	ErrInvalidVoteParameters = errors.New("invalid vote parameters")
)
