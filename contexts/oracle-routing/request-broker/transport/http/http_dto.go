package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CallbackTargetDTO struct {
	Identity string `json:"identity"`
	Writable bool   `json:"writable"`
}

type CreateRequestRequest struct {
	RequestID         string              `json:"request_id"`
	RequestingParty   string              `json:"requesting_party"`
	Provider          string              `json:"provider"`
	ModelID           string              `json:"model_id"`
	Messages          []MessageDTO        `json:"messages"`
	CallbackTargets   []CallbackTargetDTO `json:"callback_targets"`
	MinVotes          int                 `json:"min_votes"`
	ApprovalThreshold int                 `json:"approval_threshold"`
}

type RequestResponse struct {
	RequestID         string              `json:"request_id"`
	RequestingParty   string              `json:"requesting_party"`
	Provider          string              `json:"provider"`
	ModelID           string              `json:"model_id"`
	CallbackTargets   []CallbackTargetDTO `json:"callback_targets"`
	Status            string              `json:"status"`
	CreatedAt         string              `json:"created_at"`
	MinVotes          int                 `json:"min_votes"`
	ApprovalThreshold int                 `json:"approval_threshold"`
	TotalVotesCast    int                 `json:"total_votes_cast"`
	WinningHash       string              `json:"winning_hash,omitempty"`
}

type SubmitVoteRequest struct {
	OracleID   string `json:"oracle_id"`
	ResultHash string `json:"result_hash"`
	// Signature is the oracle's proof over the canonical vote message,
	// base64-encoded.
	Signature string `json:"signature"`
}

type SubmitVoteResponse struct {
	RequestID      string `json:"request_id"`
	Status         string `json:"status"`
	TotalVotesCast int    `json:"total_votes_cast"`
	LeadingCount   int    `json:"leading_count"`
	Resolved       bool   `json:"resolved"`
	WinningHash    string `json:"winning_hash,omitempty"`
}

type FulfillRequestRequest struct {
	CallbackProgram  string   `json:"callback_program"`
	ProvidedAccounts []string `json:"provided_accounts"`
	// Payload is the winning completion, base64-encoded.
	Payload string `json:"payload"`
}

type FulfillRequestResponse struct {
	RequestID     string `json:"request_id"`
	Status        string `json:"status"`
	PayloadLength int    `json:"payload_length"`
}
