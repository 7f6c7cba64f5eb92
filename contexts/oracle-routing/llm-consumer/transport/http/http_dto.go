package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RequestLLMResponseRequest struct {
	RequestID         string `json:"request_id"`
	Prompt            string `json:"prompt"`
	Authority         string `json:"authority"`
	MinVotes          int    `json:"min_votes"`
	ApprovalThreshold int    `json:"approval_threshold"`
}

type RequestLLMResponseResponse struct {
	RequestID    string `json:"request_id"`
	StateAccount string `json:"state_account"`
	HasResponse  bool   `json:"has_response"`
}

type GetResponseResponse struct {
	RequestID string `json:"request_id"`
	// Response is the attested payload, base64-encoded.
	Response string `json:"response"`
}
