package entities

import "time"

// ConsumerState is one pending (or answered) LLM query owned by the consumer
// program, keyed by request id. StateAccount is the identity the consumer
// declared as its callback target; the callback must arrive addressed to it.
type ConsumerState struct {
	RequestID    string
	Prompt       string
	StateAccount string
	Authority    string
	Response     []byte
	HasResponse  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
