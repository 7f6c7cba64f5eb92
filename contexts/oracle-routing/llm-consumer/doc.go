// Package llmconsumer implements the requester-side collaborator of the
// oracle-routing context: it forwards prompts to the request broker and
// receives the attested completion back through the callback endpoint,
// storing it keyed by request id.
package llmconsumer
