// Package requestbroker implements the voted LLM request broker inside the
// oracle-routing context.
//
// The module owns the request lifecycle state machine (create/vote/fulfill),
// the oracle consensus rules that pick a winning result hash, and the
// verified callback dispatch that delivers the winning payload to the
// accounts declared at creation. It keeps business rules in application and
// domain layers and isolates infrastructure concerns behind ports and
// adapters.
package requestbroker
