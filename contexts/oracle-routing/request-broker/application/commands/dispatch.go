package commands

import (
	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	"coolrouter/contexts/oracle-routing/request-broker/ports"
	"coolrouter/contracts/wire"
)

// BuildCallbackInvocation assembles the cross-program call that delivers the
// winning payload: addressed to the recorded requesting party, carrying the
// llm_callback routing tag plus the encoded (request_id, payload) pair, and
// attaching exactly the creation-time target list with its recorded writable
// flags.
func BuildCallbackInvocation(request entities.Request, payload []byte) (ports.Invocation, error) {
	data, err := wire.EncodeCallback(request.ID, payload)
	if err != nil {
		return ports.Invocation{}, err
	}
	accounts := make([]ports.AccountMeta, 0, len(request.CallbackTargets))
	for _, target := range request.CallbackTargets {
		accounts = append(accounts, ports.AccountMeta{
			Identity: target.Identity,
			Writable: target.Writable,
		})
	}
	return ports.Invocation{
		Program:  request.RequestingParty,
		Accounts: accounts,
		Data:     data,
	}, nil
}
