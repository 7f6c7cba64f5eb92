package queries

import (
	"context"
	"strings"

	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	domainerrors "coolrouter/contexts/oracle-routing/request-broker/domain/errors"
	"coolrouter/contexts/oracle-routing/request-broker/ports"
)

// RequestStatusUseCase serves read-side lookups of a request's lifecycle
// state and tallies.
type RequestStatusUseCase struct {
	Requests ports.RequestRepository
}

func (uc RequestStatusUseCase) GetRequest(ctx context.Context, requestID string) (entities.Request, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return entities.Request{}, domainerrors.ErrRequestIDRequired
	}
	return uc.Requests.GetRequest(ctx, requestID)
}
