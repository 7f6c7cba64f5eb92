package requestbroker

import (
	"log/slog"

	httpadapter "coolrouter/contexts/oracle-routing/request-broker/adapters/http"
	"coolrouter/contexts/oracle-routing/request-broker/adapters/memory"
	"coolrouter/contexts/oracle-routing/request-broker/application/commands"
	"coolrouter/contexts/oracle-routing/request-broker/application/queries"
	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	"coolrouter/contexts/oracle-routing/request-broker/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Requests ports.RequestRepository
	Signers  ports.SignerVerifier
	Invoker  ports.CallbackInvoker
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func NewModule(deps Dependencies) Module {
	lifecycle := commands.LifecycleUseCase{
		Requests: deps.Requests,
		Signers:  deps.Signers,
		Invoker:  deps.Invoker,
		Clock:    deps.Clock,
		IDGen:    deps.IDGen,
		Logger:   deps.Logger,
	}
	status := queries.RequestStatusUseCase{
		Requests: deps.Requests,
	}
	return Module{
		Handler: httpadapter.Handler{
			Lifecycle: lifecycle,
			Status:    status,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule wires the module against the in-memory store, the
// supplied signer verifier and callback invoker. Used by tests and by local
// single-process runs.
func NewInMemoryModule(
	seed []entities.Request,
	signers ports.SignerVerifier,
	invoker ports.CallbackInvoker,
	logger *slog.Logger,
) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Requests: store,
		Signers:  signers,
		Invoker:  invoker,
		Clock:    store,
		IDGen:    store,
		Logger:   logger,
	})
	module.Store = store
	return module
}
