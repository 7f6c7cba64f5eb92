package llmconsumer

import (
	"log/slog"

	httpadapter "coolrouter/contexts/oracle-routing/llm-consumer/adapters/http"
	"coolrouter/contexts/oracle-routing/llm-consumer/adapters/memory"
	"coolrouter/contexts/oracle-routing/llm-consumer/application/commands"
	"coolrouter/contexts/oracle-routing/llm-consumer/ports"
)

type Module struct {
	Handler  httpadapter.Handler
	Consumer commands.ConsumerUseCase
	Store    *memory.Store
}

type Dependencies struct {
	ProgramID string
	States    ports.ConsumerStateRepository
	Submitter ports.RequestSubmitter
	Events    ports.EventPublisher
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	consumer := commands.ConsumerUseCase{
		ProgramID: deps.ProgramID,
		States:    deps.States,
		Submitter: deps.Submitter,
		Events:    deps.Events,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Consumer: consumer,
			Logger:   deps.Logger,
		},
		Consumer: consumer,
	}
}

// NewInMemoryModule wires the consumer against its in-memory state store.
func NewInMemoryModule(
	programID string,
	submitter ports.RequestSubmitter,
	events ports.EventPublisher,
	logger *slog.Logger,
) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		ProgramID: programID,
		States:    store,
		Submitter: submitter,
		Events:    events,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}
