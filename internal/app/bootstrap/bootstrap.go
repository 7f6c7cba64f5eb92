package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	llmconsumer "coolrouter/contexts/oracle-routing/llm-consumer"
	consumercommands "coolrouter/contexts/oracle-routing/llm-consumer/application/commands"
	consumerports "coolrouter/contexts/oracle-routing/llm-consumer/ports"
	requestbroker "coolrouter/contexts/oracle-routing/request-broker"
	"coolrouter/contexts/oracle-routing/request-broker/adapters/memory"
	pebbleadapter "coolrouter/contexts/oracle-routing/request-broker/adapters/pebble"
	postgresadapter "coolrouter/contexts/oracle-routing/request-broker/adapters/postgres"
	"coolrouter/contexts/oracle-routing/request-broker/application/commands"
	"coolrouter/contexts/oracle-routing/request-broker/application/workers"
	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	"coolrouter/contexts/oracle-routing/request-broker/ports"
	"coolrouter/internal/platform/config"
	"coolrouter/internal/platform/db"
	"coolrouter/internal/platform/httpserver"
	"coolrouter/internal/platform/invoke"
	"coolrouter/internal/platform/messaging"
	"coolrouter/internal/platform/signer"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server  *httpserver.Server
	closers []func() error
	logger  *slog.Logger
}

type WorkerApp struct {
	outboxRelay  workers.OutboxRelay
	closers      []func() error
	pollInterval time.Duration
	logger       *slog.Logger
}

// storage bundles the backend-specific pieces the modules need.
type storage struct {
	requests ports.RequestRepository
	outbox   ports.OutboxRepository
	clock    ports.Clock
	idGen    ports.IDGenerator
	closers  []func() error
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	store, err := openStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := signer.NewRegistry()
	for _, key := range cfg.OracleKeys {
		if err := registry.Register(key); err != nil {
			closeAll(store.closers)
			return nil, fmt.Errorf("register oracle key: %w", err)
		}
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		closeAll(store.closers)
		return nil, err
	}

	loopback := invoke.NewLoopback(logger)

	brokerModule := requestbroker.NewModule(requestbroker.Dependencies{
		Requests: store.requests,
		Signers:  registry,
		Invoker:  loopback,
		Clock:    store.clock,
		IDGen:    store.idGen,
		Logger:   logger,
	})

	consumerModule := llmconsumer.NewInMemoryModule(
		cfg.ConsumerProgramID,
		requestForwarder{lifecycle: brokerModule.Handler.Lifecycle},
		kafka,
		logger,
	)

	loopback.Register(cfg.ConsumerProgramID, func(ctx context.Context, call invoke.Call) error {
		stateAccount := ""
		if len(call.Accounts) > 0 {
			stateAccount = call.Accounts[0].Identity
		}
		return consumerModule.Consumer.LLMCallback(ctx, consumercommands.LLMCallbackCommand{
			RequestID:    call.RequestID,
			Payload:      call.Payload,
			StateAccount: stateAccount,
		})
	})

	server := httpserver.New(brokerModule, consumerModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:  server,
		closers: store.closers,
		logger:  logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if cfg.StorageBackend == "memory" {
		return nil, errors.New("outbox relay worker needs a durable backend, set STORAGE_BACKEND to postgres or pebble")
	}

	store, err := openStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		closeAll(store.closers)
		return nil, err
	}

	return &WorkerApp{
		outboxRelay: workers.OutboxRelay{
			Outbox:    store.outbox,
			Publisher: kafka,
			Clock:     store.clock,
			BatchSize: 100,
			Logger:    logger,
		},
		closers:      store.closers,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func openStorage(cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StorageBackend {
	case "", "memory":
		store := memory.NewStore(nil)
		return storage{
			requests: store,
			outbox:   store,
			clock:    store,
			idGen:    store,
		}, nil

	case "postgres":
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return storage{}, errors.New("POSTGRES_DSN is required for the postgres backend")
		}
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return storage{}, err
		}
		if err := pg.Migrate(postgresadapter.Models()...); err != nil {
			_ = pg.Close()
			return storage{}, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		return storage{
			requests: repo,
			outbox:   repo,
			clock:    postgresadapter.SystemClock{},
			idGen:    postgresadapter.UUIDGenerator{},
			closers:  []func() error{pg.Close},
		}, nil

	case "pebble":
		store, err := pebbleadapter.New(cfg.PebblePath)
		if err != nil {
			return storage{}, err
		}
		return storage{
			requests: store,
			outbox:   store,
			clock:    postgresadapter.SystemClock{},
			idGen:    postgresadapter.UUIDGenerator{},
			closers:  []func() error{store.Close},
		}, nil

	default:
		return storage{}, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// requestForwarder adapts the broker's lifecycle use case to the consumer's
// submitter port so the two contexts stay decoupled at the type level.
type requestForwarder struct {
	lifecycle commands.LifecycleUseCase
}

func (f requestForwarder) SubmitRequest(ctx context.Context, submission consumerports.LLMRequestSubmission) error {
	messages := make([]entities.Message, 0, len(submission.Messages))
	for _, message := range submission.Messages {
		messages = append(messages, entities.Message{Role: message.Role, Content: message.Content})
	}
	targets := make([]entities.CallbackTarget, 0, len(submission.CallbackTargets))
	for _, target := range submission.CallbackTargets {
		targets = append(targets, entities.CallbackTarget{Identity: target.Identity, Writable: target.Writable})
	}

	_, err := f.lifecycle.CreateRequest(ctx, commands.CreateRequestCommand{
		RequestID:         submission.RequestID,
		RequestingParty:   submission.RequestingParty,
		Provider:          submission.Provider,
		ModelID:           submission.ModelID,
		Messages:          messages,
		CallbackTargets:   targets,
		MinVotes:          submission.MinVotes,
		ApprovalThreshold: submission.ApprovalThreshold,
	})
	return err
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	return closeAll(a.closers)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	return closeAll(w.closers)
}

func closeAll(closers []func() error) error {
	var first error
	for _, close := range closers {
		if err := close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
