// Package invoke routes callback invocations between in-process modules.
//
// The broker dispatches fulfillment callbacks through the CallbackInvoker
// port without knowing who receives them. Loopback is the in-process
// implementation: targets register under a program identity and the router
// decodes the callback frame before handing it over. Delivery is
// all-or-nothing, a target error propagates to the dispatcher untouched.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"coolrouter/contexts/oracle-routing/request-broker/ports"
	"coolrouter/contracts/wire"
)

var ErrUnknownProgram = errors.New("no callback target registered for program")

// Call is one decoded callback delivery.
type Call struct {
	Program   string
	Accounts  []ports.AccountMeta
	RequestID string
	Payload   []byte
}

// Endpoint handles a decoded callback. Returning an error rejects the
// delivery and the caller must not commit any fulfillment state.
type Endpoint func(ctx context.Context, call Call) error

// Loopback implements the broker's CallbackInvoker over an in-process
// program registry.
type Loopback struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
	logger    *slog.Logger
}

func NewLoopback(logger *slog.Logger) *Loopback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loopback{
		endpoints: make(map[string]Endpoint),
		logger:    logger,
	}
}

// Register binds an endpoint to a program identity. Later registrations
// replace earlier ones.
func (l *Loopback) Register(program string, endpoint Endpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.endpoints[program] = endpoint
}

func (l *Loopback) Invoke(ctx context.Context, invocation ports.Invocation) error {
	l.mu.RLock()
	endpoint, ok := l.endpoints[invocation.Program]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, invocation.Program)
	}

	requestID, payload, err := wire.DecodeCallback(invocation.Data)
	if err != nil {
		return fmt.Errorf("decode callback frame: %w", err)
	}

	call := Call{
		Program:   invocation.Program,
		Accounts:  invocation.Accounts,
		RequestID: requestID,
		Payload:   payload,
	}
	if err := endpoint(ctx, call); err != nil {
		l.logger.Warn("callback target rejected delivery",
			"event", "invoke_callback_rejected",
			"module", "platform/invoke",
			"layer", "platform",
			"program", invocation.Program,
			"request_id", requestID,
			"error", err.Error(),
		)
		return err
	}

	l.logger.Info("callback delivered",
		"event", "invoke_callback_delivered",
		"module", "platform/invoke",
		"layer", "platform",
		"program", invocation.Program,
		"request_id", requestID,
		"payload_length", len(payload),
	)
	return nil
}
