package unit

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	consumererrors "coolrouter/contexts/oracle-routing/llm-consumer/domain/errors"
	consumerhttp "coolrouter/contexts/oracle-routing/llm-consumer/transport/http"
	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	brokererrors "coolrouter/contexts/oracle-routing/request-broker/domain/errors"
	brokerhttp "coolrouter/contexts/oracle-routing/request-broker/transport/http"
	"coolrouter/internal/platform/invoke"
)

// resolveRequest drives a fresh request through creation and voting so
// fulfillment scenarios start from voting_completed.
func resolveRequest(t *testing.T, env *oracleEnv, requestID string, payload []byte) string {
	t.Helper()
	ctx := context.Background()

	created, err := env.consumer.Handler.RequestLLMResponseHandler(ctx, consumerhttp.RequestLLMResponseRequest{
		RequestID:         requestID,
		Prompt:            "prompt for " + requestID,
		Authority:         "alice",
		MinVotes:          2,
		ApprovalThreshold: 60,
	})
	if err != nil {
		t.Fatalf("consumer request failed: %v", err)
	}

	resultHash := entities.HashPayload(payload)
	for _, oracle := range env.oracles[:2] {
		if _, err := env.broker.Handler.SubmitVoteHandler(ctx, requestID, env.signedVote(oracle, requestID, resultHash)); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
	}

	state, err := env.broker.Handler.GetRequestHandler(ctx, requestID)
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	if state.Status != string(entities.StatusVotingCompleted) {
		t.Fatalf("expected voting_completed, got %s", state.Status)
	}
	return created.StateAccount
}

func assertStatus(t *testing.T, env *oracleEnv, requestID string, want entities.RequestStatus) {
	t.Helper()
	state, err := env.broker.Handler.GetRequestHandler(context.Background(), requestID)
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	if state.Status != string(want) {
		t.Fatalf("expected status %s, got %s", want, state.Status)
	}
}

func TestFulfillRejectsWrongPayload(t *testing.T) {
	env := newOracleEnv(t, 2)
	payload := []byte("the committed answer")
	stateAccount := resolveRequest(t, env, "req-wrong-payload", payload)

	_, err := env.broker.Handler.FulfillRequestHandler(context.Background(), "req-wrong-payload", brokerhttp.FulfillRequestRequest{
		CallbackProgram:  testProgramID,
		ProvidedAccounts: []string{stateAccount},
		Payload:          base64.StdEncoding.EncodeToString([]byte("a different answer")),
	})
	if !errors.Is(err, brokererrors.ErrPayloadHashMismatch) {
		t.Fatalf("expected payload hash mismatch, got %v", err)
	}
	assertStatus(t, env, "req-wrong-payload", entities.StatusVotingCompleted)

	// The consumer must not have received anything.
	if _, err := env.consumer.Handler.GetResponseHandler(context.Background(), "req-wrong-payload"); !errors.Is(err, consumererrors.ErrNoResponse) {
		t.Fatalf("expected no response, got %v", err)
	}
}

func TestFulfillRejectsWrongCallbackProgram(t *testing.T) {
	env := newOracleEnv(t, 2)
	payload := []byte("answer")
	stateAccount := resolveRequest(t, env, "req-wrong-program", payload)

	_, err := env.broker.Handler.FulfillRequestHandler(context.Background(), "req-wrong-program", brokerhttp.FulfillRequestRequest{
		CallbackProgram:  "some-other-program",
		ProvidedAccounts: []string{stateAccount},
		Payload:          base64.StdEncoding.EncodeToString(payload),
	})
	if !errors.Is(err, brokererrors.ErrCallbackProgramMismatch) {
		t.Fatalf("expected callback program mismatch, got %v", err)
	}
	assertStatus(t, env, "req-wrong-program", entities.StatusVotingCompleted)
}

func TestFulfillRejectsAccountListMismatch(t *testing.T) {
	env := newOracleEnv(t, 2)
	payload := []byte("answer")
	stateAccount := resolveRequest(t, env, "req-wrong-accounts", payload)

	ctx := context.Background()
	cases := [][]string{
		nil,
		{"attacker-account"},
		{stateAccount, "extra-account"},
	}
	for _, accounts := range cases {
		_, err := env.broker.Handler.FulfillRequestHandler(ctx, "req-wrong-accounts", brokerhttp.FulfillRequestRequest{
			CallbackProgram:  testProgramID,
			ProvidedAccounts: accounts,
			Payload:          base64.StdEncoding.EncodeToString(payload),
		})
		if !errors.Is(err, brokererrors.ErrCallbackTargetMismatch) {
			t.Fatalf("accounts %v: expected callback target mismatch, got %v", accounts, err)
		}
	}
	assertStatus(t, env, "req-wrong-accounts", entities.StatusVotingCompleted)
}

func TestFulfillBeforeResolutionFails(t *testing.T) {
	env := newOracleEnv(t, 2)
	ctx := context.Background()

	created, err := env.consumer.Handler.RequestLLMResponseHandler(ctx, consumerhttp.RequestLLMResponseRequest{
		RequestID:         "req-early",
		Prompt:            "prompt",
		Authority:         "alice",
		MinVotes:          2,
		ApprovalThreshold: 60,
	})
	if err != nil {
		t.Fatalf("consumer request failed: %v", err)
	}

	payload := []byte("answer")
	_, err = env.broker.Handler.FulfillRequestHandler(ctx, "req-early", brokerhttp.FulfillRequestRequest{
		CallbackProgram:  testProgramID,
		ProvidedAccounts: []string{created.StateAccount},
		Payload:          base64.StdEncoding.EncodeToString(payload),
	})
	if !errors.Is(err, brokererrors.ErrVotingNotCompleted) {
		t.Fatalf("expected voting not completed, got %v", err)
	}

	if _, err := env.broker.Handler.FulfillRequestHandler(ctx, "req-absent", brokerhttp.FulfillRequestRequest{
		CallbackProgram: testProgramID,
		Payload:         base64.StdEncoding.EncodeToString(payload),
	}); !errors.Is(err, brokererrors.ErrRequestNotFound) {
		t.Fatalf("expected request not found, got %v", err)
	}
}

func TestFulfillDispatchFailureKeepsState(t *testing.T) {
	env := newOracleEnv(t, 2)
	ctx := context.Background()
	payload := []byte("answer")
	stateAccount := resolveRequest(t, env, "req-dispatch-fail", payload)

	// Re-register the consumer program with a rejecting endpoint so the
	// dispatch fails downstream of all broker-side checks.
	env.loopback.Register(testProgramID, func(context.Context, invoke.Call) error {
		return errors.New("target unavailable")
	})

	request := brokerhttp.FulfillRequestRequest{
		CallbackProgram:  testProgramID,
		ProvidedAccounts: []string{stateAccount},
		Payload:          base64.StdEncoding.EncodeToString(payload),
	}
	if _, err := env.broker.Handler.FulfillRequestHandler(ctx, "req-dispatch-fail", request); !errors.Is(err, brokererrors.ErrCallbackDispatchRejected) {
		t.Fatalf("expected dispatch rejection, got %v", err)
	}
	assertStatus(t, env, "req-dispatch-fail", entities.StatusVotingCompleted)

	// Restoring the target allows a later retry to finalize.
	env.loopback.Register(testProgramID, func(context.Context, invoke.Call) error {
		return nil
	})
	result, err := env.broker.Handler.FulfillRequestHandler(ctx, "req-dispatch-fail", request)
	if err != nil {
		t.Fatalf("retry fulfill failed: %v", err)
	}
	if result.Status != string(entities.StatusFulfilled) {
		t.Fatalf("expected fulfilled after retry, got %s", result.Status)
	}

	if _, err := env.broker.Handler.FulfillRequestHandler(ctx, "req-dispatch-fail", request); !errors.Is(err, brokererrors.ErrVotingNotCompleted) {
		t.Fatalf("expected second fulfill to fail, got %v", err)
	}
}
