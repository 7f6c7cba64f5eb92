package unit

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	llmconsumer "coolrouter/contexts/oracle-routing/llm-consumer"
	consumercommands "coolrouter/contexts/oracle-routing/llm-consumer/application/commands"
	consumerports "coolrouter/contexts/oracle-routing/llm-consumer/ports"
	consumerhttp "coolrouter/contexts/oracle-routing/llm-consumer/transport/http"
	requestbroker "coolrouter/contexts/oracle-routing/request-broker"
	brokercommands "coolrouter/contexts/oracle-routing/request-broker/application/commands"
	"coolrouter/contexts/oracle-routing/request-broker/domain/entities"
	brokererrors "coolrouter/contexts/oracle-routing/request-broker/domain/errors"
	brokerhttp "coolrouter/contexts/oracle-routing/request-broker/transport/http"
	"coolrouter/internal/platform/invoke"
	"coolrouter/internal/platform/signer"
)

const testProgramID = "llm-consumer"

type oracleKey struct {
	id      string
	private ed25519.PrivateKey
}

// oracleEnv wires broker and consumer the way the composition root does:
// in-memory stores, a real signature registry and an in-process callback
// router with the consumer registered as the callback target.
type oracleEnv struct {
	broker   requestbroker.Module
	consumer llmconsumer.Module
	loopback *invoke.Loopback
	oracles  []oracleKey
}

// submitterFunc adapts the broker lifecycle use case to the consumer's
// submitter port inside tests.
type submitterFunc func(ctx context.Context, submission consumerports.LLMRequestSubmission) error

func (f submitterFunc) SubmitRequest(ctx context.Context, submission consumerports.LLMRequestSubmission) error {
	return f(ctx, submission)
}

func newOracleEnv(t *testing.T, oracleCount int) *oracleEnv {
	t.Helper()

	registry := signer.NewRegistry()
	oracles := make([]oracleKey, 0, oracleCount)
	for i := 0; i < oracleCount; i++ {
		public, private, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("generate oracle key: %v", err)
		}
		id := hex.EncodeToString(public)
		if err := registry.Register(id); err != nil {
			t.Fatalf("register oracle key: %v", err)
		}
		oracles = append(oracles, oracleKey{id: id, private: private})
	}

	loopback := invoke.NewLoopback(nil)
	broker := requestbroker.NewInMemoryModule(nil, registry, loopback, nil)

	submitter := submitterFunc(func(ctx context.Context, submission consumerports.LLMRequestSubmission) error {
		messages := make([]entities.Message, 0, len(submission.Messages))
		for _, message := range submission.Messages {
			messages = append(messages, entities.Message{Role: message.Role, Content: message.Content})
		}
		targets := make([]entities.CallbackTarget, 0, len(submission.CallbackTargets))
		for _, target := range submission.CallbackTargets {
			targets = append(targets, entities.CallbackTarget{Identity: target.Identity, Writable: target.Writable})
		}
		_, err := broker.Handler.Lifecycle.CreateRequest(ctx, brokercommands.CreateRequestCommand{
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
	})

	consumer := llmconsumer.NewInMemoryModule(testProgramID, submitter, nil, nil)
	loopback.Register(testProgramID, func(ctx context.Context, call invoke.Call) error {
		stateAccount := ""
		if len(call.Accounts) > 0 {
			stateAccount = call.Accounts[0].Identity
		}
		return consumer.Consumer.LLMCallback(ctx, consumercommands.LLMCallbackCommand{
			RequestID:    call.RequestID,
			Payload:      call.Payload,
			StateAccount: stateAccount,
		})
	})

	return &oracleEnv{
		broker:   broker,
		consumer: consumer,
		loopback: loopback,
		oracles:  oracles,
	}
}

func (env *oracleEnv) signedVote(oracle oracleKey, requestID string, resultHash string) brokerhttp.SubmitVoteRequest {
	signature := ed25519.Sign(oracle.private, brokercommands.VoteSigningMessage(requestID, resultHash))
	return brokerhttp.SubmitVoteRequest{
		OracleID:   oracle.id,
		ResultHash: resultHash,
		Signature:  base64.StdEncoding.EncodeToString(signature),
	}
}

func TestRequestLifecycleEndToEnd(t *testing.T) {
	env := newOracleEnv(t, 2)
	ctx := context.Background()

	created, err := env.consumer.Handler.RequestLLMResponseHandler(ctx, consumerhttp.RequestLLMResponseRequest{
		RequestID:         "req-1",
		Prompt:            "name the largest moon of saturn",
		Authority:         "alice",
		MinVotes:          2,
		ApprovalThreshold: 60,
	})
	if err != nil {
		t.Fatalf("consumer request failed: %v", err)
	}
	if created.StateAccount != consumercommands.StateAccountID("alice", "req-1") {
		t.Fatalf("unexpected state account %s", created.StateAccount)
	}

	pending, err := env.broker.Handler.GetRequestHandler(ctx, "req-1")
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	if pending.Status != string(entities.StatusPending) {
		t.Fatalf("expected pending status, got %s", pending.Status)
	}
	if pending.RequestingParty != testProgramID {
		t.Fatalf("expected requesting party %s, got %s", testProgramID, pending.RequestingParty)
	}
	if len(pending.CallbackTargets) != 1 || pending.CallbackTargets[0].Identity != created.StateAccount {
		t.Fatalf("expected single callback target %s, got %+v", created.StateAccount, pending.CallbackTargets)
	}

	payload := []byte("titan")
	resultHash := entities.HashPayload(payload)

	first, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-1", env.signedVote(env.oracles[0], "req-1", resultHash))
	if err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	if first.Resolved {
		t.Fatalf("one of two required votes must not resolve")
	}

	second, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-1", env.signedVote(env.oracles[1], "req-1", resultHash))
	if err != nil {
		t.Fatalf("second vote failed: %v", err)
	}
	if !second.Resolved {
		t.Fatalf("expected resolution on second matching vote")
	}
	if second.WinningHash != resultHash {
		t.Fatalf("expected winning hash %s, got %s", resultHash, second.WinningHash)
	}
	if second.Status != string(entities.StatusVotingCompleted) {
		t.Fatalf("expected voting_completed status, got %s", second.Status)
	}

	fulfilled, err := env.broker.Handler.FulfillRequestHandler(ctx, "req-1", brokerhttp.FulfillRequestRequest{
		CallbackProgram:  testProgramID,
		ProvidedAccounts: []string{created.StateAccount},
		Payload:          base64.StdEncoding.EncodeToString(payload),
	})
	if err != nil {
		t.Fatalf("fulfill failed: %v", err)
	}
	if fulfilled.Status != string(entities.StatusFulfilled) {
		t.Fatalf("expected fulfilled status, got %s", fulfilled.Status)
	}
	if fulfilled.PayloadLength != len(payload) {
		t.Fatalf("expected payload length %d, got %d", len(payload), fulfilled.PayloadLength)
	}

	response, err := env.consumer.Handler.GetResponseHandler(ctx, "req-1")
	if err != nil {
		t.Fatalf("get response failed: %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(response.Response)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if string(decoded) != string(payload) {
		t.Fatalf("expected response %q, got %q", payload, decoded)
	}
}

func TestCreateRequestBounds(t *testing.T) {
	env := newOracleEnv(t, 1)
	ctx := context.Background()

	base := brokerhttp.CreateRequestRequest{
		RequestID:         "req-bounds",
		RequestingParty:   testProgramID,
		Provider:          "openai",
		ModelID:           "gpt-4",
		MinVotes:          1,
		ApprovalThreshold: 51,
	}

	longString := func(n int) string {
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = 'x'
		}
		return string(buf)
	}

	cases := []struct {
		name    string
		mutate  func(req *brokerhttp.CreateRequestRequest)
		wantErr error
	}{
		{
			name:    "request id over 64 bytes",
			mutate:  func(req *brokerhttp.CreateRequestRequest) { req.RequestID = longString(65) },
			wantErr: brokererrors.ErrRequestIDTooLong,
		},
		{
			name:    "empty request id",
			mutate:  func(req *brokerhttp.CreateRequestRequest) { req.RequestID = "" },
			wantErr: brokererrors.ErrRequestIDRequired,
		},
		{
			name:    "provider over 64 bytes",
			mutate:  func(req *brokerhttp.CreateRequestRequest) { req.Provider = longString(65) },
			wantErr: brokererrors.ErrProviderTooLong,
		},
		{
			name:    "model id over 64 bytes",
			mutate:  func(req *brokerhttp.CreateRequestRequest) { req.ModelID = longString(65) },
			wantErr: brokererrors.ErrModelIDTooLong,
		},
		{
			name: "51 messages",
			mutate: func(req *brokerhttp.CreateRequestRequest) {
				for i := 0; i < 51; i++ {
					req.Messages = append(req.Messages, brokerhttp.MessageDTO{Role: "user", Content: "m"})
				}
			},
			wantErr: brokererrors.ErrTooManyMessages,
		},
		{
			name: "33 callback targets",
			mutate: func(req *brokerhttp.CreateRequestRequest) {
				for i := 0; i < 33; i++ {
					req.CallbackTargets = append(req.CallbackTargets, brokerhttp.CallbackTargetDTO{
						Identity: fmt.Sprintf("target-%d", i),
					})
				}
			},
			wantErr: brokererrors.ErrTooManyTargets,
		},
		{
			name:    "zero min votes",
			mutate:  func(req *brokerhttp.CreateRequestRequest) { req.MinVotes = 0 },
			wantErr: brokererrors.ErrInvalidMinVotes,
		},
		{
			name:    "threshold zero",
			mutate:  func(req *brokerhttp.CreateRequestRequest) { req.ApprovalThreshold = 0 },
			wantErr: brokererrors.ErrInvalidThreshold,
		},
		{
			name:    "threshold above 100",
			mutate:  func(req *brokerhttp.CreateRequestRequest) { req.ApprovalThreshold = 101 },
			wantErr: brokererrors.ErrInvalidThreshold,
		},
	}

	for _, tc := range cases {
		req := base
		tc.mutate(&req)
		if _, err := env.broker.Handler.CreateRequestHandler(ctx, req); !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}

	if _, err := env.broker.Handler.CreateRequestHandler(ctx, base); err != nil {
		t.Fatalf("valid create failed: %v", err)
	}
	if _, err := env.broker.Handler.CreateRequestHandler(ctx, base); !errors.Is(err, brokererrors.ErrRequestExists) {
		t.Fatalf("expected duplicate id rejection, got %v", err)
	}
}

func TestSubmitVoteRejections(t *testing.T) {
	env := newOracleEnv(t, 2)
	ctx := context.Background()

	if _, err := env.broker.Handler.CreateRequestHandler(ctx, brokerhttp.CreateRequestRequest{
		RequestID:         "req-votes",
		RequestingParty:   testProgramID,
		MinVotes:          2,
		ApprovalThreshold: 60,
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resultHash := entities.HashPayload([]byte("answer"))

	vote := env.signedVote(env.oracles[0], "req-votes", resultHash)
	vote.ResultHash = "not-a-hash"
	if _, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-votes", vote); !errors.Is(err, brokererrors.ErrInvalidResultHash) {
		t.Fatalf("expected invalid result hash, got %v", err)
	}

	// A signature over a different request must not transfer.
	forged := env.signedVote(env.oracles[0], "req-other", resultHash)
	if _, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-votes", forged); !errors.Is(err, brokererrors.ErrOracleNotVerified) {
		t.Fatalf("expected oracle verification rejection, got %v", err)
	}

	unknown := env.signedVote(env.oracles[0], "req-votes", resultHash)
	unknown.OracleID = hex.EncodeToString(make([]byte, ed25519.PublicKeySize))
	if _, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-votes", unknown); !errors.Is(err, signer.ErrUnknownOracle) {
		t.Fatalf("expected unknown oracle rejection, got %v", err)
	}

	if _, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-votes", env.signedVote(env.oracles[0], "req-votes", resultHash)); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	if _, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-votes", env.signedVote(env.oracles[0], "req-votes", resultHash)); !errors.Is(err, brokererrors.ErrAlreadyVoted) {
		t.Fatalf("expected duplicate oracle rejection, got %v", err)
	}

	result, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-votes", env.signedVote(env.oracles[1], "req-votes", resultHash))
	if err != nil {
		t.Fatalf("second vote failed: %v", err)
	}
	if !result.Resolved {
		t.Fatalf("expected resolution")
	}

	late := env.signedVote(env.oracles[1], "req-votes", resultHash)
	if _, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-votes", late); !errors.Is(err, brokererrors.ErrNotPending) {
		t.Fatalf("expected closed voting rejection, got %v", err)
	}

	missing := env.signedVote(env.oracles[0], "req-missing", resultHash)
	if _, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-missing", missing); !errors.Is(err, brokererrors.ErrRequestNotFound) {
		t.Fatalf("expected request not found, got %v", err)
	}
}

func TestThresholdBlocksDissentingResolution(t *testing.T) {
	env := newOracleEnv(t, 3)
	ctx := context.Background()

	if _, err := env.broker.Handler.CreateRequestHandler(ctx, brokerhttp.CreateRequestRequest{
		RequestID:         "req-split",
		RequestingParty:   testProgramID,
		MinVotes:          2,
		ApprovalThreshold: 70,
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	hashA := entities.HashPayload([]byte("answer a"))
	hashB := entities.HashPayload([]byte("answer b"))

	if _, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-split", env.signedVote(env.oracles[0], "req-split", hashA)); err != nil {
		t.Fatalf("vote 1 failed: %v", err)
	}
	// Two of three would pass min votes, but 2/3 is 66 percent and the
	// threshold demands 70; dissent keeps voting open.
	split, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-split", env.signedVote(env.oracles[1], "req-split", hashB))
	if err != nil {
		t.Fatalf("vote 2 failed: %v", err)
	}
	if split.Resolved {
		t.Fatalf("split vote must not resolve")
	}
	again, err := env.broker.Handler.SubmitVoteHandler(ctx, "req-split", env.signedVote(env.oracles[2], "req-split", hashA))
	if err != nil {
		t.Fatalf("vote 3 failed: %v", err)
	}
	if again.Resolved {
		t.Fatalf("2 of 3 at 66 percent must stay below a 70 threshold")
	}
	if again.Status != string(entities.StatusPending) {
		t.Fatalf("expected pending status, got %s", again.Status)
	}
}
