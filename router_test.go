package underwriter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	failure "github.com/hatsunemiku3939/underwriter/policy/failure"
	"github.com/hatsunemiku3939/underwriter/types"
)

var testSignatureSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["document_information"]
}`

// --- Test Helper Functions ---

func newTestRouter(t *testing.T, opts ...RouterOption) *Router {
	r, err := NewRouter(MessageSchema, opts...)
	require.NoError(t, err, "NewRouter should not fail with a valid schema")
	return r
}

func testSuccessHandler(_ context.Context, _ *types.Message) HandlerResult {
	return HandlerResult{ShouldDelete: true, Error: nil}
}

func testErrorHandler(_ context.Context, _ *types.Message) HandlerResult {
	return HandlerResult{ShouldDelete: true, Error: errors.New("handler failed")}
}

func testRetryHandler(_ context.Context, _ *types.Message) HandlerResult {
	return HandlerResult{ShouldDelete: false, Error: errors.New("transient error")}
}

func createTestMessage(kind types.MessageType, extra string) []byte {
	raw := fmt.Sprintf(`{
		"uuid": "owner-1",
		"agregador": "agg-1",
		"document_id": "doc-1",
		"document_type": "cnh",
		"message_type": "%s",
		"tentativa": 2,
		"cartao_proposta": {"nome": "ANA"}%s
	}`, kind, extra)
	return []byte(raw)
}

func snsWrap(t *testing.T, body []byte) []byte {
	raw, err := json.Marshal(map[string]string{"Type": "Notification", "Message": string(body)})
	require.NoError(t, err)
	return raw
}

type policyFunc func(ctx context.Context, kind failure.Kind, inner error, current failure.Result) failure.Result

func (f policyFunc) Decide(ctx context.Context, kind failure.Kind, inner error, current failure.Result) failure.Result {
	return f(ctx, kind, inner, current)
}

// --- Test Cases ---

func TestNewRouter(t *testing.T) {
	t.Run("should create router with valid schema", func(t *testing.T) {
		r, err := NewRouter(MessageSchema)
		require.NoError(t, err)
		_, ok := r.failurePolicy.(failure.ImmediateDeletePolicy)
		assert.True(t, ok, "default failure policy deletes structural failures")
	})

	t.Run("should fail with invalid schema", func(t *testing.T) {
		_, err := NewRouter(`{"type": "invalid"`)
		assert.ErrorIs(t, err, ErrInvalidEnvelopeSchema)
	})

	t.Run("options are applied", func(t *testing.T) {
		p := policyFunc(func(_ context.Context, _ failure.Kind, _ error, cur failure.Result) failure.Result { return cur })
		r := newTestRouter(t, WithFailurePolicy(p))
		assert.NotNil(t, r.failurePolicy)
		_, isDefault := r.failurePolicy.(failure.ImmediateDeletePolicy)
		assert.False(t, isDefault)
	})
}

func TestRouter_RegisterSchema(t *testing.T) {
	r := newTestRouter(t)

	require.NoError(t, r.RegisterSchema(types.MessageSignature, testSignatureSchema))
	_, exists := r.schemas[types.HandlerKey(types.MessageSignature)]
	assert.True(t, exists, "Schema should be registered")

	err := r.RegisterSchema(types.MessageStandard, `{"type": "invalid"`)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestRouter_Route(t *testing.T) {
	t.Run("should route to correct handler on success", func(t *testing.T) {
		r := newTestRouter(t)
		var got *types.Message
		r.Register(types.MessageStandard, func(_ context.Context, msg *types.Message) HandlerResult {
			got = msg
			return HandlerResult{ShouldDelete: true}
		})

		result := r.Route(context.Background(), createTestMessage(types.MessageStandard, ""))

		assert.NoError(t, result.HandlerResult.Error)
		assert.True(t, result.HandlerResult.ShouldDelete)
		assert.Equal(t, "standard", result.MessageType)
		assert.Equal(t, "doc-1", result.DocumentID)
		assert.Equal(t, 2, result.Attempt)
		assert.Equal(t, failure.FailNone, result.Failure)
		require.NotNil(t, got)
		assert.Equal(t, "ANA", got.Reference.String("nome"))
	})

	t.Run("missing message type routes as standard", func(t *testing.T) {
		r := newTestRouter(t)
		r.Register(types.MessageStandard, testSuccessHandler)
		raw := []byte(`{"uuid": "o", "document_id": "d", "document_type": "cnh"}`)

		result := r.Route(context.Background(), raw)
		assert.NoError(t, result.HandlerResult.Error)
		assert.Equal(t, "standard", result.MessageType)
		assert.Equal(t, 1, result.Attempt)
	})

	t.Run("should unwrap sns notifications", func(t *testing.T) {
		r := newTestRouter(t)
		r.Register(types.MessageFraudMetadata, testSuccessHandler)

		result := r.Route(context.Background(), snsWrap(t, createTestMessage(types.MessageFraudMetadata, "")))
		assert.NoError(t, result.HandlerResult.Error)
		assert.Equal(t, "fraud_metadata", result.MessageType)
	})

	t.Run("should return error from handler", func(t *testing.T) {
		r := newTestRouter(t)
		r.Register(types.MessageStandard, testErrorHandler)

		result := r.Route(context.Background(), createTestMessage(types.MessageStandard, ""))

		assert.EqualError(t, result.HandlerResult.Error, "handler failed")
		assert.True(t, result.HandlerResult.ShouldDelete)
		assert.Equal(t, failure.FailHandlerError, result.Failure)
	})

	t.Run("policy can override handler error decision", func(t *testing.T) {
		tp := policyFunc(func(ctx context.Context, kind failure.Kind, inner error, current failure.Result) failure.Result {
			if kind == failure.FailHandlerError {
				current.ShouldDelete = false
				if inner != nil && current.Error == nil {
					current.Error = inner
				}
			}
			return current
		})
		r := newTestRouter(t, WithFailurePolicy(tp))
		r.Register(types.MessageStandard, func(_ context.Context, _ *types.Message) HandlerResult {
			return HandlerResult{ShouldDelete: true, Error: errors.New("boom")}
		})

		result := r.Route(context.Background(), createTestMessage(types.MessageStandard, ""))

		assert.EqualError(t, result.HandlerResult.Error, "boom")
		assert.False(t, result.HandlerResult.ShouldDelete, "policy override should force retry")
	})

	t.Run("should handle retry logic from handler", func(t *testing.T) {
		r := newTestRouter(t)
		r.Register(types.MessageStandard, testRetryHandler)

		result := r.Route(context.Background(), createTestMessage(types.MessageStandard, ""))

		assert.EqualError(t, result.HandlerResult.Error, "transient error")
		assert.False(t, result.HandlerResult.ShouldDelete)
	})

	t.Run("should fail for unregistered handler", func(t *testing.T) {
		r := newTestRouter(t)
		r.Register(types.MessageStandard, testSuccessHandler)

		result := r.Route(context.Background(), createTestMessage(types.MessageSignature, ""))

		assert.ErrorIs(t, result.HandlerResult.Error, ErrNoHandlerRegistered)
		assert.True(t, result.HandlerResult.ShouldDelete, "Should delete message with no handler")
		assert.Equal(t, failure.FailNoHandler, result.Failure)
	})

	t.Run("should fail on invalid envelope", func(t *testing.T) {
		r := newTestRouter(t)
		r.Register(types.MessageStandard, testSuccessHandler)

		result := r.Route(context.Background(), []byte(`{"uuid": "o", "document_id": "d"}`))

		assert.ErrorIs(t, result.HandlerResult.Error, ErrInvalidEnvelope)
		assert.True(t, result.HandlerResult.ShouldDelete, "Should delete malformed envelope")
		assert.Equal(t, failure.FailEnvelopeSchema, result.Failure)
		assert.Equal(t, "unknown", result.MessageType)
	})

	t.Run("should reject unknown message types", func(t *testing.T) {
		r := newTestRouter(t)
		r.Register(types.MessageStandard, testSuccessHandler)

		result := r.Route(context.Background(), createTestMessage("handwriting", ""))

		assert.ErrorIs(t, result.HandlerResult.Error, ErrInvalidEnvelope)
		assert.Equal(t, failure.FailEnvelopeSchema, result.Failure)
	})

	t.Run("should fail on malformed json", func(t *testing.T) {
		r := newTestRouter(t)
		result := r.Route(context.Background(), []byte(`{"document_id": "d"`))

		assert.ErrorIs(t, result.HandlerResult.Error, ErrInvalidEnvelope)
		assert.True(t, result.HandlerResult.ShouldDelete)
		assert.Equal(t, failure.FailEnvelopeParse, result.Failure)
	})

	t.Run("should fail on invalid message payload schema", func(t *testing.T) {
		r := newTestRouter(t)
		r.Register(types.MessageSignature, testSuccessHandler)
		require.NoError(t, r.RegisterSchema(types.MessageSignature, testSignatureSchema))

		result := r.Route(context.Background(), createTestMessage(types.MessageSignature, ""))

		assert.ErrorIs(t, result.HandlerResult.Error, ErrInvalidMessagePayload)
		assert.True(t, result.HandlerResult.ShouldDelete, "Should delete invalid payload")
		assert.Equal(t, failure.FailPayloadSchema, result.Failure)

		ok := r.Route(context.Background(), createTestMessage(types.MessageSignature, `, "document_information": {}`))
		assert.NoError(t, ok.HandlerResult.Error)
	})

	t.Run("should recover from handler panic and keep the message", func(t *testing.T) {
		r := newTestRouter(t)
		r.Register(types.MessageStandard, func(context.Context, *types.Message) HandlerResult {
			panic("kaboom")
		})

		result := r.Route(context.Background(), createTestMessage(types.MessageStandard, ""))

		assert.ErrorIs(t, result.HandlerResult.Error, ErrHandlerPanic)
		assert.False(t, result.HandlerResult.ShouldDelete, "panicking handler must leave the message for redelivery")
		assert.Equal(t, failure.FailHandlerPanic, result.Failure)
		assert.Equal(t, "doc-1", result.DocumentID)
	})

	t.Run("redrive policy keeps structural failures", func(t *testing.T) {
		r := newTestRouter(t, WithFailurePolicy(failure.SQSRedrivePolicy{}))
		result := r.Route(context.Background(), []byte(`not json`))
		assert.Error(t, result.HandlerResult.Error)
		assert.False(t, result.HandlerResult.ShouldDelete)
	})
}

func TestRouter_Concurrency(t *testing.T) {
	r := newTestRouter(t)
	r.Register(types.MessageStandard, testSuccessHandler)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 0 {
				r.Register(types.MessageSignature, testSuccessHandler)
			}
			result := r.Route(context.Background(), createTestMessage(types.MessageStandard, ""))
			assert.NoError(t, result.HandlerResult.Error)
		}(i)
	}
	wg.Wait()
}

func TestUnwrap(t *testing.T) {
	body := []byte(`{"document_id":"d"}`)

	got, err := Unwrap(body)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	got, err = Unwrap(snsWrap(t, body))
	require.NoError(t, err)
	assert.JSONEq(t, string(body), string(got))

	_, err = Unwrap([]byte(`[`))
	assert.ErrorIs(t, err, ErrFailedToParseEnvelope)
}
