package failure

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var allFailures = []Kind{
	FailEnvelopeSchema, FailEnvelopeParse, FailPayloadSchema, FailNoHandler,
	FailHandlerError, FailHandlerPanic, FailMiddlewareError,
}

func TestImmediateDeletePolicy(t *testing.T) {
	p := ImmediateDeletePolicy{}
	inner := errors.New("boom")

	tests := []struct {
		kind    Kind
		current Result
		want    bool
	}{
		{FailEnvelopeSchema, Result{}, true},
		{FailEnvelopeParse, Result{}, true},
		{FailPayloadSchema, Result{}, true},
		{FailNoHandler, Result{}, true},
		{FailHandlerPanic, Result{ShouldDelete: true}, false},
		{FailHandlerError, Result{ShouldDelete: true}, true},
		{FailHandlerError, Result{ShouldDelete: false}, false},
		{FailMiddlewareError, Result{ShouldDelete: true}, true},
		{FailMiddlewareError, Result{ShouldDelete: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got := p.Decide(context.Background(), tt.kind, inner, tt.current)
			assert.Equal(t, tt.want, got.ShouldDelete)
			assert.Same(t, inner, got.Error)
		})
	}
}

func TestSQSRedrivePolicy_NeverDeletesOnFailure(t *testing.T) {
	p := SQSRedrivePolicy{}
	inner := errors.New("x")
	for _, k := range allFailures {
		got := p.Decide(context.Background(), k, inner, Result{ShouldDelete: true})
		assert.False(t, got.ShouldDelete, k.String())
		assert.Same(t, inner, got.Error, k.String())
	}
}

func TestPolicies_FailNonePassThrough(t *testing.T) {
	cur := Result{ShouldDelete: true}
	for _, p := range []Policy{ImmediateDeletePolicy{}, SQSRedrivePolicy{}} {
		got := p.Decide(context.Background(), FailNone, nil, cur)
		assert.Equal(t, cur, got)
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "handler_panic", FailHandlerPanic.String())
	assert.Equal(t, "none", FailNone.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
