package rules

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatsunemiku3939/underwriter/resolver"
	"github.com/hatsunemiku3939/underwriter/store"
	"github.com/hatsunemiku3939/underwriter/types"
)

func subject() *types.Subject {
	return &types.Subject{
		Identity:  types.Identity{OwnerID: "owner-1", AggregatorID: "agg-1", DocumentID: "doc-1", DocumentType: "cnh"},
		Kind:      types.MessageStandard,
		Reference: types.Record{"nome": "MARIA DA SILVA", "cpf": "12345678900"},
		Extracted: types.Record{"nome": "MARIA SILVA", "cpf": types.NotFound},
	}
}

func check(out *Outcome, err error) Check {
	return func(context.Context, *Input) (*Outcome, error) { return out, err }
}

func TestNormalize_Defaults(t *testing.T) {
	in := NewInput(subject(), nil, time.Now())

	res, ok := Normalize(context.Background(), Standard("validacao_nome", check(Match(true), nil)), in)
	require.True(t, ok)
	assert.True(t, res.Valid)
	assert.Equal(t, "nome", res.Target)
	assert.Equal(t, "MARIA DA SILVA", res.SearchedExcerpt)
	assert.Equal(t, "MARIA SILVA", res.FoundExcerpt)
	assert.Equal(t, 100.0, res.PercentMatch)
	assert.Equal(t, types.CodeOK, res.Code)
	assert.Equal(t, types.FieldSubscriptionErrors, res.ErrorField)
}

func TestNormalize_DerivedCodes(t *testing.T) {
	tests := []struct {
		name string
		out  *Outcome
		want types.ErrorCode
	}{
		{"valid", Verdict(true, 87), types.CodeOK},
		{"found differs", Match(false).Finding("JOANA"), types.CodeIncorrect},
		{"found not found upper", Match(false).Finding("NOT FOUND"), types.CodeNotFound},
		{"found not found sentinel", Match(false).On("cpf"), types.CodeNotFound},
		{"nothing found", Match(false).On("ausente"), types.CodeInvalid},
		{"explicit code wins", Match(true).WithCode(types.CodeIncorrect), types.CodeIncorrect},
		{"unknown code", Match(false).WithCode(types.ErrorCode(418)), types.CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewInput(subject(), nil, time.Now())
			res, ok := Normalize(context.Background(), Standard("validacao_nome", check(tt.out, nil)), in)
			require.True(t, ok)
			assert.Equal(t, tt.want, res.Code)
		})
	}
}

func TestNormalize_PercentIsClamped(t *testing.T) {
	in := NewInput(subject(), nil, time.Now())
	res, ok := Normalize(context.Background(), Standard("validacao_nome", check(Verdict(false, -12), nil)), in)
	require.True(t, ok)
	assert.Equal(t, 0.0, res.PercentMatch)
}

func TestNormalize_NotApplicable(t *testing.T) {
	in := NewInput(subject(), nil, time.Now())
	_, ok := Normalize(context.Background(), Standard("validacao_nome", check(nil, nil)), in)
	assert.False(t, ok)
}

func TestNormalize_ConversionErrors(t *testing.T) {
	_, parseErr := time.Parse("02/01/2006", "31/31/2020")
	require.Error(t, parseErr)

	tests := []struct {
		name string
		rule string
		err  error
		want types.ErrorCode
	}{
		{"date target parse error", "validacao_data_nascimento", parseErr, types.CodeNotFound},
		{"tempo target conversion", "validacao_tempo_empresa", Conversionf("bad %s", "x"), types.CodeNotFound},
		{"missing field on date target", "validacao_data_emissao", fmt.Errorf("read: %w", types.ErrFieldMissing), types.CodeNotFound},
		{"non date target", "validacao_cnpj", parseErr, types.CodeInternalError},
		{"metadata dates are exempt", "validacao_metadado_datas", parseErr, types.CodeInternalError},
		{"other errors on date target", "validacao_data_nascimento", errors.New("boom"), types.CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewInput(subject(), nil, time.Now())
			res, ok := Normalize(context.Background(), Standard(tt.rule, check(nil, tt.err)), in)
			require.True(t, ok)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.want, res.Code)
			assert.Equal(t, 0.0, res.PercentMatch)
			assert.Equal(t, "", res.FoundExcerpt)
		})
	}
}

func TestNormalize_Panic(t *testing.T) {
	in := NewInput(subject(), nil, time.Now())
	rule := Fraud("validacao_fraude_docs_similares", func(context.Context, *Input) (*Outcome, error) {
		var m map[string]int
		m["x"] = 1
		return nil, nil
	})

	res, ok := Normalize(context.Background(), rule, in)
	require.True(t, ok)
	assert.Equal(t, types.CheckResult{
		Target:          "fraude_docs_similares",
		SearchedExcerpt: "",
		FoundExcerpt:    "",
		Code:            types.CodeInternalError,
		ErrorField:      types.FieldFraudErrors,
	}, res)
}

func TestNormalize_WaitCarriesMissing(t *testing.T) {
	s := store.NewMemoryStore()
	s.Put(store.Beneficiary{ID: "owner-1", AggregatorID: "agg-1"})
	in := NewInput(subject(), resolver.New(s, nil), time.Now())

	rule := Standard("validacao_nome_mae", func(ctx context.Context, in *Input) (*Outcome, error) {
		docs, err := in.Require(ctx, []string{"rg", "certidao_nascimento"})
		if err != nil {
			return nil, err
		}
		if docs.Get("rg") == nil {
			return Wait(), nil
		}
		return Match(true), nil
	})

	res, ok := Normalize(context.Background(), rule, in)
	require.True(t, ok)
	assert.False(t, res.Valid)
	assert.Equal(t, types.CodeWaitForDocuments, res.Code)
	assert.Equal(t, "nome_mae", res.Target)
	assert.Equal(t, "", res.SearchedExcerpt)
	assert.Equal(t, []string{"rg", "certidao_nascimento"}, res.FoundExcerpt)
	assert.Equal(t, 0.0, res.PercentMatch)
}

func TestInput_RequireWithoutResolver(t *testing.T) {
	in := NewInput(subject(), nil, time.Now())
	_, err := in.Require(context.Background(), []string{"rg"})
	assert.ErrorIs(t, err, ErrNoResolver)
	assert.Equal(t, []string{}, in.Missing())
}
