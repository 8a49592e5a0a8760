package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatsunemiku3939/underwriter/store"
	"github.com/hatsunemiku3939/underwriter/types"
)

func newStore() *store.MemoryStore {
	s := store.NewMemoryStore()
	s.Put(store.Beneficiary{
		ID:           "branch",
		AggregatorID: "agg",
		Kind:         store.KindBranch,
		Reference:    types.Record{"cnpj_matriz": "111", "nome": "FILIAL LTDA"},
		Documents: []store.Document{
			{DocumentID: "cs-1", DocumentType: "CONTRATO_SOCIAL", Extracted: types.Record{"nomes_assinatura": []any{"ANA"}}},
			{DocumentID: "ctps-1", DocumentType: "CTPS", ExtractedText: "carteira 1"},
			{DocumentID: "ctps-2", DocumentType: "CTPS", ExtractedText: "carteira 2"},
		},
	})
	s.Put(store.Beneficiary{
		ID:           "hq",
		AggregatorID: "agg",
		Kind:         store.KindHeadquarters,
		Reference:    types.Record{"cnpj": "111"},
		Documents: []store.Document{
			{DocumentID: "proc-1", DocumentType: "PROCURACAO", Extracted: types.Record{"procuradores": []any{"BIA"}}},
		},
	})
	s.Put(store.Beneficiary{
		ID:           "solo",
		AggregatorID: "agg-solo",
		Documents:    []store.Document{{DocumentID: "ctps-9", DocumentType: "CTPS", ExtractedText: "so"}},
	})
	return s
}

func identity(owner, agg, doc string) types.Identity {
	return types.Identity{OwnerID: owner, AggregatorID: agg, DocumentID: doc, DocumentType: "ctps"}
}

func TestResolve_MissingDependency(t *testing.T) {
	r := New(newStore(), nil)
	docs, err := r.Resolve(context.Background(), identity("branch", "agg", "ctps-1"), []string{"contrato_social", "rg"})
	require.NoError(t, err)

	assert.Equal(t, []any{"ANA"}, docs.Get("contrato_social")["nomes_assinatura"])
	assert.Nil(t, docs.Get("rg"))
	assert.Equal(t, []string{"rg"}, docs.Missing)
	assert.False(t, docs.HasParent, "parent is only looked up on request")
}

func TestResolve_WithParent(t *testing.T) {
	r := New(newStore(), nil)
	docs, err := r.Resolve(context.Background(), identity("branch", "agg", "ctps-1"),
		[]string{"contrato_social", "procuracao"}, WithParent())
	require.NoError(t, err)

	assert.True(t, docs.HasParent)
	assert.NotNil(t, docs.Parent("procuracao"))
	assert.Nil(t, docs.Parent("contrato_social"))
	assert.Nil(t, docs.Get("procuracao"))
	assert.Equal(t, []string{"matriz.contrato_social", "procuracao"}, docs.Missing)
}

func TestResolve_WithParentNotABranch(t *testing.T) {
	r := New(newStore(), nil)
	docs, err := r.Resolve(context.Background(), identity("hq", "agg", "proc-1"), []string{"procuracao"}, WithParent())
	require.NoError(t, err)
	assert.False(t, docs.HasParent)
	assert.Empty(t, docs.Missing)
}

func TestResolve_SameType(t *testing.T) {
	r := New(newStore(), []string{"ctps", " cnh "})

	t.Run("splits current from others", func(t *testing.T) {
		docs, err := r.Resolve(context.Background(), identity("branch", "agg", "ctps-2"), []string{"ctps"}, WithSameType())
		require.NoError(t, err)
		s := docs.Siblings("ctps")
		require.NotNil(t, s)
		assert.Equal(t, "carteira 2", s.Current.Text)
		require.Len(t, s.Others, 1)
		assert.Equal(t, "ctps-1", s.Others[0].DocumentID)
		assert.Empty(t, docs.Missing)
	})

	t.Run("no other documents is not missing", func(t *testing.T) {
		docs, err := r.Resolve(context.Background(), identity("solo", "agg-solo", "ctps-9"), []string{"ctps"}, WithSameType())
		require.NoError(t, err)
		assert.True(t, docs.Siblings("ctps").NoComparison())
		assert.Empty(t, docs.Missing)
	})

	t.Run("current document must be filed", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), identity("branch", "agg", "ghost"), []string{"ctps"}, WithSameType())
		assert.ErrorIs(t, err, ErrCurrentDocument)
	})

	t.Run("ineligible types resolve as plain dependencies", func(t *testing.T) {
		docs, err := r.Resolve(context.Background(), identity("branch", "agg", "ctps-1"), []string{"rg"}, WithSameType())
		require.NoError(t, err)
		assert.Nil(t, docs.Siblings("rg"))
		assert.Equal(t, []string{"rg"}, docs.Missing)
	})
}

type failingStore struct{ store.Reader }

func (failingStore) LatestExtraction(context.Context, string, string) (types.Record, error) {
	return nil, errors.New("connection reset")
}

func TestResolve_StoreFailure(t *testing.T) {
	r := New(failingStore{}, nil)
	_, err := r.Resolve(context.Background(), identity("x", "y", "z"), []string{"rg"})
	assert.ErrorContains(t, err, "connection reset")
}
