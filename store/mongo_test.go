package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hatsunemiku3939/underwriter/types"
)

func newTestMongo(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := NewMongoStore(ctx, uri, "underwriter_test", "beneficiarios_"+uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.coll.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func TestMongoStore_RoundTrip(t *testing.T) {
	s := newTestMongo(t)
	ctx := context.Background()

	_, err := s.coll.InsertMany(ctx, []any{
		Beneficiary{
			ID: "branch", AggregatorID: "agg", Kind: KindBranch,
			Reference: types.Record{"cnpj_matriz": "1", "nome": "FILIAL"},
			Documents: []Document{
				{DocumentID: "d1", DocumentType: "CONTRATO_SOCIAL", Extracted: types.Record{"socios": []any{"ANA"}}},
				{DocumentID: "d2", DocumentType: "CTPS", ExtractedText: "texto"},
			},
		},
		Beneficiary{ID: "hq", AggregatorID: "agg", Kind: KindHeadquarters, Reference: types.Record{"cnpj": "1"}},
	})
	require.NoError(t, err)

	r, err := s.LatestExtraction(ctx, "branch", "contrato_social")
	require.NoError(t, err)
	assert.Equal(t, []string{"ANA"}, r.Strings("socios"))

	parent, err := s.ParentOwner(ctx, "branch")
	require.NoError(t, err)
	assert.Equal(t, "hq", parent)

	docs, err := s.AggregatorDocuments(ctx, "agg", "ctps")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "FILIAL", docs[0].OwnerName)

	pending := types.ResultSet{"validacao_a": {Code: types.CodeOK, Valid: true}, "validacao_b": {Code: types.CodeWaitForDocuments}}
	_, err = s.UpsertSubscriptionRules(ctx, "branch", "d2", pending, false)
	require.NoError(t, err)
	done := types.ResultSet{"validacao_a": {Code: types.CodeInternalError}, "validacao_b": {Code: types.CodeOK, Valid: true}}
	_, err = s.UpsertSubscriptionRules(ctx, "branch", "d2", done, true)
	require.NoError(t, err)

	var stored Beneficiary
	require.NoError(t, s.coll.FindOne(ctx, bson.M{"id": "branch"}).Decode(&stored))
	normalize(&stored)
	rules, err := decodeResults(stored.Documents[1].SubscriptionRules)
	require.NoError(t, err)
	assert.Equal(t, types.CodeOK, rules["validacao_a"].Code)
	assert.Equal(t, types.CodeOK, rules["validacao_b"].Code)
	assert.True(t, stored.Documents[1].SubscriptionProcessed)

	err = s.UpsertMetadataValidation(ctx, "branch", "nope", pending, true)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
