package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/hatsunemiku3939/underwriter/types"
)

// MongoStore is the MongoDB-backed Store over the beneficiarios collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// NewMongoStore connects to uri and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	zap.S().Named("store").Infof("connected to mongo database %s collection %s", database, collection)
	return NewMongoStoreFromClient(client, database, collection), nil
}

// NewMongoStoreFromClient wraps an already connected client.
func NewMongoStoreFromClient(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
		now:    time.Now,
	}
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) beneficiary(ctx context.Context, ownerID string) (*Beneficiary, error) {
	var b Beneficiary
	err := s.coll.FindOne(ctx, bson.M{"id": ownerID}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("beneficiary %s: %w", ownerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find beneficiary %s: %w", ownerID, err)
	}
	normalize(&b)
	return &b, nil
}

func (s *MongoStore) LatestExtraction(ctx context.Context, ownerID, docType string) (types.Record, error) {
	b, err := s.beneficiary(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if r, ok := latest(b, docType); ok {
		return r, nil
	}
	return nil, fmt.Errorf("%s of %s: %w", docType, ownerID, ErrNotFound)
}

func (s *MongoStore) ParentOwner(ctx context.Context, ownerID string) (string, error) {
	b, err := s.beneficiary(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if b.Kind != KindBranch {
		return "", nil
	}
	var parent Beneficiary
	err = s.coll.FindOne(ctx, bson.M{
		"agregador":            b.AggregatorID,
		"tipo":                 KindHeadquarters,
		"cartao_proposta.cnpj": b.Reference.String("cnpj_matriz"),
	}, options.FindOne().SetProjection(bson.M{"id": 1})).Decode(&parent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find headquarters of %s: %w", ownerID, err)
	}
	return parent.ID, nil
}

func (s *MongoStore) AggregatorDocuments(ctx context.Context, aggregatorID, docType string) ([]SiblingDocument, error) {
	cur, err := s.coll.Find(ctx, bson.M{"agregador": aggregatorID})
	if err != nil {
		return nil, fmt.Errorf("find aggregator %s: %w", aggregatorID, err)
	}
	defer cur.Close(ctx)

	var out []SiblingDocument
	for cur.Next(ctx) {
		var b Beneficiary
		if err := cur.Decode(&b); err != nil {
			return nil, fmt.Errorf("decode beneficiary: %w", err)
		}
		normalize(&b)
		out = append(out, siblingsOf(&b, docType)...)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregator %s: %w", aggregatorID, err)
	}
	return out, nil
}

func (s *MongoStore) UpsertSubscriptionRules(ctx context.Context, ownerID, documentID string, results types.ResultSet, processed bool) (types.ResultSet, error) {
	b, err := s.beneficiary(ctx, ownerID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("beneficiary %s: %w", ownerID, ErrDocumentNotFound)
	}
	if err != nil {
		return nil, err
	}
	var prior types.ResultSet
	found := false
	for _, d := range b.Documents {
		if d.DocumentID == documentID {
			found = true
			if prior, err = decodeResults(d.SubscriptionRules); err != nil {
				return nil, err
			}
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%s/%s: %w", ownerID, documentID, ErrDocumentNotFound)
	}
	merged := Merge(prior, results)
	if err := s.set(ctx, ownerID, documentID, "subscription_rules", "subscription_processed",
		TimestampSubscription, merged, processed); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *MongoStore) UpsertMetadataValidation(ctx context.Context, ownerID, documentID string, results types.ResultSet, processed bool) error {
	return s.set(ctx, ownerID, documentID, "metadata_validation", "metadata_validation_processed",
		TimestampMetadata, results, processed)
}

func (s *MongoStore) UpsertSimilarityValidation(ctx context.Context, ownerID, documentID string, results types.ResultSet, processed bool) error {
	return s.set(ctx, ownerID, documentID, "similarity_validation", "similarity_validation_processed",
		TimestampSimilarity, results, processed)
}

func (s *MongoStore) set(ctx context.Context, ownerID, documentID, field, processedField, stamp string, results types.ResultSet, processed bool) error {
	update := bson.M{
		"documentos.$." + field:           results.Map(),
		"documentos.$.timestamp." + stamp: unixTimestamp(float64(s.now().UnixNano()) / 1e9),
	}
	if processed {
		update["documentos.$."+processedField] = true
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"id": ownerID, "documentos.document_id": documentID},
		bson.M{"$set": update},
	)
	if err != nil {
		return fmt.Errorf("update %s of %s/%s: %w", field, ownerID, documentID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", ownerID, documentID, ErrDocumentNotFound)
	}
	return nil
}

// normalize converts the BSON container types left in loosely typed fields.
func normalize(b *Beneficiary) {
	b.Reference = plainRecord(b.Reference)
	for i := range b.Documents {
		d := &b.Documents[i]
		d.Extracted = plainRecord(d.Extracted)
		if d.SubscriptionRules != nil {
			d.SubscriptionRules = plainMap(d.SubscriptionRules)
		}
	}
}
