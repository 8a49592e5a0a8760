// Package store holds the beneficiary document store: the reads the dependency resolver issues and
// the result writes the orchestrator commits.
package store

import (
	"context"
	"strings"

	"github.com/hatsunemiku3939/underwriter/types"
)

// Beneficiary kinds used by the parent lookup.
const (
	KindBranch       = "EMPRESA_FILIAL"
	KindHeadquarters = "EMPRESA_MATRIZ"
)

// excludedStatuses mark extractions that never count as the latest extraction of a type.
var excludedStatuses = map[string]struct{}{
	"ERRO_DOCUMENTO_NAO_IDENTIFICADO": {},
	"TIPO_INVALIDO":                   {},
	"ERRO_VALIDACAO_TIPO_DOCUMENTO":   {},
}

// Usable reports whether an extraction with status can be consulted as a dependency.
func Usable(status string) bool {
	_, excluded := excludedStatuses[status]
	return !excluded
}

// Timestamp keys written under a document's timestamp map.
const (
	TimestampSubscription = "end_subscription_process_timestamp"
	TimestampMetadata     = "end_metadata_process_timestamp"
	TimestampSimilarity   = "end_similarity_process_timestamp"
)

// Beneficiary is one owner record of the beneficiarios collection.
type Beneficiary struct {
	ID           string       `bson:"id"`
	AggregatorID string       `bson:"agregador"`
	Kind         string       `bson:"tipo,omitempty"`
	Reference    types.Record `bson:"cartao_proposta,omitempty"`
	Documents    []Document   `bson:"documentos"`
}

// Document is one uploaded document of a beneficiary together with its validation results.
type Document struct {
	DocumentID    string       `bson:"document_id"`
	DocumentType  string       `bson:"document_type"`
	Label         string       `bson:"label,omitempty"`
	Status        string       `bson:"status,omitempty"`
	Extracted     types.Record `bson:"extracted_information,omitempty"`
	ExtractedText string       `bson:"extracted_text,omitempty"`

	SubscriptionRules           map[string]any `bson:"subscription_rules,omitempty"`
	SubscriptionProcessed       bool           `bson:"subscription_processed,omitempty"`
	MetadataValidation          map[string]any `bson:"metadata_validation,omitempty"`
	MetadataValidationProcessed bool           `bson:"metadata_validation_processed,omitempty"`
	SimilarityValidation        map[string]any `bson:"similarity_validation,omitempty"`
	SimilarityProcessed         bool           `bson:"similarity_validation_processed,omitempty"`

	Timestamps map[string]string `bson:"timestamp,omitempty"`
}

// SameType reports whether d is of docType, ignoring case.
func (d Document) SameType(docType string) bool {
	return strings.EqualFold(d.DocumentType, docType)
}

// SiblingDocument is a document of the same type filed under the same aggregator.
type SiblingDocument struct {
	OwnerID      string
	OwnerName    string
	DocumentID   string
	DocumentType string
	Text         string
}

// Reader is the read side consumed by the dependency resolver.
type Reader interface {
	// LatestExtraction returns the extracted record of the owner's most recent usable document of
	// docType. It returns ErrNotFound when there is none.
	LatestExtraction(ctx context.Context, ownerID, docType string) (types.Record, error)
	// ParentOwner returns the headquarters owner id of a branch, or "" when ownerID is not a branch
	// or its headquarters is not filed.
	ParentOwner(ctx context.Context, ownerID string) (string, error)
	// AggregatorDocuments lists every document of docType across the aggregator's beneficiaries.
	AggregatorDocuments(ctx context.Context, aggregatorID, docType string) ([]SiblingDocument, error)
}

// Writer is the commit side used by the orchestrator. Every write targets one document of one
// owner and returns ErrDocumentNotFound when that document is not filed.
type Writer interface {
	// UpsertSubscriptionRules merges results into the stored subscription rules and returns the
	// merged set; see Merge.
	UpsertSubscriptionRules(ctx context.Context, ownerID, documentID string, results types.ResultSet, processed bool) (types.ResultSet, error)
	UpsertMetadataValidation(ctx context.Context, ownerID, documentID string, results types.ResultSet, processed bool) error
	UpsertSimilarityValidation(ctx context.Context, ownerID, documentID string, results types.ResultSet, processed bool) error
}

// Store is the full document store contract.
type Store interface {
	Reader
	Writer
}

// latest returns the most recent usable extraction of docType, tagged with its label and id.
func latest(b *Beneficiary, docType string) (types.Record, bool) {
	for i := len(b.Documents) - 1; i >= 0; i-- {
		d := b.Documents[i]
		if d.SameType(docType) && Usable(d.Status) && d.Extracted != nil {
			r := d.Extracted.Clone()
			r["label"] = d.Label
			r["document_id"] = d.DocumentID
			return r, true
		}
	}
	return nil, false
}

func siblingsOf(b *Beneficiary, docType string) []SiblingDocument {
	var out []SiblingDocument
	for _, d := range b.Documents {
		if d.SameType(docType) {
			out = append(out, SiblingDocument{
				OwnerID:      b.ID,
				OwnerName:    b.Reference.String("nome"),
				DocumentID:   d.DocumentID,
				DocumentType: d.DocumentType,
				Text:         d.ExtractedText,
			})
		}
	}
	return out
}
