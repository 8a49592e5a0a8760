package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hatsunemiku3939/underwriter/types"
)

// MemoryStore is an in-process Store used by the dry-run CLI and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	beneficiaries map[string]*Beneficiary
	order         []string
	now           func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		beneficiaries: make(map[string]*Beneficiary),
		now:           time.Now,
	}
}

// Put inserts or replaces a beneficiary.
func (s *MemoryStore) Put(b Beneficiary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.beneficiaries[b.ID]; !ok {
		s.order = append(s.order, b.ID)
	}
	cp := b
	cp.Documents = append([]Document(nil), b.Documents...)
	s.beneficiaries[b.ID] = &cp
}

// Get returns a copy of the beneficiary stored under id.
func (s *MemoryStore) Get(id string) (Beneficiary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.beneficiaries[id]
	if !ok {
		return Beneficiary{}, false
	}
	cp := *b
	cp.Documents = append([]Document(nil), b.Documents...)
	return cp, true
}

// Document returns a copy of one stored document.
func (s *MemoryStore) Document(ownerID, documentID string) (Document, bool) {
	b, ok := s.Get(ownerID)
	if !ok {
		return Document{}, false
	}
	for _, d := range b.Documents {
		if d.DocumentID == documentID {
			return d, true
		}
	}
	return Document{}, false
}

func (s *MemoryStore) LatestExtraction(_ context.Context, ownerID, docType string) (types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.beneficiaries[ownerID]
	if !ok {
		return nil, fmt.Errorf("beneficiary %s: %w", ownerID, ErrNotFound)
	}
	if r, ok := latest(b, docType); ok {
		return r, nil
	}
	return nil, fmt.Errorf("%s of %s: %w", docType, ownerID, ErrNotFound)
}

func (s *MemoryStore) ParentOwner(_ context.Context, ownerID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.beneficiaries[ownerID]
	if !ok {
		return "", fmt.Errorf("beneficiary %s: %w", ownerID, ErrNotFound)
	}
	if b.Kind != KindBranch {
		return "", nil
	}
	cnpj := b.Reference.String("cnpj_matriz")
	for _, id := range s.order {
		c := s.beneficiaries[id]
		if c.AggregatorID == b.AggregatorID && c.Kind == KindHeadquarters && c.Reference.String("cnpj") == cnpj {
			return c.ID, nil
		}
	}
	return "", nil
}

func (s *MemoryStore) AggregatorDocuments(_ context.Context, aggregatorID, docType string) ([]SiblingDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SiblingDocument
	for _, id := range s.order {
		b := s.beneficiaries[id]
		if b.AggregatorID != aggregatorID {
			continue
		}
		out = append(out, siblingsOf(b, docType)...)
	}
	return out, nil
}

func (s *MemoryStore) UpsertSubscriptionRules(_ context.Context, ownerID, documentID string, results types.ResultSet, processed bool) (types.ResultSet, error) {
	var merged types.ResultSet
	err := s.update(ownerID, documentID, func(d *Document) error {
		prior, err := decodeResults(d.SubscriptionRules)
		if err != nil {
			return err
		}
		merged = Merge(prior, results)
		d.SubscriptionRules = merged.Map()
		if processed {
			d.SubscriptionProcessed = true
		}
		s.stamp(d, TimestampSubscription)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *MemoryStore) UpsertMetadataValidation(_ context.Context, ownerID, documentID string, results types.ResultSet, processed bool) error {
	return s.update(ownerID, documentID, func(d *Document) error {
		d.MetadataValidation = results.Map()
		if processed {
			d.MetadataValidationProcessed = true
		}
		s.stamp(d, TimestampMetadata)
		return nil
	})
}

func (s *MemoryStore) UpsertSimilarityValidation(_ context.Context, ownerID, documentID string, results types.ResultSet, processed bool) error {
	return s.update(ownerID, documentID, func(d *Document) error {
		d.SimilarityValidation = results.Map()
		if processed {
			d.SimilarityProcessed = true
		}
		s.stamp(d, TimestampSimilarity)
		return nil
	})
}

func (s *MemoryStore) update(ownerID, documentID string, fn func(d *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.beneficiaries[ownerID]
	if !ok {
		return fmt.Errorf("beneficiary %s: %w", ownerID, ErrDocumentNotFound)
	}
	for i := range b.Documents {
		if b.Documents[i].DocumentID == documentID {
			return fn(&b.Documents[i])
		}
	}
	return fmt.Errorf("%s/%s: %w", ownerID, documentID, ErrDocumentNotFound)
}

func (s *MemoryStore) stamp(d *Document, key string) {
	if d.Timestamps == nil {
		d.Timestamps = make(map[string]string)
	}
	d.Timestamps[key] = unixTimestamp(float64(s.now().UnixNano()) / 1e9)
}
