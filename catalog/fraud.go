package catalog

import (
	"context"
	"strings"

	"github.com/hatsunemiku3939/underwriter/pkg/fraud"
	"github.com/hatsunemiku3939/underwriter/pkg/similarity"
	"github.com/hatsunemiku3939/underwriter/resolver"
	"github.com/hatsunemiku3939/underwriter/rules"
	"github.com/hatsunemiku3939/underwriter/types"
)

const (
	noSiblings    = "Não há outros documentos na mesma proposta"
	noDuplicates  = "Sem indícios de duplicidade"
	duplicatesFmt = "Indícios de duplicidade: "
)

// duplicates flags documents of the same type, filed in the same proposal, whose text is too
// close to the current one. Document types not eligible for duplicate detection are skipped.
func duplicates(docType string, o *options) rules.Rule {
	return rules.Fraud(rules.SimilarDocumentsCheck, func(ctx context.Context, in *rules.Input) (*rules.Outcome, error) {
		docs, err := in.Require(ctx, []string{docType}, resolver.WithSameType())
		if err != nil {
			return nil, err
		}
		sib := docs.Siblings(docType)
		if sib == nil {
			return nil, nil
		}
		if sib.NoComparison() {
			return rules.Match(true).Excerpts("", noSiblings), nil
		}
		// The other documents may not have been extracted yet.
		if sib.Others[0].Text == "" {
			return rules.Wait(), nil
		}

		candidates := make([]similarity.Candidate, 0, len(sib.Others))
		for _, d := range sib.Others {
			candidates = append(candidates, similarity.Candidate{DocumentID: d.DocumentID, Name: d.OwnerName, Text: d.Text})
		}
		alerts, err := similarity.Duplicates(sib.Current.Text, candidates, o.duplicateThreshold, o.duplicateMetric)
		if err != nil {
			return nil, err
		}
		if len(alerts) == 0 {
			return rules.Match(true).Excerpts("", noDuplicates), nil
		}

		highest := 0
		found := make([]string, 0, len(alerts))
		for _, a := range alerts {
			highest = max(highest, a.Score)
			found = append(found, a.String())
		}
		return rules.Verdict(false, float64(100-highest)).
			Excerpts("", duplicatesFmt+strings.Join(found, "; ")), nil
	})
}

// metadataDates scores the file metadata of a document against the emission date read off its
// latest extraction.
func metadataDates(docType string, o *options, emission func(types.Record) string, skip func(types.Record) string) rules.Rule {
	return rules.Fraud(rules.MetadataDatesCheck, func(ctx context.Context, in *rules.Input) (*rules.Outcome, error) {
		docs, err := in.Require(ctx, []string{docType})
		if err != nil {
			return nil, err
		}
		rec := docs.Get(docType)
		if rec == nil {
			return rules.Wait(), nil
		}

		issued := emission(rec)
		searched := "Data de emissão: " + issued
		if skip != nil {
			if reason := skip(rec); reason != "" {
				return rules.Verdict(true, 100).Excerpts(searched, reason), nil
			}
		}

		report := o.scorer.Evaluate(fraud.MetadataFromRecord(in.Extracted), issued)
		return rules.Verdict(report.Approved, float64(100-report.Score)).Excerpts(searched, report.Summary()), nil
	})
}
