package catalog

import (
	"context"
	"strings"

	"github.com/hatsunemiku3939/underwriter/pkg/similarity"
	"github.com/hatsunemiku3939/underwriter/rules"
	"github.com/hatsunemiku3939/underwriter/types"
)

// CNH is the driver's license checklist. When the proposal names a legal guardian the license
// is the guardian's and the holder fields come from nome_responsavel and cpf_responsavel.
func CNH() *rules.Catalog {
	return &rules.Catalog{
		DocumentType: "cnh",
		Standard: []rules.Rule{
			rules.Standard("validacao_nome", holderName),
			rules.Standard("validacao_cpf", holderCPF),
			rules.Standard("validacao_nome_mae", guardianExempt("nome_mae", nameMatch("nome_mae", 90))),
			rules.Standard("validacao_data_nascimento", guardianExempt("data_nascimento", sameDate("data_nascimento"))),
			rules.Standard("validacao_data_validade", notExpired("data_validade")),
		},
	}
}

func guardian(ref types.Record) bool {
	return ref.Has("nome_responsavel")
}

// holder returns the reference field of whoever the license belongs to.
func holder(ref types.Record, field string) (string, error) {
	if guardian(ref) {
		return ref.Text(field + "_responsavel")
	}
	return ref.Text(field)
}

func holderName(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	want, err := holder(in.Reference, "nome")
	if err != nil {
		return nil, err
	}
	got, err := in.Extracted.Text("nome")
	if err != nil {
		return nil, err
	}
	score := similarity.Score(strings.ToUpper(want), strings.ToUpper(got))
	return rules.Verdict(score >= 90, score).Excerpts(want, got), nil
}

func holderCPF(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	want, err := holder(in.Reference, "cpf")
	if err != nil {
		return nil, err
	}
	got, err := in.Extracted.Text("cpf")
	if err != nil {
		return nil, err
	}
	return binary(digits(want) == digits(got)).Excerpts(want, got), nil
}

// guardianExempt passes a field a guardian's proposal leaves blank.
func guardianExempt(field string, check rules.Check) rules.Check {
	return func(ctx context.Context, in *rules.Input) (*rules.Outcome, error) {
		if guardian(in.Reference) && strings.TrimSpace(in.Reference.String(field)) == "" {
			return rules.Verdict(true, 100).Excerpts(notApplicable, notApplicable), nil
		}
		return check(ctx, in)
	}
}

// notExpired passes while the extracted date has not gone by.
func notExpired(field string) rules.Check {
	return func(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
		until, err := date(in.Extracted, field, extractedDate)
		if err != nil {
			return nil, err
		}
		return binary(!until.Before(day(in.Now))), nil
	}
}
