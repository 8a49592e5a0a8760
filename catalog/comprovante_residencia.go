package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/thoas/go-funk"

	"github.com/hatsunemiku3939/underwriter/pkg/address"
	"github.com/hatsunemiku3939/underwriter/pkg/similarity"
	"github.com/hatsunemiku3939/underwriter/rules"
	"github.com/hatsunemiku3939/underwriter/types"
)

// proofWindowMonths is how many whole months back a proof of residence may be dated.
const proofWindowMonths = 5

// ComprovanteResidencia is the proof of residence checklist.
func ComprovanteResidencia(o *options) *rules.Catalog {
	return &rules.Catalog{
		DocumentType: "comprovante_residencia",
		Standard: []rules.Rule{
			rules.Standard("validacao_data_emissao", recentProof),
			rules.Standard("validacao_endereco_pessoal", personalAddress),
			rules.Standard("validacao_nome", residentName),
			duplicates("comprovante_residencia", o),
		},
		Fraud: []rules.Rule{
			metadataDates("comprovante_residencia", o, proofEmission, nil),
		},
	}
}

// proofEmission is the declared emission date, or the first day of the reference month.
func proofEmission(r types.Record) string {
	if s := r.String("data_emissao_documento"); s != "" && s != types.NotFound {
		return s
	}
	if m := r.String("data_referencia"); m != "" && m != types.NotFound {
		return "01/" + m
	}
	return ""
}

// recentProof takes the later of the reference month and the due date as the emission and
// passes it when it falls inside the window.
func recentProof(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	ref, err := in.Extracted.Text("data_referencia")
	if err != nil {
		return nil, err
	}
	due, err := in.Extracted.Text("vencimento")
	if err != nil {
		return nil, err
	}
	if ref == types.NotFound || due == types.NotFound {
		return rules.Verdict(false, 0).On("data_emissao").Finding(ref).WithCode(types.CodeNotFound), nil
	}

	month, err := time.Parse(referenceMonth, strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	dueDate, err := time.Parse(extractedDate, strings.TrimSpace(due))
	if err != nil {
		return nil, err
	}
	issued := month
	if dueDate.After(month) {
		issued = dueDate
	}

	oldest := startOfMonth(in.Now).AddDate(0, -proofWindowMonths, 0)
	return binary(!issued.Before(oldest)).On("data_emissao").Finding(issued.Format(referenceMonth)), nil
}

func personalAddress(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	want := address.FromRecord(in.Reference.Sub("endereco_pessoal"))
	got := address.FromRecord(in.Extracted.Sub("endereco_pessoal"))
	valid, percent := address.Score(want, got, address.DefaultThreshold)
	return rules.Verdict(valid, float64(percent)).Excerpts(want.String(), got.String()), nil
}

// residentNames are the documents that can tie the bill holder to the proposal holder.
var residentNames = []string{"certidao_casamento", "rg", "cnh", "escritura_uniao_estavel"}

// residentName accepts a bill in the name of the holder, the holder's spouse or the holder's
// parents.
func residentName(ctx context.Context, in *rules.Input) (*rules.Outcome, error) {
	got, err := in.Extracted.Text("nome")
	if err != nil {
		return nil, err
	}
	holderName, err := in.Reference.Text("nome")
	if err != nil {
		return nil, err
	}
	docs, err := in.Require(ctx, residentNames)
	if err != nil {
		return nil, err
	}

	accepted := []string{holderName}
	for _, name := range []string{"certidao_casamento", "escritura_uniao_estavel"} {
		union := docs.Get(name)
		if union == nil {
			continue
		}
		spouseA, spouseB := union.String("nome_titular"), union.String("nome_dependente")
		if similarity.Score(spouseA, holderName) >= 90 || similarity.Score(spouseB, holderName) >= 90 {
			accepted = append(accepted, spouseB, spouseA)
		}
	}
	for _, name := range []string{"rg", "cnh"} {
		if id := docs.Get(name); id != nil {
			accepted = append(accepted, id.String("nome_pai"), id.String("nome_mae"))
		}
	}
	accepted = funk.UniqString(accepted)

	var best *rules.Outcome
	bestScore := 0.0
	for _, name := range accepted {
		score := similarity.Score(got, name)
		if score >= 90 {
			return rules.Verdict(true, score).On("nome").Excerpts(name, got), nil
		}
		if score > bestScore {
			bestScore = score
			best = rules.Verdict(false, score).On("nome").Excerpts(name, got).WithCode(types.CodeInvalid)
		}
	}
	if best != nil {
		return best, nil
	}

	if docs.Get("certidao_casamento") == nil && docs.Get("escritura_uniao_estavel") == nil &&
		docs.Get("rg") == nil && docs.Get("cnh") == nil {
		return rules.Wait(), nil
	}
	return rules.Verdict(false, 0).On("nome").Excerpts(strings.Join(accepted, ", "), got), nil
}
