package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/hatsunemiku3939/underwriter/pkg/address"
	"github.com/hatsunemiku3939/underwriter/pkg/similarity"
	"github.com/hatsunemiku3939/underwriter/rules"
	"github.com/hatsunemiku3939/underwriter/types"
)

const (
	// yes is how the extraction pipeline writes a positive page flag.
	yes = "Verdadeiro"

	signatureWindow = 30 * 24 * time.Hour
	cnpjRootDigits  = 8
)

// CTPS is the work permit checklist.
func CTPS(o *options) *rules.Catalog {
	return &rules.Catalog{
		DocumentType: "ctps",
		Standard: []rules.Rule{
			rules.Standard("validacao_nome", nameMatch("nome", 90)),
			rules.Standard("validacao_cpf", digitsMatch("cpf")),
			rules.Standard("validacao_data_nascimento", sameDate("data_nascimento")),
			rules.Standard("validacao_nome_mae", nameMatch("nome_mae", 90)),
			rules.Standard("validacao_cnpj", cnpjMatch("cnpj")),
			rules.Standard("validacao_razao_social", nameMatch("razao_social", 80)),
			rules.Standard("validacao_cbo", occupationFilled),
			rules.Standard("validacao_data_admissao", sameDate("data_admissao")),
			rules.Standard("validacao_endereco_empresa", companyStreet),
			rules.Standard("validacao_documento_digital", digitalOrComplete),
			rules.Standard("validacao_data_assinatura", recentlySigned),
			duplicates("ctps", o),
		},
		Signature: []rules.Rule{
			rules.Standard("validacao_assinatura_fisica", physicallySigned),
		},
		Fraud: []rules.Rule{
			metadataDates("ctps", o,
				func(r types.Record) string { return r.String("data_emissao") },
				func(r types.Record) string {
					if !truthy(r, "documento_digital") {
						return "CTPS física sem validação."
					}
					return ""
				}),
		},
	}
}

// cnpjMatch compares full CNPJs, or only their eight-digit roots when either side is partial.
func cnpjMatch(field string) rules.Check {
	return func(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
		ref, err := in.Reference.Text(field)
		if err != nil {
			return nil, err
		}
		got, err := in.Extracted.Text(field)
		if err != nil {
			return nil, err
		}
		a, b := digits(ref), digits(got)
		if len(a) > cnpjRootDigits && len(b) > cnpjRootDigits {
			return binary(a == b), nil
		}
		return binary(root(a) == root(b)), nil
	}
}

func root(cnpj string) string {
	if len(cnpj) > cnpjRootDigits {
		return cnpj[:cnpjRootDigits]
	}
	return cnpj
}

func occupationFilled(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	cbo, err := in.Extracted.Text("cbo")
	if err != nil {
		return nil, err
	}
	return binary(!strings.EqualFold(cbo, types.NotFound)), nil
}

func companyStreet(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	want := address.FromRecord(in.Reference.Sub("endereco_empresa")).Street
	got := address.FromRecord(in.Extracted.Sub("endereco_empresa")).Street
	score := similarity.Score(strings.ToUpper(want), strings.ToUpper(got))
	return rules.Verdict(score >= 70, score).Excerpts(want, got), nil
}

// digitalOrComplete passes digital permits, and physical ones scanned with the photo,
// qualification and contract pages.
func digitalOrComplete(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	if in.Extracted.String("documento_digital") == yes {
		return rules.Verdict(true, 100), nil
	}
	pages := 0
	for _, p := range []string{"pagina_foto_assinatura", "pagina_qualificacao", "pagina_contrato"} {
		if in.Extracted.String(p) == yes {
			pages++
		}
	}
	if pages == 3 {
		return rules.Verdict(true, 100), nil
	}
	return rules.Verdict(false, float64(pages)), nil
}

// recentlySigned passes digital permits signed within the last thirty days.
func recentlySigned(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	raw, err := in.Extracted.Text("data_assinatura")
	if err != nil {
		return nil, err
	}
	if raw == types.NotFound {
		return rules.Verdict(false, 0).Finding(raw).WithCode(types.CodeNotFound), nil
	}
	signed, err := time.Parse(extractedDate, strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return binary(!signed.Before(in.Now.Add(-signatureWindow))), nil
}

// physicallySigned passes digital permits, and physical ones signed by holder and employer.
func physicallySigned(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	if truthy(in.Extracted, "documento_digital") {
		return rules.Verdict(true, 100).On("assinatura_fisica").
			Excerpts("", "Documento digital. Validação não aplicável."), nil
	}
	signed := truthy(in.Extracted, "assinatura_titular") && truthy(in.Extracted, "assinatura_empresa")
	return binary(signed).On("assinatura_fisica").Excerpts("", ""), nil
}
