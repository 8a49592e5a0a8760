package catalog

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/thoas/go-funk"

	"github.com/hatsunemiku3939/underwriter/pkg/address"
	"github.com/hatsunemiku3939/underwriter/pkg/similarity"
	"github.com/hatsunemiku3939/underwriter/resolver"
	"github.com/hatsunemiku3939/underwriter/rules"
	"github.com/hatsunemiku3939/underwriter/types"
)

const (
	indefinite          = "INDETERMINADO"
	minContractMonths   = 12
	minElapsedMonths    = 3
	companyAddressRatio = 0.5
)

// ContratoPrestacaoServico is the service agreement checklist binding a headquarters
// (estipulante) and a branch (subestipulante).
func ContratoPrestacaoServico() *rules.Catalog {
	return &rules.Catalog{
		DocumentType: "contrato_prestacao_servico",
		Standard: []rules.Rule{
			rules.Standard("validacao_razao_social_matriz", nameMatch("razao_social_matriz", 90)),
			rules.Standard("validacao_cnpj_matriz", digitsMatch("cnpj_matriz")),
			rules.Standard("validacao_endereco_empresa_matriz", companyAddress("endereco_empresa_matriz")),
			{Name: "validacao_razao_social_subestipulante", Target: "razao_social", Check: branchName},
			{Name: "validacao_cnpj_subestipulante", Target: "cnpj", Check: branchCNPJ},
			{Name: "validacao_endereco_subestipulante", Target: "endereco_empresa", Check: companyAddress("endereco_empresa")},
			rules.Standard("validacao_tempo_contrato", contractTerm),
			rules.Standard("validacao_data_emissao", contractInForce),
		},
		Signature: []rules.Rule{
			rules.Standard("validacao_assinatura", legalSignatures),
		},
	}
}

func branchName(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	want, err := in.Reference.Text("razao_social")
	if err != nil {
		return nil, err
	}
	got, err := in.Extracted.Text("razao_social")
	if err != nil {
		return nil, err
	}
	score := similarity.Score(strings.ToUpper(want), strings.ToUpper(got))
	return rules.Verdict(score >= 90, score).Excerpts(want, got), nil
}

func branchCNPJ(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	want, err := in.Reference.Text("cnpj")
	if err != nil {
		return nil, err
	}
	got, err := in.Extracted.Text("cnpj")
	if err != nil {
		return nil, err
	}
	a, b := digits(want), digits(got)
	return binary(a == b).Excerpts(a, b), nil
}

// companyAddress scores structured addresses part by part and free-text ones as a whole.
func companyAddress(field string) rules.Check {
	return func(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
		wantRaw, _ := in.Reference.Value(field)
		gotRaw, _ := in.Extracted.Value(field)
		want, wok := wantRaw.(string)
		got, gok := gotRaw.(string)
		if wok && gok {
			score := similarity.Score(strings.ToUpper(want), strings.ToUpper(got))
			return rules.Verdict(score >= companyAddressRatio*100, score).Excerpts(want, got), nil
		}
		a := address.FromRecord(types.AsRecord(wantRaw))
		b := address.FromRecord(types.AsRecord(gotRaw))
		valid, percent := address.Score(a, b, companyAddressRatio)
		return rules.Verdict(valid, float64(percent)).Excerpts(a.String(), b.String()), nil
	}
}

// term reads a contract duration such as "12 meses" or "2 anos" as a number of months.
// It reports false for indefinite or unreadable terms.
func term(s string) (int, bool) {
	n := -1
	unit := ""
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if v, err := strconv.Atoi(tok); err == nil && n < 0 {
			n = v
			continue
		}
		switch tok {
		case "meses", "mês", "mes":
			unit = "month"
		case "anos", "ano":
			unit = "year"
		}
		if unit != "" && n >= 0 {
			break
		}
	}
	switch {
	case n < 0 || unit == "":
		return 0, false
	case unit == "year":
		return n * 12, true
	}
	return n, true
}

// contractTerm passes indefinite agreements and those of at least twelve months.
func contractTerm(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	s, err := in.Extracted.Text("tempo_contrato")
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(strings.TrimSpace(s), indefinite) {
		return binary(true), nil
	}
	months, ok := term(s)
	return binary(ok && months >= minContractMonths), nil
}

// contractInForce passes agreements that started at least three months ago and have not ended.
// Half the score is for the elapsed time, half for still being in force.
func contractInForce(_ context.Context, in *rules.Input) (*rules.Outcome, error) {
	start := in.Extracted.String("inicio_vigencia_contrato")
	length := in.Extracted.String("tempo_contrato")
	if start == "" || start == types.NotFound {
		return rules.Verdict(false, 0).On("data_emissao").
			Excerpts("", "Início da vigência: "+types.NotFound+" | Tempo de contrato: "+length), nil
	}
	began, err := time.Parse(extractedDate, strings.TrimSpace(start))
	if err != nil {
		return rules.Verdict(false, 0).On("data_emissao").
			Excerpts("", "Data inválida: "+start).WithCode(types.CodeInvalid), nil
	}

	began = startOfMonth(began)
	if began.After(startOfMonth(in.Now).AddDate(0, -minElapsedMonths, 0)) {
		return rules.Verdict(false, 0).On("data_emissao"), nil
	}
	if strings.EqualFold(strings.TrimSpace(length), indefinite) {
		return rules.Verdict(true, 100).On("data_emissao"), nil
	}
	months, ok := term(length)
	if !ok {
		return rules.Verdict(false, 50).On("data_emissao"), nil
	}
	ends := began.AddDate(0, months, 0)
	if ends.Before(day(in.Now)) {
		return rules.Verdict(false, 50).On("data_emissao"), nil
	}
	return rules.Verdict(true, 100).On("data_emissao"), nil
}

// legalDocuments name the legal representatives of a company.
var legalDocuments = []string{"contrato_social", "estatuto_social", "ata_assembleia", "mei", "procuracao", "requerimento_empresario"}

type lookup func(name string) types.Record

func splitNames(s string) []string {
	var out []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func lettersOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= unicode.MaxASCII && unicode.IsLetter(r) {
			return unicode.ToUpper(r)
		}
		return -1
	}, s)
}

// representatives lists everyone the legal documents of one company empower to sign.
func representatives(get lookup) []string {
	var names []string
	if cs := get("contrato_social"); cs != nil {
		names = append(names, splitNames(cs.String("nomes_assinatura"))...)
	}
	if bylaws, minutes := get("estatuto_social"), get("ata_assembleia"); bylaws != nil && minutes != nil {
		elected := minutes.Sub("cargos_eleitos")
		for _, role := range bylaws.Strings("cargo_responsavel_legal") {
			want := lettersOnly(role)
			for _, office := range slices.Sorted(maps.Keys(elected)) {
				if want != "" && strings.Contains(lettersOnly(office), want) {
					names = append(names, splitNames(strings.Join(elected.Strings(office), ","))...)
				}
			}
		}
	}
	if mei := get("mei"); mei != nil {
		names = append(names, splitNames(mei.String("nome"))...)
	}
	if proxy := get("procuracao"); proxy != nil {
		names = append(names, splitNames(proxy.String("procuradores"))...)
	}
	if req := get("requerimento_empresario"); req != nil {
		names = append(names, splitNames(req.String("nome_empresario"))...)
	}
	return funk.UniqString(names)
}

func signedBy(present bool, signers, allowed []string) bool {
	if !present {
		return false
	}
	for _, s := range signers {
		for _, a := range allowed {
			if similarity.Score(strings.ToUpper(s), strings.ToUpper(a)) >= 80 {
				return true
			}
		}
	}
	return false
}

// legalSignatures checks that both parties signed through their legal representatives. The
// headquarters' representatives come from its own filed documents.
func legalSignatures(ctx context.Context, in *rules.Input) (*rules.Outcome, error) {
	docs, err := in.Require(ctx, legalDocuments, resolver.WithParent())
	if err != nil {
		return nil, err
	}
	headquarters := representatives(docs.Parent)
	branch := representatives(docs.Get)
	if len(headquarters) == 0 || len(branch) == 0 {
		return rules.Wait().On("assinatura"), nil
	}

	contractor := in.Extracted.Strings("nome_assinatura_empresa_contratante")
	contracted := in.Extracted.Strings("nome_assinatura_empresa_contratada")
	byContractor := signedBy(truthy(in.Extracted, "ha_assinatura_empresa_contratante"), contractor, headquarters)
	byContracted := signedBy(truthy(in.Extracted, "ha_assinatura_empresa_contratada"), contracted, branch)

	score := 0.0
	switch {
	case byContractor && byContracted:
		score = 100
	case byContractor || byContracted:
		score = 50
	}
	return rules.Verdict(byContractor && byContracted, score).On("assinatura").Excerpts(
		"Assinatura Contratante: "+strings.Join(contractor, ", ")+" | Assinatura Contratada: "+strings.Join(contracted, ", "),
		"Responsável Estipulante: "+strings.Join(headquarters, ", ")+" | Responsável Subestipulante: "+strings.Join(branch, ", "),
	), nil
}
