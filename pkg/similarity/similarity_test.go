package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_IdenticalStrings(t *testing.T) {
	for _, s := range []string{"JOAO SILVA", "Maria Aparecida Souza", "CONSTRUTORA ALFA LTDA", "ana"} {
		t.Run(s, func(t *testing.T) {
			assert.InDelta(t, 100, Score(s, s), 1e-9)
		})
	}
}

func TestScore_Empty(t *testing.T) {
	assert.Equal(t, float64(0), Score("", "JOAO SILVA"))
	assert.Equal(t, float64(0), Score("JOAO SILVA", ""))
	assert.Equal(t, float64(0), Score("", ""))
}

func TestScore_StopwordsOnly(t *testing.T) {
	// no initials survive, so the abbreviation component is zero
	assert.Equal(t, float64(0), Score("de da", "de da"))
}

func TestScore_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"JOAO DA SILVA", "JOAO SILVA"},
		{"Construtora Alfa Ltda", "CONSTRUTORA ALFA LIMITADA"},
		{"RUA DAS FLORES", "R DAS FLORES"},
		{"MARTHA", "MARHTA"},
		{"ab", "ba"},
	}
	for _, p := range pairs {
		t.Run(p[0]+"|"+p[1], func(t *testing.T) {
			assert.Equal(t, Score(p[0], p[1]), Score(p[1], p[0]))
		})
	}
}

func TestScore_IgnoresCaseAndDiacritics(t *testing.T) {
	assert.InDelta(t, 100, Score("JOÃO ANDRÉ", "joao andre"), 1e-9)
}

func TestScore_DissimilarNamesScoreLow(t *testing.T) {
	far := Score("JOAO SILVA", "PEDRO HENRIQUE")
	assert.Less(t, far, 60.0)
	assert.Greater(t, Score("JOAO DA SILVA", "JOAO SILVA"), far)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "sao paulo", Normalize("São Paulo"))
	assert.Equal(t, "acao", Normalize("AÇÃO"))
}

func TestAbbreviate(t *testing.T) {
	assert.Equal(t, "j s", Abbreviate("joao da silva"))
	assert.Equal(t, "a 1", Abbreviate("apto 12"))
	assert.Equal(t, "", Abbreviate("de do"))
	assert.Equal(t, "s p", Abbreviate("sao, paulo"))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, float64(100), Ratio("j s", "j s"))
	assert.Equal(t, float64(0), Ratio("", "j s"))
	assert.Equal(t, float64(50), Ratio("ab", "ac"))
}

func TestDuplicates(t *testing.T) {
	current := "CONTRATO DE TRABALHO registrado em 10/01/2023 empresa ALFA"
	candidates := []Candidate{
		{DocumentID: "1", Name: "ctps_a.pdf", Text: current},
		{DocumentID: "2", Name: "ctps_b.pdf", Text: "documento completamente diferente sem relacao nenhuma"},
		{DocumentID: "3", Name: "ctps_c.pdf", Text: ""},
	}

	t.Run("sequential", func(t *testing.T) {
		alerts, err := Duplicates(current, candidates, 0.85, MetricSequential)
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, "1", alerts[0].DocumentID)
		assert.Equal(t, 100, alerts[0].Score)
		assert.Equal(t, "'nome': 'ctps_a.pdf', 'score': 100", alerts[0].String())
	})

	t.Run("jaccard", func(t *testing.T) {
		alerts, err := Duplicates(current, candidates, 0.85, MetricJaccard)
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, "ctps_a.pdf", alerts[0].Name)
	})

	t.Run("unknown metric", func(t *testing.T) {
		_, err := Duplicates(current, candidates, 0.85, Metric("tfidf"))
		assert.Error(t, err)
	})
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, Jaccard("Contrato de trabalho", "contrato, trabalho!"), 1e-9)
	assert.InDelta(t, 0.5, Jaccard("contrato trabalho", "contrato empresa trabalho extra"), 1e-9)
	assert.Equal(t, float64(0), Jaccard("de a o", "e"))
}
