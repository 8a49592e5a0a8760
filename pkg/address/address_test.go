package address

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hatsunemiku3939/underwriter/types"
)

func sample() Address {
	return Address{
		PostalCode:   "01310-100",
		Street:       "Avenida Paulista",
		Number:       "1578",
		Complement:   "Apartamento 12",
		Neighborhood: "Bela Vista",
		City:         "São Paulo",
		State:        "SP",
	}
}

func TestScore_Identical(t *testing.T) {
	valid, percent := Score(sample(), sample(), DefaultThreshold)
	assert.True(t, valid)
	assert.Equal(t, 100, percent)
}

func TestScore_PostalCodeDiffers(t *testing.T) {
	ext := sample()
	ext.PostalCode = "01310-999"
	valid, percent := Score(sample(), ext, DefaultThreshold)
	assert.True(t, valid)
	assert.Equal(t, 85, percent)
}

func TestScore_Threshold(t *testing.T) {
	ext := sample()
	ext.PostalCode = "99999-999"
	ext.Number = "10"
	ext.State = "RJ"
	valid, percent := Score(sample(), ext, 0)
	assert.False(t, valid)
	assert.Equal(t, 57, percent)

	valid, _ = Score(sample(), ext, 0.5)
	assert.True(t, valid)
}

func TestEvaluate_Parts(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(a *Address)
		part  Part
		match bool
	}{
		{"postal code formatting ignored", func(a *Address) { a.PostalCode = "01310100" }, PartPostalCode, true},
		{"abbreviated complement", func(a *Address) { a.Complement = "Apto. 12" }, PartComplement, true},
		{"different complement number", func(a *Address) { a.Complement = "Apto 13" }, PartComplement, false},
		{"number not found", func(a *Address) { a.Number = types.NotFound }, PartNumber, false},
		{"non numeric number", func(a *Address) { a.Number = "S/N" }, PartNumber, false},
		{"number with spaces", func(a *Address) { a.Number = " 1578 " }, PartNumber, true},
		{"street case and accents", func(a *Address) { a.Street = "AVENIDA PAULISTA" }, PartStreet, true},
		{"different city", func(a *Address) { a.City = "Rio de Janeiro" }, PartCity, false},
		{"state is exact", func(a *Address) { a.State = "sp" }, PartState, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ext := sample()
			tc.edit(&ext)
			res := Default.Evaluate(sample(), ext)
			assert.Equal(t, tc.match, res.Parts[tc.part])
		})
	}
}

func TestEvaluate_EmptyPartsDoNotMatch(t *testing.T) {
	ref, ext := sample(), sample()
	ref.Complement = ""
	ext.Complement = types.NotFound
	ref.Neighborhood, ext.Neighborhood = "", ""
	res := Default.Evaluate(ref, ext)
	assert.False(t, res.Parts[PartComplement])
	assert.False(t, res.Parts[PartNeighborhood])
	assert.Equal(t, 5, res.Matched)

	ok, percent := Default.Score(ref, ext, 0)
	assert.True(t, ok)
	assert.Equal(t, 71, percent)
}

func TestComplement(t *testing.T) {
	assert.Equal(t, "A 12", complement("Apartamento 12"))
	assert.Equal(t, "A 12", complement("Apto. 12"))
	assert.Equal(t, "B 3 A 4", complement("Bloco 3, Apto 4"))
	assert.Equal(t, "", complement(types.NotFound))
}

func TestFromRecord(t *testing.T) {
	r := types.Record{"cep": "01310-100", "rua": "Rua A", "numero": float64(12), "estado": "SP"}
	a := FromRecord(r)
	assert.Equal(t, "12", a.Number)
	assert.Equal(t, "Rua A", a.Street)
	assert.Equal(t, "", a.City)
	assert.Equal(t, "Rua A, 12, SP, 01310-100", a.String())
}
