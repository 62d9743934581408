package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "TOYOTA YARIS", "toyota yaris"},
		{"strips accents", "camión ñu", "camion nu"},
		{"collapses whitespace", "  toyota   yaris \t 2020 ", "toyota yaris 2020"},
		{"maps brand alias", "vw jetta", "volkswagen jetta"},
		{"maps misspelling", "toyoya yaris", "toyota yaris"},
		{"maps chevy", "CHEVY aveo", "chevrolet aveo"},
		{"keeps unknown tokens", "zxcvb 123", "zxcvb 123"},
		{"empty input", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"VW Jetta 2019", "Camión de carga", "chevy  AVEO "}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalizing twice must not change the text: %q", in)
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"toyota", "yaris", "2020"}, Tokens("Toyota  YARIS 2020"))
	assert.Nil(t, Tokens("   "))
}

func TestTokenSort(t *testing.T) {
	// Word order must not matter after token sorting.
	assert.Equal(t, TokenSort("yaris toyota 2020"), TokenSort("2020 TOYOTA yaris"))
	assert.Equal(t, "2020 toyota yaris", TokenSort("yaris toyota 2020"))
}
