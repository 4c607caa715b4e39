package textmatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/borjarodrigo23ia/ocr-ia/internal/textmatch"
)

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"infortisa", "infortisa", 0},
		{"infortisa", "infortise", 1},
		{"acme", "acme s.l.", 5},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, textmatch.Levenshtein(tc.a, tc.b), "Levenshtein(%q, %q)", tc.a, tc.b)
	}
}

func TestSimilarity_Identical(t *testing.T) {
	for _, s := range []string{"", "a", "proveedor ejemplo", "iggual cargador universal"} {
		assert.Equal(t, 1.0, textmatch.Similarity(s, s), "Similarity(%q, %q)", s, s)
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"infortisa", "infortixa"},
		{"acme", "acme sl"},
		{"", "abc"},
	}
	for _, p := range pairs {
		assert.Equal(t, textmatch.Similarity(p[0], p[1]), textmatch.Similarity(p[1], p[0]))
	}
}

func TestSimilarity_Range(t *testing.T) {
	s := textmatch.Similarity("completely different", "nada que ver")
	assert.GreaterOrEqual(t, s, 0.0)
	assert.Less(t, s, 0.5)

	// One character off in a 9-char name stays above the 0.85 threshold the
	// product-description cascade uses.
	assert.Greater(t, textmatch.Similarity("infortisa", "infortise"), 0.85)
}

func TestSimilarity_AccentedCountsRunes(t *testing.T) {
	// Three completely different runes score 0 no matter how many bytes
	// the accented characters take.
	assert.Equal(t, 0.0, textmatch.Similarity("ñóé", "abc"))

	// One accent slip in a 9-rune name: 8/9, same as the unaccented case.
	assert.InDelta(t, 8.0/9.0, textmatch.Similarity("garcía sl", "garcia sl"), 1e-9)
	assert.Equal(t, textmatch.Similarity("infortisa", "infortise"), textmatch.Similarity("infortísa", "infortíse"))
}

func TestKeywords(t *testing.T) {
	kw := textmatch.Keywords("Cargador universal de portátil para el coche")
	assert.Equal(t, []string{"cargador", "universal", "portátil", "coche"}, kw)
}

func TestKeywords_CapsAtFive(t *testing.T) {
	kw := textmatch.Keywords("uno dos tres cuatro cinco seis siete ocho")
	assert.Len(t, kw, 5)
}

func TestKeywords_Empty(t *testing.T) {
	assert.Empty(t, textmatch.Keywords("de la el y o"))
	assert.Empty(t, textmatch.Keywords(""))
}
