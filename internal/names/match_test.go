package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"exact", "bilo ab", "bilo ab", true},
		{"substring", "bilo ab", "bilo", true},
		{"same first token", "riddermark bil ab", "riddermark bilar", true},
		{"first token prefix", "ahlberg bil", "ahlbergs motor", true},
		{"first token prefix too far apart", "auto ab x", "automobiler y", false},
		{"short first token ignored", "kia center", "kia motors", false},
		{"significant word overlap", "svenska fordonshandeln norr", "norr svenska trading", true},
		{"single word overlap", "anders persson bil", "persson lastbilar", false},
		{"unrelated", "anna karlsson", "kalles bilservice", false},
		{"empty left", "", "bilo", false},
		{"empty both", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.a, tt.b))
		})
	}
}

func TestMatches_Symmetric(t *testing.T) {
	corpus := []string{
		"", "bilo", "bilo ab", "riddermark bil ab", "riddermark bilar", "ahlberg bil",
		"ahlbergs motor", "kia center", "kia motors", "svenska fordonshandeln norr",
		"norr svenska trading", "anna karlsson", "kalles bilservice", "auto ab x", "automobiler y",
	}
	for _, a := range corpus {
		for _, b := range corpus {
			assert.Equal(t, Matches(a, b), Matches(b, a), "%q vs %q", a, b)
		}
	}
}

func TestNormalizedMatches(t *testing.T) {
	assert.True(t, NormalizedMatches("Riddermark Bil AB", "RIDDERMARK BILAR"))
	assert.True(t, NormalizedMatches("Bilhuset i Åre", "bilhuset i are"))
	assert.False(t, NormalizedMatches("Anna Karlsson", "Kalles Bilservice"))
}

func TestSignificantWords(t *testing.T) {
	assert.Equal(t, []string{"riddermark"}, SignificantWords("riddermark bil ab"))
	assert.Equal(t, []string{"nya", "hedin"}, SignificantWords("nya hedin bil och motor i nya"))
	assert.Empty(t, SignificantWords("ab x y"))
}
