package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: `{"a":1}`, want: `{"a":1}`},
		{name: "markdown fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "leading prose", input: `Here you go: {"a":{"b":2}} thanks`, want: `{"a":{"b":2}}`},
		{name: "no object", input: "no json here", wantErr: true},
		{name: "reversed braces", input: "} {", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeClassification(t *testing.T) {
	c, err := decodeClassification(`{"condition": "  Eczema "}`)
	require.NoError(t, err)
	assert.Equal(t, "Eczema", c.Label)

	_, err = decodeClassification(`{"condition": ""}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = decodeClassification(`{}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestDecodeSeverity(t *testing.T) {
	s, err := decodeSeverity(`{"severity": "moderate"}`)
	require.NoError(t, err)
	assert.Equal(t, SeverityModerate, s)

	_, err = decodeSeverity(`{"severity": "Catastrophic"}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = decodeSeverity(`{"level": "Mild"}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityMild.Rank(), SeverityModerate.Rank())
	assert.Less(t, SeverityModerate.Rank(), SeveritySevere.Rank())
	assert.Equal(t, -1, Severity("Unknown").Rank())
}

func TestDecodeRemedies(t *testing.T) {
	t.Run("valid with empty pm routine", func(t *testing.T) {
		b, err := decodeRemedies(`{
			"remedies": [{"title": "Moisturize", "description": "Use a thick cream."}],
			"routine": {"am": ["Cleanse", "Moisturize"], "pm": []},
			"lifestyle": []
		}`)
		require.NoError(t, err)
		assert.Len(t, b.Remedies, 1)
		assert.Equal(t, []string{"Cleanse", "Moisturize"}, b.Routine.AM)
		assert.NotNil(t, b.Routine.PM)
		assert.Empty(t, b.Routine.PM)
		assert.NotNil(t, b.Lifestyle)
	})

	t.Run("missing pm key", func(t *testing.T) {
		_, err := decodeRemedies(`{
			"remedies": [{"title": "Moisturize", "description": "x"}],
			"routine": {"am": []},
			"lifestyle": []
		}`)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("empty remedies", func(t *testing.T) {
		_, err := decodeRemedies(`{"remedies": [], "routine": {"am": [], "pm": []}, "lifestyle": []}`)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("missing lifestyle", func(t *testing.T) {
		_, err := decodeRemedies(`{"remedies": [{"title": "a", "description": "b"}], "routine": {"am": [], "pm": []}}`)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})
}

func TestDecodeIngredients(t *testing.T) {
	r, err := decodeIngredients(`{
		"ingredients": [
			{"name": "Water", "description": "Solvent", "isBeneficial": false, "isIrritant": false},
			{"name": "Niacinamide", "description": "Brightening", "isBeneficial": true, "isIrritant": false},
			{"name": "", "description": "ignored", "isBeneficial": true, "isIrritant": false}
		],
		"summary": "Gentle formula."
	}`)
	require.NoError(t, err)
	require.Len(t, r.Ingredients, 2)
	assert.False(t, r.Ingredients[0].IsBeneficial)
	assert.False(t, r.Ingredients[0].IsIrritant)
	assert.True(t, r.Ingredients[1].IsBeneficial)
	assert.Equal(t, "Gentle formula.", r.Summary)

	_, err = decodeIngredients(`{"ingredients": [], "summary": "x"}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = decodeIngredients(`{"ingredients": [{"name": "Water", "description": "x", "isBeneficial": true, "isIrritant": false}], "summary": " "}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = decodeIngredients(`{"ingredients": [{"name": "Water", "description": "x"}], "summary": "ok"}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestDecodeSuitability(t *testing.T) {
	r, err := decodeSuitability(`{
		"isGoodMatch": false,
		"summary": "Contains alcohol.",
		"ingredientAnalyses": [{"name": "Alcohol Denat.", "isHelpful": false, "isHarmful": true, "reason": "Drying"}]
	}`)
	require.NoError(t, err)
	assert.False(t, r.IsGoodMatch)
	require.Len(t, r.IngredientAnalyses, 1)
	assert.True(t, r.IngredientAnalyses[0].IsHarmful)

	_, err = decodeSuitability(`{"summary": "x", "ingredientAnalyses": []}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestDecodeFollowUp(t *testing.T) {
	text, err := decodeFollowUp("  Use sunscreen daily.  ")
	require.NoError(t, err)
	assert.Equal(t, "Use sunscreen daily.", text)

	_, err = decodeFollowUp("   ")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}
