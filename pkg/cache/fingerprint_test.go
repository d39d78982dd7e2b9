package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lisan-ai/lisan/pkg/models"
)

func TestTranslationKeyDeterministic(t *testing.T) {
	r := models.TranslationRequest{Text: "hello world", Formality: "formal"}
	k1 := TranslationKey(r)
	k2 := TranslationKey(models.TranslationRequest{Text: "hello world", Formality: "formal"})

	assert.Equal(t, k1, k2, "same input should produce same key")
	assert.Len(t, k1, 64)
}

func TestTranslationKeyDiffers(t *testing.T) {
	base := models.TranslationRequest{Text: "hello", Formality: "formal"}

	assert.NotEqual(t, TranslationKey(base), TranslationKey(models.TranslationRequest{Text: "hello", Formality: "informal"}))
	assert.NotEqual(t, TranslationKey(base), TranslationKey(models.TranslationRequest{Text: "hello!", Formality: "formal"}))
}

func TestSummaryKeyDiffersPerOption(t *testing.T) {
	base := models.SummaryRequest{Text: "long text", Style: "formal", MaxLength: 500}
	variants := []models.SummaryRequest{
		{Text: "long text.", Style: "formal", MaxLength: 500},
		{Text: "long text", Style: "technical", MaxLength: 500},
		{Text: "long text", Style: "formal", MaxLength: 501},
		{Text: "long text", Style: "formal", MaxLength: 500, BulletPoints: true},
	}

	seen := map[string]bool{SummaryKey(base): true}
	for _, v := range variants {
		k := SummaryKey(v)
		assert.False(t, seen[k], "collision for %+v", v)
		seen[k] = true
	}
	assert.Equal(t, SummaryKey(base), SummaryKey(base))
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	assert.NotEqual(t, fingerprint("ab", "c"), fingerprint("a", "bc"))
	assert.NotEqual(t, fingerprint("a1", ""), fingerprint("a", "1"))
}

func TestKeysDoNotCrossVariants(t *testing.T) {
	tr := TranslationKey(models.TranslationRequest{Text: "x", Formality: "formal"})
	sm := SummaryKey(models.SummaryRequest{Text: "x", Style: "formal"})
	assert.NotEqual(t, tr, sm)
}
