package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"

	"github.com/lisan-ai/lisan/pkg/models"
)

// TranslationKey computes the cache key for a translation request.
func TranslationKey(r models.TranslationRequest) string {
	return fingerprint(string(models.KindTranslation), r.Text, r.Formality)
}

// SummaryKey computes the cache key for a summary request.
func SummaryKey(r models.SummaryRequest) string {
	return fingerprint(string(models.KindSummary),
		r.Text,
		r.Style,
		strconv.Itoa(r.MaxLength),
		strconv.FormatBool(r.BulletPoints),
	)
}

// fingerprint hashes fields in the given order. Each field is length-prefixed
// so ("ab", "c") and ("a", "bc") never collide.
func fingerprint(fields ...string) string {
	h := sha256.New()
	for _, f := range fields {
		writeField(h, f)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, f string) {
	h.Write([]byte(strconv.Itoa(len(f))))
	h.Write([]byte{':'})
	h.Write([]byte(f))
}
