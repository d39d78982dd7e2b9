package ledger

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lisan-ai/lisan/pkg/models"
)

func TestTransitions(t *testing.T) {
	l := New()

	l.Processing("req-1", models.KindTranslation)
	rec, ok := l.Get("req-1")
	require.True(t, ok)
	assert.Equal(t, models.StatusProcessing, rec.Status)

	result := models.TranslationResult{Translation: "مرحبا", Formality: "neutral"}
	require.NoError(t, l.Complete("req-1", models.KindTranslation, result))

	rec, ok = l.Get("req-1")
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, rec.Status)

	var got models.TranslationResult
	require.NoError(t, json.Unmarshal(rec.Result, &got))
	assert.Equal(t, result, got)
}

func TestFail(t *testing.T) {
	l := New()
	l.Processing("req-2", models.KindSummary)
	l.Fail("req-2", models.KindSummary, "model unavailable")

	rec, ok := l.Get("req-2")
	require.True(t, ok)
	assert.Equal(t, models.StatusError, rec.Status)
	assert.Equal(t, "model unavailable", rec.Error)
	assert.Equal(t, models.KindSummary, rec.Kind)
}

func TestSetKeepsCreatedAt(t *testing.T) {
	l := New()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return first }
	l.Processing("req-3", models.KindSummary)

	later := first.Add(time.Minute)
	l.now = func() time.Time { return later }
	l.Fail("req-3", "", "boom")

	rec, _ := l.Get("req-3")
	assert.Equal(t, first, rec.CreatedAt)
	assert.Equal(t, later, rec.UpdatedAt)
	assert.Equal(t, models.KindSummary, rec.Kind, "kind carried over from the first write")
}

func TestGetUnknown(t *testing.T) {
	_, ok := New().Get("missing")
	assert.False(t, ok)
}

func TestConcurrentWrites(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("req-%d", i)
			l.Processing(id, models.KindTranslation)
			_ = l.Complete(id, models.KindTranslation, map[string]int{"n": i})
			_, _ = l.Get(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, l.Len())
}
