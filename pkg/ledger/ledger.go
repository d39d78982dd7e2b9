// Package ledger tracks the lifecycle state of every request for the lifetime
// of the process.
package ledger

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lisan-ai/lisan/pkg/models"
)

// Ledger maps request ids to their current record. Entries are never removed.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]models.RequestRecord
	now     func() time.Time
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{
		records: make(map[string]models.RequestRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Set stores rec under id, keeping the original creation time if one exists.
func (l *Ledger) Set(id string, rec models.RequestRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec.ID = id
	rec.UpdatedAt = now
	if prev, ok := l.records[id]; ok {
		rec.CreatedAt = prev.CreatedAt
		if rec.Kind == "" {
			rec.Kind = prev.Kind
		}
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	l.records[id] = rec
}

// Get returns the record for id.
func (l *Ledger) Get(id string) (models.RequestRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	return rec, ok
}

// Processing marks id as awaiting a background retry.
func (l *Ledger) Processing(id string, kind models.Kind) {
	l.Set(id, models.RequestRecord{Kind: kind, Status: models.StatusProcessing})
}

// Complete marks id as completed with result.
func (l *Ledger) Complete(id string, kind models.Kind, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	l.Set(id, models.RequestRecord{Kind: kind, Status: models.StatusCompleted, Result: raw})
	return nil
}

// Fail marks id as errored with msg.
func (l *Ledger) Fail(id string, kind models.Kind, msg string) {
	l.Set(id, models.RequestRecord{Kind: kind, Status: models.StatusError, Error: msg})
}

// Len returns the number of tracked requests.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
