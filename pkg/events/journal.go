package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lisan-ai/lisan/pkg/models"
)

// Journal records audit events in a local SQLite database. It serves as the
// "sqlite" transport and backs the audit CLI commands.
type Journal struct {
	db            *sql.DB
	retentionDays int
	done          chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// OpenJournal opens the journal at path and creates the schema. A positive
// retentionDays starts an hourly cleanup loop.
func OpenJournal(path string, retentionDays int) (*Journal, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	j := &Journal{
		db:            db,
		retentionDays: retentionDays,
		done:          make(chan struct{}),
	}
	if retentionDays > 0 {
		j.wg.Add(1)
		go j.retentionLoop()
	}
	return j, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			event_id   TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			kind       TEXT NOT NULL,
			principal  TEXT,
			status     TEXT NOT NULL,
			cache_hit  INTEGER NOT NULL DEFAULT 0,
			attempt    INTEGER NOT NULL DEFAULT 0,
			input      TEXT,
			result     TEXT,
			error      TEXT,
			latency_ms INTEGER,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_request ON audit_events(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created ON audit_events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_principal ON audit_events(principal)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Name returns "sqlite".
func (j *Journal) Name() string { return "sqlite" }

// Publish inserts event. A committed insert is the acknowledgement.
func (j *Journal) Publish(ctx context.Context, event models.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO audit_events
		(event_id, request_id, kind, principal, status, cache_hit, attempt,
		 input, result, error, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventID, event.RequestID, string(event.Kind), event.Principal,
		string(event.Status), event.CacheHit, event.Attempt,
		nullJSON(event.Input), nullJSON(event.Result), event.Error,
		event.LatencyMs, event.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

// Query returns journal events matching opts, newest first.
func (j *Journal) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEvent, error) {
	q := `SELECT event_id, request_id, kind, principal, status, cache_hit, attempt,
		input, result, error, latency_ms, created_at
		FROM audit_events WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.Kind != "" {
		q += " AND kind = ?"
		args = append(args, string(opts.Kind))
	}
	if opts.Status != "" {
		q += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.Principal != "" {
		q += " AND principal = ?"
		args = append(args, opts.Principal)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UTC())
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var (
			e                 models.AuditEvent
			kind, status      string
			principal, errMsg sql.NullString
			input, result     sql.NullString
			latency           sql.NullInt64
		)
		if err := rows.Scan(
			&e.EventID, &e.RequestID, &kind, &principal, &status,
			&e.CacheHit, &e.Attempt, &input, &result, &errMsg,
			&latency, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		e.Kind = models.Kind(kind)
		e.Status = models.Status(status)
		e.Principal = principal.String
		e.Error = errMsg.String
		e.LatencyMs = latency.Int64
		if input.Valid {
			e.Input = json.RawMessage(input.String)
		}
		if result.Valid {
			e.Result = json.RawMessage(result.String)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Stats returns event counts grouped by kind, status and day.
func (j *Journal) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT kind, status, date(created_at) AS day, count(*) AS cnt
		 FROM audit_events GROUP BY kind, status, day
		 ORDER BY day DESC, kind, status`)
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var kind, status string
		var day sql.NullString
		if err := rows.Scan(&kind, &status, &day, &s.Count); err != nil {
			return nil, fmt.Errorf("scan journal stat: %w", err)
		}
		s.Kind = models.Kind(kind)
		s.Status = models.Status(status)
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes events older than the retention period. A non-positive
// retention keeps everything.
func (j *Journal) Cleanup(ctx context.Context) (int64, error) {
	if j.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -j.retentionDays).UTC()
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention loop and closes the database.
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}

func (j *Journal) retentionLoop() {
	defer j.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			_, _ = j.Cleanup(context.Background())
		}
	}
}
