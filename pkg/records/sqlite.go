package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteSink persists call records to a local SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteSink{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS calls (
    call_sid TEXT PRIMARY KEY,
    stream_id TEXT,
    agent_id TEXT,
    from_number TEXT,
    started_at TIMESTAMP NOT NULL,
    ended_at TIMESTAMP NOT NULL,
    end_reason TEXT,
    transcript TEXT
);
CREATE INDEX IF NOT EXISTS idx_calls_started ON calls(started_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *SQLiteSink) SaveCall(ctx context.Context, rec CallRecord) error {
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO calls (call_sid, stream_id, agent_id, from_number, started_at, ended_at, end_reason, transcript)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(call_sid) DO UPDATE SET
    ended_at = excluded.ended_at,
    end_reason = excluded.end_reason,
    transcript = excluded.transcript
`, rec.CallSID, rec.StreamID, rec.AgentID, rec.FromNumber, rec.StartedAt, rec.EndedAt, rec.EndReason, string(transcript))
	if err != nil {
		return fmt.Errorf("insert call record: %w", err)
	}
	return nil
}

// LoadCall reads one record back, mostly for tooling and tests.
func (s *SQLiteSink) LoadCall(ctx context.Context, callSID string) (CallRecord, error) {
	var rec CallRecord
	var transcript string
	err := s.db.QueryRowContext(ctx, `
SELECT call_sid, stream_id, agent_id, from_number, started_at, ended_at, end_reason, transcript
FROM calls WHERE call_sid = ?
`, callSID).Scan(&rec.CallSID, &rec.StreamID, &rec.AgentID, &rec.FromNumber,
		&rec.StartedAt, &rec.EndedAt, &rec.EndReason, &transcript)
	if err != nil {
		return CallRecord{}, err
	}
	if transcript != "" {
		if err := json.Unmarshal([]byte(transcript), &rec.Transcript); err != nil {
			return CallRecord{}, fmt.Errorf("decode transcript: %w", err)
		}
	}
	return rec, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

var _ Sink = (*SQLiteSink)(nil)
