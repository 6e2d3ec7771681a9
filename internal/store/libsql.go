package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/flowgame/pkg/schema"
)

var _ Store = (*LibSQLStore)(nil)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/flowgame.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	if !strings.HasPrefix(dbPath, "file:") && !strings.Contains(dbPath, "://") {
		dbPath = "file:" + dbPath
	}
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Learners ---

// RegisterLearner inserts a learner or updates the name and metadata of an
// existing id.
func (s *LibSQLStore) RegisterLearner(ctx context.Context, l *Learner) error {
	metadata, err := nullableJSON(l.Metadata)
	if err != nil {
		return fmt.Errorf("marshal learner metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO learners (id, name, metadata, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, metadata=excluded.metadata`,
		l.ID, l.Name, metadata, timeOrNow(l.CreatedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "register learner %q: %v", l.Name, err).WithCause(err)
	}
	return nil
}

const learnerColumns = `id, name, metadata, created_at, last_seen_at`

func scanLearner(row interface{ Scan(...any) error }) (*Learner, error) {
	l := &Learner{}
	var metadata sql.NullString
	var lastSeen sql.NullTime
	if err := row.Scan(&l.ID, &l.Name, &metadata, &l.CreatedAt, &lastSeen); err != nil {
		return nil, err
	}
	l.Metadata = jsonOrNil(metadata)
	if lastSeen.Valid {
		l.LastSeenAt = &lastSeen.Time
	}
	return l, nil
}

// GetLearner returns the learner with the given id.
func (s *LibSQLStore) GetLearner(ctx context.Context, id string) (*Learner, error) {
	l, err := scanLearner(s.db.QueryRowContext(ctx,
		`SELECT `+learnerColumns+` FROM learners WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("learner", id)
	}
	return l, err
}

// GetLearnerByName returns the learner with the given name.
func (s *LibSQLStore) GetLearnerByName(ctx context.Context, name string) (*Learner, error) {
	l, err := scanLearner(s.db.QueryRowContext(ctx,
		`SELECT `+learnerColumns+` FROM learners WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("learner", name)
	}
	return l, err
}

// UpdateLearnerSeen stamps the learner's last_seen_at.
func (s *LibSQLStore) UpdateLearnerSeen(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE learners SET last_seen_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "learner", id)
}

// ListLearners returns all learners ordered by name.
func (s *LibSQLStore) ListLearners(ctx context.Context) ([]*Learner, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+learnerColumns+` FROM learners ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var learners []*Learner
	for rows.Next() {
		l, err := scanLearner(rows)
		if err != nil {
			return nil, err
		}
		learners = append(learners, l)
	}
	return learners, rows.Err()
}

// --- Progress ---

// SaveProgress upserts the learner's snapshot for a stage pack.
func (s *LibSQLStore) SaveProgress(ctx context.Context, learnerID, pack string, snap schema.ProgressSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO progress (learner_id, pack, snapshot, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(learner_id, pack) DO UPDATE SET snapshot=excluded.snapshot, updated_at=excluded.updated_at`,
		learnerID, pack, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save progress for %s: %v", learnerID, err).WithCause(err)
	}
	return nil
}

// LoadProgress returns the learner's snapshot for a stage pack.
func (s *LibSQLStore) LoadProgress(ctx context.Context, learnerID, pack string) (*ProgressRecord, error) {
	rec := &ProgressRecord{LearnerID: learnerID, Pack: pack}
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot, updated_at FROM progress WHERE learner_id = ? AND pack = ?`, learnerID, pack,
	).Scan(&raw, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("progress", learnerID+"/"+pack)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &rec.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return rec, nil
}

// --- Attempts ---

// ListAttempts returns attempt log rows ordered by learner and sequence.
func (s *LibSQLStore) ListAttempts(ctx context.Context, filter AttemptFilter) ([]*Attempt, error) {
	query := `SELECT id, learner_id, sequence, session_id, type, stage_id, stage_index, attempt, passed, reasons, badge, created_at
		FROM attempts WHERE 1=1`
	var args []any

	if filter.LearnerID != "" {
		query += " AND learner_id = ?"
		args = append(args, filter.LearnerID)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.StageID != "" {
		query += " AND stage_id = ?"
		args = append(args, filter.StageID)
	}
	if filter.Since > 0 {
		query += " AND sequence > ?"
		args = append(args, filter.Since)
	}
	query += " ORDER BY learner_id, sequence ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Attempt
	for rows.Next() {
		a := &Attempt{}
		var stageID, reasons, badge sql.NullString
		var passed int
		if err := rows.Scan(&a.ID, &a.LearnerID, &a.Sequence, &a.Event.SessionID, &a.Event.Type,
			&stageID, &a.Event.StageIndex, &a.Event.Attempt, &passed, &reasons, &badge, &a.Event.At); err != nil {
			return nil, err
		}
		a.Event.Passed = passed != 0
		a.Event.StageID = stageID.String
		a.Event.Badge = badge.String
		if reasons.Valid && reasons.String != "" {
			if err := json.Unmarshal([]byte(reasons.String), &a.Event.Reasons); err != nil {
				return nil, fmt.Errorf("unmarshal reasons: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.GameError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func nullableJSON(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("invalid JSON")
	}
	return string(raw), nil
}
