package triviareview

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ReviewDB is a SQLite archive of reviewed question sets.
type ReviewDB struct {
	db *sql.DB
}

// Batch is one imported question set.
type Batch struct {
	ID         string
	Source     string
	ImportedAt time.Time
	Count      int
}

// StoredQuestion is a question row with its ids.
type StoredQuestion struct {
	ID       string
	BatchID  string
	Position int
	Record   *Question
}

// OpenDB opens (or creates) the database at path.
func OpenDB(path string) (*ReviewDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &ReviewDB{db: db}, nil
}

// Close closes the database.
func (r *ReviewDB) Close() error {
	return r.db.Close()
}

// CreateTables creates the schema if it does not exist.
func (r *ReviewDB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			imported_at DATETIME NOT NULL,
			count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			batch_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			category TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			assigned_code INTEGER,
			skipped INTEGER NOT NULL DEFAULT 0,
			concept_tag TEXT NOT NULL,
			record TEXT NOT NULL,
			FOREIGN KEY (batch_id) REFERENCES batches(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_code ON questions(assigned_code)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_tag ON questions(concept_tag)`,
	}
	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// ImportQuestions stores questions as one new batch in a single transaction
// and returns the batch id. Each record is kept whole, unknown keys
// included, so it can be read back exactly.
func (r *ReviewDB) ImportQuestions(ctx context.Context, source string, questions []*Question, now time.Time) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	batchID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO batches (id, source, imported_at, count) VALUES (?, ?, ?, ?)",
		batchID, source, now.UTC(), len(questions),
	); err != nil {
		return "", fmt.Errorf("failed to create batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO questions
		(id, batch_id, position, question, answer, category, difficulty, assigned_code, skipped, concept_tag, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, q := range questions {
		record, err := marshalNoEscape(q)
		if err != nil {
			return "", fmt.Errorf("failed to encode question %d: %w", i+1, err)
		}
		var code sql.NullInt64
		if c, ok := q.Code(); ok {
			code = sql.NullInt64{Int64: int64(c), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), batchID, i, q.Question, q.Answer, q.Category.String(), q.Difficulty,
			code, q.Skipped, QuestionTag(q), string(record),
		); err != nil {
			return "", fmt.Errorf("failed to store question %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit import: %w", err)
	}
	return batchID, nil
}

// Batches lists imported batches, newest first. limit <= 0 means all.
func (r *ReviewDB) Batches(ctx context.Context, limit int) ([]Batch, error) {
	query := "SELECT id, source, imported_at, count FROM batches ORDER BY imported_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.Source, &b.ImportedAt, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}
	return batches, nil
}

// QuestionsByCode returns every stored question with the given code, in
// import order.
func (r *ReviewDB) QuestionsByCode(ctx context.Context, code int) ([]StoredQuestion, error) {
	if !ValidCode(code) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCode, code)
	}
	return r.queryQuestions(ctx, `SELECT q.id, q.batch_id, q.position, q.record FROM questions q
		JOIN batches b ON b.id = q.batch_id
		WHERE q.assigned_code = ? ORDER BY b.imported_at, q.position`, code)
}

// QuestionsByBatch returns the questions of one batch in file order.
func (r *ReviewDB) QuestionsByBatch(ctx context.Context, batchID string) ([]StoredQuestion, error) {
	return r.queryQuestions(ctx,
		"SELECT id, batch_id, position, record FROM questions WHERE batch_id = ? ORDER BY position", batchID)
}

func (r *ReviewDB) queryQuestions(ctx context.Context, query string, args ...any) ([]StoredQuestion, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	var out []StoredQuestion
	for rows.Next() {
		var (
			sq     StoredQuestion
			record string
		)
		if err := rows.Scan(&sq.ID, &sq.BatchID, &sq.Position, &record); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		sq.Record = new(Question)
		if err := sq.Record.UnmarshalJSON([]byte(record)); err != nil {
			return nil, fmt.Errorf("question %s: %w", sq.ID, err)
		}
		out = append(out, sq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}
	return out, nil
}

// CountByCode counts stored questions per assigned code.
func (r *ReviewDB) CountByCode(ctx context.Context) (map[int]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT assigned_code, COUNT(*) FROM questions WHERE assigned_code IS NOT NULL GROUP BY assigned_code")
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}
	defer rows.Close()

	counts := map[int]int{}
	for rows.Next() {
		var code, n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[code] = n
	}
	return counts, rows.Err()
}

// HasConcept reports whether any stored question carries tag. The generator
// uses it to avoid concepts already in the archive.
func (r *ReviewDB) HasConcept(ctx context.Context, tag string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM questions WHERE concept_tag = ?)", tag).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to check concept: %w", err)
	}
	return exists, nil
}

// ConceptTags returns every distinct concept tag in the archive.
func (r *ReviewDB) ConceptTags(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT concept_tag FROM questions")
	if err != nil {
		return nil, fmt.Errorf("failed to get concept tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan concept tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
