package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/eqarena/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		received_at DATETIME NOT NULL,
		timestamp TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		native_speaker TEXT NOT NULL DEFAULT '',
		feedback TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS answers (
		response_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		q_id TEXT NOT NULL,
		q1 INTEGER NOT NULL,
		q2 INTEGER NOT NULL,
		PRIMARY KEY (response_id, position),
		FOREIGN KEY (response_id) REFERENCES responses(id)
	);

	CREATE TABLE IF NOT EXISTS survey_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertResponse archives one participant payload with its answers.
func (s *Store) InsertResponse(ctx context.Context, p model.Payload) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO responses (received_at, timestamp, email, native_speaker, feedback)
		 VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC(), p.Timestamp, p.Email, p.NativeSpeaker, p.Feedback,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, q := range p.Questions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO answers (response_id, position, q_id, q1, q2) VALUES (?, ?, ?, ?, ?)`,
			id, i, q.QuestionID, q.Q1, q.Q2,
		)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	slog.Info("archived response", "id", id, "questions", len(p.Questions))
	return id, nil
}

// getResponse returns a response by id.
func (s *Store) getResponse(ctx context.Context, id int64) (model.Response, error) {
	var r model.Response
	err := s.db.QueryRowContext(ctx,
		`SELECT id, received_at, timestamp, email, native_speaker, feedback FROM responses WHERE id = ?`, id,
	).Scan(&r.ID, &r.ReceivedAt, &r.Timestamp, &r.Email, &r.NativeSpeaker, &r.Feedback)
	if err != nil {
		return r, err
	}
	r.Questions, err = s.answers(ctx, id)
	return r, err
}

// ListResponses returns all responses in arrival order.
func (s *Store) ListResponses(ctx context.Context) ([]model.Response, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, received_at, timestamp, email, native_speaker, feedback FROM responses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var responses []model.Response
	for rows.Next() {
		var r model.Response
		if err := rows.Scan(&r.ID, &r.ReceivedAt, &r.Timestamp, &r.Email, &r.NativeSpeaker, &r.Feedback); err != nil {
			rows.Close()
			return nil, err
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range responses {
		qs, err := s.answers(ctx, responses[i].ID)
		if err != nil {
			return nil, err
		}
		responses[i].Questions = qs
	}
	return responses, nil
}

func (s *Store) answers(ctx context.Context, responseID int64) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q_id, q1, q2 FROM answers WHERE response_id = ? ORDER BY position`, responseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		var q model.Submission
		if err := rows.Scan(&q.QuestionID, &q.Q1, &q.Q2); err != nil {
			return nil, err
		}
		subs = append(subs, q)
	}
	return subs, rows.Err()
}

// ResponseCount returns the number of archived responses.
func (s *Store) ResponseCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM responses`).Scan(&n)
	return n, err
}
