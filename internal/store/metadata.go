package store

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/pavelanni/eqarena/internal/model"
)

// SetMetadata upserts a key-value pair in the survey_metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO survey_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM survey_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSurveyInfo stores the running survey configuration.
func (s *Store) SetSurveyInfo(ctx context.Context, info model.SurveyInfo) error {
	pairs := []struct{ k, v string }{
		{"data_url", info.DataURL},
		{"manifest_hash", info.ManifestHash},
		{"pool_size", strconv.Itoa(info.PoolSize)},
		{"num_questions", strconv.Itoa(info.NumQuestions)},
	}
	for _, p := range pairs {
		if err := s.SetMetadata(ctx, p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetSurveyInfo reads the last stored survey configuration.
func (s *Store) GetSurveyInfo(ctx context.Context) (model.SurveyInfo, error) {
	var info model.SurveyInfo
	var err error

	if info.DataURL, err = s.GetMetadata(ctx, "data_url"); err != nil {
		return info, err
	}
	if info.ManifestHash, err = s.GetMetadata(ctx, "manifest_hash"); err != nil {
		return info, err
	}
	for _, f := range []struct {
		key string
		dst *int
	}{
		{"pool_size", &info.PoolSize},
		{"num_questions", &info.NumQuestions},
	} {
		v, err := s.GetMetadata(ctx, f.key)
		if err != nil {
			return info, err
		}
		if v == "" {
			continue
		}
		if *f.dst, err = strconv.Atoi(v); err != nil {
			return info, err
		}
	}
	return info, nil
}
