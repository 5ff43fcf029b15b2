package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lucasloyola2015/newIllinoisEyes/internal/autotune"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/filter"
)

// TuningRepository persists autotune session reports so an operator can
// review past runs and re-apply a winning configuration.
type TuningRepository struct {
	db *sql.DB
}

// Tuning returns the tuning repository for this store.
func (s *Store) Tuning() *TuningRepository {
	return &TuningRepository{db: s.db}
}

// SaveSession writes a completed session and its full trial history.
func (r *TuningRepository) SaveSession(session *autotune.Session) error {
	targets, err := json.Marshal(session.Targets)
	if err != nil {
		return fmt.Errorf("failed to marshal targets: %w", err)
	}
	bestParams, err := json.Marshal(session.Best.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal best params: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO tuning_sessions (id, filter_type, targets, best_params, best_score,
			trial_count, converged, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, string(session.FilterType), string(targets), string(bestParams),
		session.Best.Score, len(session.Trials), session.Converged,
		session.Elapsed.Milliseconds(), time.Now(),
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO tuning_trials (session_id, trial_index, params, score) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, trial := range session.Trials {
		params, err := json.Marshal(trial.Params)
		if err != nil {
			return fmt.Errorf("failed to marshal trial params: %w", err)
		}
		if _, err := stmt.Exec(session.ID, trial.Index, string(params), trial.Score); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SessionRecord is a stored session with its trial history.
type SessionRecord struct {
	ID         string
	FilterType filter.Type
	Targets    map[string]float64
	BestParams map[string]float64
	BestScore  float64
	Converged  bool
	Elapsed    time.Duration
	Trials     []autotune.Trial
	CreatedAt  time.Time
}

// GetSession retrieves a stored session by ID, trials included.
func (r *TuningRepository) GetSession(id string) (*SessionRecord, error) {
	var rec SessionRecord
	var filterType, targets, bestParams string
	var elapsedMs int64

	err := r.db.QueryRow(
		`SELECT id, filter_type, targets, best_params, best_score, converged, elapsed_ms, created_at
		 FROM tuning_sessions WHERE id = ?`,
		id,
	).Scan(&rec.ID, &filterType, &targets, &bestParams, &rec.BestScore,
		&rec.Converged, &elapsedMs, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rec.FilterType = filter.Type(filterType)
	rec.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	if err := json.Unmarshal([]byte(targets), &rec.Targets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal targets: %w", err)
	}
	if err := json.Unmarshal([]byte(bestParams), &rec.BestParams); err != nil {
		return nil, fmt.Errorf("failed to unmarshal best params: %w", err)
	}

	rows, err := r.db.Query(
		`SELECT trial_index, params, score FROM tuning_trials
		 WHERE session_id = ? ORDER BY trial_index`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var trial autotune.Trial
		var params string
		if err := rows.Scan(&trial.Index, &params, &trial.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(params), &trial.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trial params: %w", err)
		}
		rec.Trials = append(rec.Trials, trial)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &rec, nil
}

// ListSessions returns summaries of all sessions, most recent first.
// Trial histories are not loaded; use GetSession for the full record.
func (r *TuningRepository) ListSessions() ([]SessionRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, filter_type, best_score, converged, elapsed_ms, created_at
		 FROM tuning_sessions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var filterType string
		var elapsedMs int64
		if err := rows.Scan(&rec.ID, &filterType, &rec.BestScore, &rec.Converged,
			&elapsedMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.FilterType = filter.Type(filterType)
		rec.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteSession removes a session and its trials.
func (r *TuningRepository) DeleteSession(id string) error {
	res, err := r.db.Exec(`DELETE FROM tuning_sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
