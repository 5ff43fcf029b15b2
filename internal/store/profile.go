package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lucasloyola2015/newIllinoisEyes/internal/bgmodel"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/detect"
)

// ProfileRepository provides CRUD operations for detection profiles.
type ProfileRepository struct {
	db *sql.DB
}

// Profiles returns the profile repository for this store.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

// seedProfiles inserts the stock profiles if they are not present, so a
// fresh store always reproduces the documented defaults exactly.
func (s *Store) seedProfiles() error {
	repo := s.Profiles()
	for _, p := range detect.DefaultProfiles() {
		_, err := repo.GetByName(p.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := repo.Create(p); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts a new profile.
func (r *ProfileRepository) Create(p detect.Profile) error {
	_, err := r.db.Exec(
		`INSERT INTO profiles (id, name, algorithm, min_area, max_area, solidity_threshold,
			aspect_ratio_min, aspect_ratio_max, polygon_margin, training_time_ms, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), p.Name, string(p.Algorithm),
		p.Thresholds.MinArea, p.Thresholds.MaxArea, p.Thresholds.Solidity,
		p.Thresholds.AspectMin, p.Thresholds.AspectMax, p.Thresholds.PolygonMargin,
		p.TrainingTimeMs, time.Now(), time.Now(),
	)
	return err
}

// GetByName retrieves a profile by its name.
func (r *ProfileRepository) GetByName(name string) (detect.Profile, error) {
	var p detect.Profile
	var algorithm string

	err := r.db.QueryRow(
		`SELECT name, algorithm, min_area, max_area, solidity_threshold,
			aspect_ratio_min, aspect_ratio_max, polygon_margin, training_time_ms
		 FROM profiles WHERE name = ?`,
		name,
	).Scan(&p.Name, &algorithm, &p.Thresholds.MinArea, &p.Thresholds.MaxArea,
		&p.Thresholds.Solidity, &p.Thresholds.AspectMin, &p.Thresholds.AspectMax,
		&p.Thresholds.PolygonMargin, &p.TrainingTimeMs)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return detect.Profile{}, ErrNotFound
		}
		return detect.Profile{}, err
	}

	p.Algorithm = bgmodel.Algorithm(algorithm)
	return p, nil
}

// List returns all profiles ordered by name.
func (r *ProfileRepository) List() ([]detect.Profile, error) {
	rows, err := r.db.Query(
		`SELECT name, algorithm, min_area, max_area, solidity_threshold,
			aspect_ratio_min, aspect_ratio_max, polygon_margin, training_time_ms
		 FROM profiles ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []detect.Profile
	for rows.Next() {
		var p detect.Profile
		var algorithm string
		if err := rows.Scan(&p.Name, &algorithm, &p.Thresholds.MinArea, &p.Thresholds.MaxArea,
			&p.Thresholds.Solidity, &p.Thresholds.AspectMin, &p.Thresholds.AspectMax,
			&p.Thresholds.PolygonMargin, &p.TrainingTimeMs); err != nil {
			return nil, err
		}
		p.Algorithm = bgmodel.Algorithm(algorithm)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Save updates an existing profile by name, creating it if missing.
func (r *ProfileRepository) Save(p detect.Profile) error {
	res, err := r.db.Exec(
		`UPDATE profiles SET algorithm = ?, min_area = ?, max_area = ?, solidity_threshold = ?,
			aspect_ratio_min = ?, aspect_ratio_max = ?, polygon_margin = ?, training_time_ms = ?,
			updated_at = ?
		 WHERE name = ?`,
		string(p.Algorithm), p.Thresholds.MinArea, p.Thresholds.MaxArea, p.Thresholds.Solidity,
		p.Thresholds.AspectMin, p.Thresholds.AspectMax, p.Thresholds.PolygonMargin,
		p.TrainingTimeMs, time.Now(), p.Name,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return r.Create(p)
	}
	return nil
}

// Delete removes a profile by name.
func (r *ProfileRepository) Delete(name string) error {
	res, err := r.db.Exec(`DELETE FROM profiles WHERE name = ?`, name)
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
