package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Profiles table - named detection presets
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			algorithm TEXT NOT NULL CHECK(algorithm IN ('MOG2', 'KNN', 'MOG')),
			min_area REAL NOT NULL,
			max_area REAL NOT NULL,
			solidity_threshold REAL NOT NULL,
			aspect_ratio_min REAL NOT NULL,
			aspect_ratio_max REAL NOT NULL,
			polygon_margin INTEGER NOT NULL DEFAULT 0,
			training_time_ms INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Tuning sessions table - one row per optimizer run
		`CREATE TABLE IF NOT EXISTS tuning_sessions (
			id TEXT PRIMARY KEY,
			filter_type TEXT NOT NULL,
			targets TEXT NOT NULL,
			best_params TEXT NOT NULL,
			best_score REAL NOT NULL,
			trial_count INTEGER NOT NULL,
			converged INTEGER NOT NULL DEFAULT 0,
			elapsed_ms INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Tuning trials table - the full search order of a session
		`CREATE TABLE IF NOT EXISTS tuning_trials (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES tuning_sessions(id) ON DELETE CASCADE,
			trial_index INTEGER NOT NULL,
			params TEXT NOT NULL,
			score REAL NOT NULL
		)`,

		// Settings table - application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_tuning_trials_session_id ON tuning_trials(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
