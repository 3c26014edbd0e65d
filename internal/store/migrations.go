package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Runs table - one row per processing session over a video source
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			frames INTEGER NOT NULL DEFAULT 0,
			entries INTEGER NOT NULL DEFAULT 0,
			exits INTEGER NOT NULL DEFAULT 0
		)`,

		// Crossing events table - one row per counted line crossing
		`CREATE TABLE IF NOT EXISTS crossing_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			frame_index INTEGER NOT NULL,
			track_id INTEGER NOT NULL,
			direction TEXT NOT NULL CHECK(direction IN ('entry', 'exit')),
			occurred_at DATETIME NOT NULL
		)`,

		// Occupancy samples table - periodic totals snapshots for reporting
		`CREATE TABLE IF NOT EXISTS occupancy_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			frame_index INTEGER NOT NULL,
			entries INTEGER NOT NULL,
			exits INTEGER NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_crossing_events_run_id ON crossing_events(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_occupancy_samples_run_id ON occupancy_samples(run_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
