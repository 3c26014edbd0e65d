package store

import "database/sql"

// OccupancySample represents a periodic snapshot of the running totals,
// taken so occupancy over time can be charted after the run.
type OccupancySample struct {
	ID         int64  `json:"id"`
	RunID      string `json:"run_id"`
	FrameIndex int    `json:"frame_index"`
	Entries    int64  `json:"entries"`
	Exits      int64  `json:"exits"`
}

// SampleRepository provides operations for occupancy samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create inserts one occupancy sample.
func (r *SampleRepository) Create(sample *OccupancySample) error {
	result, err := r.db.Exec(
		`INSERT INTO occupancy_samples (run_id, frame_index, entries, exits)
		 VALUES (?, ?, ?, ?)`,
		sample.RunID, sample.FrameIndex, sample.Entries, sample.Exits,
	)
	if err != nil {
		return err
	}

	sample.ID, err = result.LastInsertId()
	return err
}

// ListByRun retrieves the samples of a run in frame order.
func (r *SampleRepository) ListByRun(runID string) ([]OccupancySample, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, frame_index, entries, exits
		 FROM occupancy_samples
		 WHERE run_id = ?
		 ORDER BY frame_index`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []OccupancySample
	for rows.Next() {
		var s OccupancySample
		if err := rows.Scan(&s.ID, &s.RunID, &s.FrameIndex, &s.Entries, &s.Exits); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}
