package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Run represents one processing session over a video source.
type Run struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Frames     int        `json:"frames"`
	Entries    int64      `json:"entries"`
	Exits      int64      `json:"exits"`
}

// RunRepository provides CRUD operations for runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Create inserts a new run into the database, stamping its start time.
func (r *RunRepository) Create(run *Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO runs (id, source, started_at, frames, entries, exits)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.StartedAt, run.Frames, run.Entries, run.Exits,
	)
	return err
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run := &Run{}
	var finished sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, source, started_at, finished_at, frames, entries, exits
		 FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.Source, &run.StartedAt, &finished, &run.Frames, &run.Entries, &run.Exits)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return run, nil
}

// List retrieves all runs, newest first.
func (r *RunRepository) List() ([]*Run, error) {
	rows, err := r.db.Query(
		`SELECT id, source, started_at, finished_at, frames, entries, exits
		 FROM runs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var finished sql.NullTime

		err := rows.Scan(&run.ID, &run.Source, &run.StartedAt, &finished,
			&run.Frames, &run.Entries, &run.Exits)
		if err != nil {
			return nil, err
		}

		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// UpdateProgress refreshes the frame count and totals of a live run.
func (r *RunRepository) UpdateProgress(id string, frames int, entries, exits int64) error {
	result, err := r.db.Exec(
		`UPDATE runs SET frames = ?, entries = ?, exits = ? WHERE id = ?`,
		frames, entries, exits, id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Finish marks a run as completed with its final totals.
func (r *RunRepository) Finish(id string, finishedAt time.Time, frames int, entries, exits int64) error {
	result, err := r.db.Exec(
		`UPDATE runs SET finished_at = ?, frames = ?, entries = ?, exits = ? WHERE id = ?`,
		finishedAt, frames, entries, exits, id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a run and, through cascading, its events and samples.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
