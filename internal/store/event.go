package store

import (
	"database/sql"
	"time"
)

// Crossing directions as persisted in the events table.
const (
	DirectionEntry = "entry"
	DirectionExit  = "exit"
)

// Event represents one counted line crossing stored in the database.
type Event struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	FrameIndex int       `json:"frame_index"`
	TrackID    int       `json:"track_id"`
	Direction  string    `json:"direction"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventRepository provides operations for crossing events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts a single crossing event.
func (r *EventRepository) Create(e *Event) error {
	result, err := r.db.Exec(
		`INSERT INTO crossing_events (run_id, frame_index, track_id, direction, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.RunID, e.FrameIndex, e.TrackID, e.Direction, e.OccurredAt,
	)
	if err != nil {
		return err
	}

	e.ID, err = result.LastInsertId()
	return err
}

// CreateBatch inserts the events of one frame in a single transaction.
func (r *EventRepository) CreateBatch(events []*Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO crossing_events (run_id, frame_index, track_id, direction, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		result, err := stmt.Exec(e.RunID, e.FrameIndex, e.TrackID, e.Direction, e.OccurredAt)
		if err != nil {
			return err
		}
		if e.ID, err = result.LastInsertId(); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListByRun retrieves all events of a run in frame order.
func (r *EventRepository) ListByRun(runID string) ([]*Event, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, frame_index, track_id, direction, occurred_at
		 FROM crossing_events
		 WHERE run_id = ?
		 ORDER BY frame_index, id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		err := rows.Scan(&e.ID, &e.RunID, &e.FrameIndex, &e.TrackID, &e.Direction, &e.OccurredAt)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// CountByDirection returns the number of entries and exits stored for a run.
func (r *EventRepository) CountByDirection(runID string) (entries, exits int64, err error) {
	rows, err := r.db.Query(
		`SELECT direction, COUNT(*) FROM crossing_events WHERE run_id = ? GROUP BY direction`,
		runID,
	)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var direction string
		var count int64
		if err := rows.Scan(&direction, &count); err != nil {
			return 0, 0, err
		}
		switch direction {
		case DirectionEntry:
			entries = count
		case DirectionExit:
			exits = count
		}
	}

	return entries, exits, rows.Err()
}
