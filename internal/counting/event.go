package counting

import "time"

// Direction classifies a crossing as an entry or an exit.
type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

// Event is an immutable record of a single confirmed line crossing.
// Events are emitted in strict frame order.
type Event struct {
	TrackID    int       `json:"track_id"`
	Direction  Direction `json:"direction"`
	FrameIndex int       `json:"frame_index"`
	Timestamp  time.Time `json:"timestamp"`
}

// Totals is a read-only snapshot of the running counts. Net is always
// recomputed as Entries-Exits and may be negative when tracking errors
// produce more exits than entries; it is deliberately not clamped so that
// such errors stay visible.
type Totals struct {
	Entries int64 `json:"entries"`
	Exits   int64 `json:"exits"`
	Net     int64 `json:"net"`
}
