package sessiondb

type SessionRow struct {
	ID                  int64  `db:"id" json:"id"`
	Device              string `db:"device" json:"device"`
	Driver              string `db:"driver" json:"driver"`
	StartedAt           int64  `db:"started_at" json:"started_at"`
	EndedAt             int64  `db:"ended_at" json:"ended_at,omitempty"`
	ExitReason          string `db:"exit_reason" json:"exit_reason,omitempty"`
	ExitError           string `db:"exit_error" json:"exit_error,omitempty"`
	ConsecutiveTimeouts int    `db:"consecutive_timeouts" json:"consecutive_timeouts"`
	ValuesPublished     int    `db:"values_published" json:"values_published"`
}
