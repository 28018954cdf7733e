package sessiondb

import (
	"database/sql"
	"time"

	"github.com/NotCoffee418/humidity_monitor/pkg/port_reader"
)

// SessionStarted inserts an open session and returns its id.
func (s *Store) SessionStarted(device, driver string, at time.Time) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO sessions (device, driver, started_at) VALUES (?, ?, ?)",
		device,
		driver,
		at.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// SessionEnded stores the exit status of session id.
func (s *Store) SessionEnded(id int64, at time.Time, status port_reader.ExitStatus) error {
	var exitError sql.NullString
	if status.Err != nil {
		exitError = sql.NullString{String: status.Err.Error(), Valid: true}
	}

	_, err := s.db.Exec(
		"UPDATE sessions SET ended_at = ?, exit_reason = ?, exit_error = ?, consecutive_timeouts = ?, values_published = ? "+
			"WHERE id = ?",
		at.Unix(),
		status.Reason.String(),
		exitError,
		status.Timeouts,
		status.Values,
		id,
	)
	return err
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(limit int) ([]SessionRow, error) {
	rows, err := s.db.Query(
		"SELECT id, device, driver, started_at, ended_at, exit_reason, exit_error, consecutive_timeouts, values_published "+
			"FROM sessions ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionRow
	for rows.Next() {
		var row SessionRow
		var endedAt sql.NullInt64
		var exitReason, exitError sql.NullString
		if err := rows.Scan(
			&row.ID,
			&row.Device,
			&row.Driver,
			&row.StartedAt,
			&endedAt,
			&exitReason,
			&exitError,
			&row.ConsecutiveTimeouts,
			&row.ValuesPublished,
		); err != nil {
			return nil, err
		}
		row.EndedAt = endedAt.Int64
		row.ExitReason = exitReason.String
		row.ExitError = exitError.String
		sessions = append(sessions, row)
	}
	return sessions, rows.Err()
}
