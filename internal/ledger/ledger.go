// Package ledger keeps an append-only history of streaming sessions.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestream/internal/stream"
)

// Entry represents a single state transition in the ledger
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	GroupID   string    `json:"group"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Frames    uint64    `json:"frames"`
	Error     string    `json:"error,omitempty"`
}

// Ledger provides append-only transition logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append records one state transition
func (l *Ledger) Append(change stream.StateChange) error {
	var errText sql.NullString
	if change.Err != nil {
		errText = sql.NullString{String: change.Err.Error(), Valid: true}
	}

	_, err := l.db.Exec(`
		INSERT INTO stream_ledger (timestamp, session_id, group_id, from_state, to_state, frames, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, time.Now().UTC().UnixMilli(), change.SessionID, change.GroupID,
		change.From.String(), change.To.String(), int64(change.Frames), errText)

	return err
}

// Observer returns a controller state-change hook writing to the ledger.
// Write failures are logged, never propagated into the streaming path.
func (l *Ledger) Observer() func(stream.StateChange) {
	return func(change stream.StateChange) {
		if err := l.Append(change); err != nil {
			log.Warn().Err(err).Str("session", change.SessionID).Msg("Failed to record stream transition")
		}
	}
}

// Recent returns the newest entries first
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, timestamp, session_id, group_id, from_state, to_state, frames, error
		FROM stream_ledger
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// BySession returns the transitions of one session in order
func (l *Ledger) BySession(sessionID string) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, timestamp, session_id, group_id, from_state, to_state, frames, error
		FROM stream_ledger
		WHERE session_id = ?
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().UnixMilli()
	result, err := l.db.Exec(`DELETE FROM stream_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RunRetention purges entries older than retention right away and then every interval,
// until ctx is done.
func (l *Ledger) RunRetention(ctx context.Context, retention, interval time.Duration) {
	l.purge(retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.purge(retention)
		}
	}
}

func (l *Ledger) purge(retention time.Duration) {
	deleted, err := l.DeleteOlderThan(retention)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
	}
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var ts, frames int64
		var errText sql.NullString

		err := rows.Scan(&entry.ID, &ts, &entry.SessionID, &entry.GroupID,
			&entry.From, &entry.To, &frames, &errText)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.UnixMilli(ts).UTC()
		entry.Frames = uint64(frames)
		if errText.Valid {
			entry.Error = errText.String
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
