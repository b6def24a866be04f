package repo

import (
	"context"
	"database/sql"
	"strings"

	"leadline/internal/domain"
)

// LatestEvents returns the newest events first, optionally filtered by
// type and lead id.
func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, leadID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	where := []string{"1=1"}
	args := []any{}
	if evtType != "" {
		where = append(where, "type=?")
		args = append(args, evtType)
	}
	if leadID != "" {
		where = append(where, "lead_id=?")
		args = append(args, leadID)
	}
	args = append(args, limit)
	q := `SELECT id,ts,type,COALESCE(lead_id,'') AS lead_id,actor_id,payload_json FROM events WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY id DESC LIMIT ?`
	return r.queryEvents(ctx, q, args...)
}

// EventsAfter returns up to limit events with id > cursor, oldest first.
// Used by the outbound webhook dispatcher.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id,ts,type,COALESCE(lead_id,'') AS lead_id,actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`
	return r.queryEvents(ctx, q, cursor, limit)
}

// LatestEventID returns the id of the newest event, or 0 when the log is
// empty.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}

func (r Repo) queryEvents(ctx context.Context, q string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.LeadID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
