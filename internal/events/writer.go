package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"leadline/internal/domain"
)

// Writer appends to the SQL event log inside the caller's transaction,
// so an entity mutation and its log entry commit or roll back together.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, leadID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(domain.TimeLayout)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,lead_id,actor_id,payload_json) VALUES (?,?,?,?,?)`,
		ts, evtType, nullable(leadID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
