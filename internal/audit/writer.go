package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends entries to the append-only audit_log table. Entries are
// written on every automatic attempt and every executed transition,
// successful or not.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Details map[string]any

// Append writes an entry inside the caller's transaction so the audit record
// commits or rolls back with the state change it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, actionType, projectID, triggeredBy string, details Details) error {
	ts, data, err := w.prepare(details)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO audit_log(ts,action_type,project_id,details_json,triggered_by) VALUES (?,?,?,?,?)`,
		ts, actionType, nullable(projectID), data, triggeredBy)
	return err
}

// Record writes an entry in its own transaction. Used for attempt records
// that must survive even when the attempted state change does not happen.
func (w Writer) Record(ctx context.Context, actionType, projectID, triggeredBy string, details Details) error {
	ts, data, err := w.prepare(details)
	if err != nil {
		return err
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO audit_log(ts,action_type,project_id,details_json,triggered_by) VALUES (?,?,?,?,?)`,
		ts, actionType, nullable(projectID), data, triggeredBy)
	return err
}

func (w Writer) prepare(details Details) (string, string, error) {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if details == nil {
		details = Details{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		return "", "", fmt.Errorf("marshal audit details: %w", err)
	}
	return ts, string(data), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
