package audit

import (
	"context"
	"database/sql"
	"time"
)

// Event is one append-only audit record. Approving a retest deletes the
// underlying attempt, so the event payload is the only place its final state
// survives.
type Event struct {
	Seq       int64
	Type      string // e.g. retest.approved
	Key       string // natural key: request id
	DataJSON  string
	CreatedAt int64
}

type Log struct{ db *sql.DB }

func NewLog(db *sql.DB) *Log { return &Log{db: db} }

func (l *Log) Append(ctx context.Context, e Event) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// AppendTx writes inside the caller's transaction, for events that must
// commit or vanish together with the change they describe.
func AppendTx(ctx context.Context, tx *sql.Tx, e Event) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

func (l *Log) List(ctx context.Context, typ string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT seq, typ, key, data, created_at FROM audit_log
		 WHERE $1 = '' OR typ = $1
		 ORDER BY seq DESC LIMIT $2`, typ, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
