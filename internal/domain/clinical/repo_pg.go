package clinical

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/interchange/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository { return &messageRepoPG{pool: pool} }

func (r *messageRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *messageRepoPG) Create(ctx context.Context, m *StoredMessage) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		err := q.QueryRow(ctx, `
			INSERT INTO clinical_messages (id, source, message_type, control_id, sender, receiver, patient_name, message_time, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
			RETURNING received_at`,
			m.ID, m.Source, m.MessageType, m.ControlID, m.Sender, m.Receiver, m.PatientName,
			nullTime(m.MessageTime), nullTime(m.ReceivedAt),
		).Scan(&m.ReceivedAt)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		for i, o := range m.Observations {
			if _, err := q.Exec(ctx, `
				INSERT INTO observations (id, message_id, position, test_name, result, units, reference_range)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				uuid.New(), m.ID, i, o.TestName, o.Result, o.Units, o.ReferenceRange); err != nil {
				return fmt.Errorf("insert observation %d: %w", i, err)
			}
		}
		return nil
	})
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

const obsCols = `id, message_id, position, test_name, result, units, reference_range, created_at`

func (r *messageRepoPG) ListObservations(ctx context.Context, limit, offset int) ([]*StoredObservation, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM observations`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+obsCols+` FROM observations
		ORDER BY created_at DESC, message_id, position LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*StoredObservation
	for rows.Next() {
		var o StoredObservation
		if err := rows.Scan(&o.ID, &o.MessageID, &o.Position, &o.TestName, &o.Result,
			&o.Units, &o.ReferenceRange, &o.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &o)
	}
	return items, total, rows.Err()
}
