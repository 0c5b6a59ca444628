package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PewPewSlowMo/SmartCallCenter/pkg/utils"
)

// PostgresStore persists call records via database/sql (pgx stdlib driver).
//
// Schema (managed by migrations outside this module):
//
//	CREATE TABLE calls (
//	    id             UUID PRIMARY KEY,
//	    caller_number  TEXT NOT NULL,
//	    called_number  TEXT NOT NULL DEFAULT '',
//	    operator_id    TEXT NOT NULL DEFAULT '',
//	    queue_name     TEXT NOT NULL DEFAULT '',
//	    channel_id     TEXT NOT NULL DEFAULT '',
//	    start_time     TIMESTAMPTZ NOT NULL,
//	    answer_time    TIMESTAMPTZ,
//	    end_time       TIMESTAMPTZ,
//	    wait_time      INT NOT NULL DEFAULT 0,
//	    talk_time      INT NOT NULL DEFAULT 0,
//	    status         TEXT NOT NULL,
//	    queue_position INT NOT NULL DEFAULT 0,
//	    abandon_reason TEXT NOT NULL DEFAULT '',
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX calls_channel_id_idx ON calls (channel_id, created_at DESC);
type PostgresStore struct {
	db *sql.DB

	Now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, Now: time.Now}
}

const callColumns = `id, caller_number, called_number, operator_id, queue_name, channel_id,
	start_time, answer_time, end_time, wait_time, talk_time, status,
	queue_position, abandon_reason, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, call Call) (Call, error) {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	now := s.Now()
	call.CreatedAt = now
	call.UpdatedAt = now

	const q = `INSERT INTO calls (` + callColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err := s.db.ExecContext(ctx, q,
		call.ID, call.CallerNumber, call.CalledNumber, call.OperatorID, call.QueueName, call.ChannelID,
		call.StartTime, call.AnswerTime, call.EndTime, call.WaitTime, call.TalkTime, string(call.Status),
		call.QueuePosition, call.AbandonReason, call.CreatedAt, call.UpdatedAt,
	)
	if err != nil {
		return Call{}, fmt.Errorf("insert call: %w", err)
	}
	return call, nil
}

// Update reads, merges and writes inside one transaction so the status
// order check and the write are atomic.
func (s *PostgresStore) Update(ctx context.Context, id string, upd CallUpdate) (Call, error) {
	var updated Call
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1 FOR UPDATE`, id)
		call, err := scanCall(row)
		if err != nil {
			return err
		}

		updated, err = apply(call, upd)
		if err != nil {
			return err
		}
		updated.UpdatedAt = s.Now()

		const q = `UPDATE calls SET
			operator_id=$2, answer_time=$3, end_time=$4, wait_time=$5, talk_time=$6,
			status=$7, queue_position=$8, abandon_reason=$9, updated_at=$10
			WHERE id=$1`
		if _, err := tx.ExecContext(ctx, q,
			updated.ID, updated.OperatorID, updated.AnswerTime, updated.EndTime, updated.WaitTime, updated.TalkTime,
			string(updated.Status), updated.QueuePosition, updated.AbandonReason, updated.UpdatedAt,
		); err != nil {
			return fmt.Errorf("update call: %w", err)
		}
		return nil
	})
	if err != nil {
		return Call{}, err
	}
	return updated, nil
}

func (s *PostgresStore) GetByChannelID(ctx context.Context, channelID string) (Call, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+callColumns+` FROM calls WHERE channel_id = $1 ORDER BY created_at DESC LIMIT 1`,
		channelID,
	)
	return scanCall(row)
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+callColumns+` FROM calls ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, call)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	var status string
	var answer, end sql.NullTime
	err := row.Scan(
		&c.ID, &c.CallerNumber, &c.CalledNumber, &c.OperatorID, &c.QueueName, &c.ChannelID,
		&c.StartTime, &answer, &end, &c.WaitTime, &c.TalkTime, &status,
		&c.QueuePosition, &c.AbandonReason, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	if err != nil {
		return Call{}, fmt.Errorf("scan call: %w", err)
	}
	c.Status = CallStatus(status)
	if answer.Valid {
		t := answer.Time
		c.AnswerTime = &t
	}
	if end.Valid {
		t := end.Time
		c.EndTime = &t
	}
	return c, nil
}
