package contact

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichron/medichron/internal/platform/apperr"
	"github.com/medichron/medichron/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const messageCols = `id, name, email, subject, body, resolved, resolved_at, created_at`

func (r *repoPG) Create(ctx context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO contact_messages (id, name, email, subject, body)
		VALUES ($1,$2,$3,$4,$5)`,
		msg.ID, msg.Name, msg.Email, msg.Subject, msg.Body,
	)
	if err != nil {
		return fmt.Errorf("contact create: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	msg, err := scanMessage(r.conn(ctx).QueryRow(ctx,
		`SELECT `+messageCols+` FROM contact_messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("contact get: %w", err)
	}
	return msg, nil
}

func (r *repoPG) List(ctx context.Context, pendingOnly bool, limit, offset int) ([]*Message, int, error) {
	cond := "TRUE"
	if pendingOnly {
		cond = "NOT resolved"
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM contact_messages WHERE `+cond).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("contact list count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+messageCols+` FROM contact_messages WHERE `+cond+`
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("contact list: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("contact list: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, total, rows.Err()
}

func (r *repoPG) MarkResolved(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE contact_messages SET resolved = TRUE, resolved_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("contact resolve: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Body, &m.Resolved, &m.ResolvedAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
