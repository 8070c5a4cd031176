package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const recordCols = `id, patient_id, practitioner_id, visit_date,
	symptoms, diagnosis, treatment, notes, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, rec *VisitRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit_records (
			id, patient_id, practitioner_id, visit_date, symptoms, diagnosis, treatment, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.PatientID, rec.PractitionerID, rec.VisitDate,
		rec.Symptoms, rec.Diagnosis, rec.Treatment, rec.Notes,
	)
	return mapPGError("record create", err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*VisitRecord, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM visit_records WHERE id = $1`, id))
	if err != nil {
		return nil, mapPGError("record get", err)
	}
	return rec, nil
}

// Update writes the mutable fields only; patient_id and practitioner_id are
// deliberately absent from the SET list.
func (r *repoPG) Update(ctx context.Context, rec *VisitRecord) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE visit_records SET
			visit_date=$2, symptoms=$3, diagnosis=$4, treatment=$5, notes=$6, updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.VisitDate, rec.Symptoms, rec.Diagnosis, rec.Treatment, rec.Notes,
	)
	if err != nil {
		return mapPGError("record update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM visit_records WHERE id = $1`, id)
	if err != nil {
		return mapPGError("record delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*VisitRecord, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.PractitionerID != uuid.Nil {
		args = append(args, f.PractitionerID)
		where = append(where, fmt.Sprintf("practitioner_id = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visit_records WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, mapPGError("record list count", err)
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM visit_records WHERE `+cond+
			fmt.Sprintf(` ORDER BY visit_date DESC, created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, mapPGError("record list", err)
	}
	defer rows.Close()

	var recs []*VisitRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("record list: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, total, rows.Err()
}

func scanRecord(row pgx.Row) (*VisitRecord, error) {
	var rec VisitRecord
	err := row.Scan(
		&rec.ID, &rec.PatientID, &rec.PractitionerID, &rec.VisitDate,
		&rec.Symptoms, &rec.Diagnosis, &rec.Treatment, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func mapPGError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, apperr.ErrConflict)
		case "23503": // foreign_key_violation
			return apperr.Validationf("%s: referenced identity does not exist", op)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
