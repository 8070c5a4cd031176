package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medichron/medichron/internal/platform/apperr"
	"github.com/medichron/medichron/internal/platform/db"
	"github.com/medichron/medichron/internal/platform/privacy"
)

type repoPG struct {
	pool   *pgxpool.Pool
	cipher privacy.FieldEncryptor
	logger zerolog.Logger
}

// NewRepo creates an identity repository with national-ID field encryption.
// Pass a nil cipher to store the field as plaintext (local development only).
func NewRepo(pool *pgxpool.Pool, cipher privacy.FieldEncryptor, logger zerolog.Logger) Repository {
	return &repoPG{pool: pool, cipher: cipher, logger: logger}
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

const identityCols = `id, role, username, email, password_hash, first_name, last_name,
	phone, location, date_of_birth, national_id, uid, specialization, license_number,
	active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, ident *Identity) error {
	if ident.ID == uuid.Nil {
		ident.ID = uuid.New()
	}

	// Encrypt the national-ID before storage, then restore the plaintext
	// for the caller.
	plaintext := ident.NationalID
	if err := r.encryptNationalID(ident); err != nil {
		return fmt.Errorf("identity create: %w", err)
	}
	defer func() { ident.NationalID = plaintext }()

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO identities (
			id, role, username, email, password_hash, first_name, last_name,
			phone, location, date_of_birth, national_id, uid, specialization, license_number, active
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,
			$8,$9,$10,$11,$12,$13,$14,$15
		)`,
		ident.ID, ident.Role, ident.Username, ident.Email, ident.PasswordHash, ident.FirstName, ident.LastName,
		ident.Phone, ident.Location, ident.DateOfBirth, ident.NationalID, ident.UID, ident.Specialization, ident.LicenseNumber, ident.Active,
	)
	return mapPGError("identity create", err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	ident, err := scanIdentity(r.conn(ctx).QueryRow(ctx,
		`SELECT `+identityCols+` FROM identities WHERE id = $1`, id))
	if err != nil {
		return nil, mapPGError("identity get by id", err)
	}
	r.decryptNationalID(ident)
	return ident, nil
}

func (r *repoPG) GetByUsername(ctx context.Context, role, username string) (*Identity, error) {
	ident, err := scanIdentity(r.conn(ctx).QueryRow(ctx,
		`SELECT `+identityCols+` FROM identities WHERE role = $1 AND username = $2`, role, username))
	if err != nil {
		return nil, mapPGError("identity get by username", err)
	}
	r.decryptNationalID(ident)
	return ident, nil
}

func (r *repoPG) GetByUID(ctx context.Context, uid string) (*Identity, error) {
	ident, err := scanIdentity(r.conn(ctx).QueryRow(ctx,
		`SELECT `+identityCols+` FROM identities WHERE uid = $1`, uid))
	if err != nil {
		return nil, mapPGError("identity get by uid", err)
	}
	r.decryptNationalID(ident)
	return ident, nil
}

func (r *repoPG) Update(ctx context.Context, ident *Identity) error {
	// A masked national-ID means the stored ciphertext failed to decrypt on
	// read. The mask is a display placeholder, not a writable value: writing
	// it back would destroy ciphertext that is still recoverable under the
	// right key. Leave the national_id column untouched in that case.
	if ident.NationalID != nil && *ident.NationalID == privacy.Masked {
		tag, err := r.conn(ctx).Exec(ctx, `
			UPDATE identities SET
				email=$2, first_name=$3, last_name=$4, phone=$5, location=$6,
				date_of_birth=$7, specialization=$8, license_number=$9,
				password_hash=$10, active=$11, updated_at=NOW()
			WHERE id = $1`,
			ident.ID, ident.Email, ident.FirstName, ident.LastName, ident.Phone, ident.Location,
			ident.DateOfBirth, ident.Specialization, ident.LicenseNumber,
			ident.PasswordHash, ident.Active,
		)
		if err != nil {
			return mapPGError("identity update", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.ErrNotFound
		}
		return nil
	}

	plaintext := ident.NationalID
	if err := r.encryptNationalID(ident); err != nil {
		return fmt.Errorf("identity update: %w", err)
	}
	defer func() { ident.NationalID = plaintext }()

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE identities SET
			email=$2, first_name=$3, last_name=$4, phone=$5, location=$6,
			date_of_birth=$7, national_id=$8, specialization=$9, license_number=$10,
			password_hash=$11, active=$12, updated_at=NOW()
		WHERE id = $1`,
		ident.ID, ident.Email, ident.FirstName, ident.LastName, ident.Phone, ident.Location,
		ident.DateOfBirth, ident.NationalID, ident.Specialization, ident.LicenseNumber,
		ident.PasswordHash, ident.Active,
	)
	if err != nil {
		return mapPGError("identity update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes: the row stays so visit records keep a valid
// owner, but the identity no longer authenticates or resolves via QR scan.
func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE identities SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return mapPGError("identity deactivate", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, role string, limit, offset int) ([]*Identity, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM identities WHERE role = $1 AND active`, role).Scan(&total); err != nil {
		return nil, 0, mapPGError("identity list count", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+identityCols+` FROM identities
		 WHERE role = $1 AND active
		 ORDER BY last_name, first_name LIMIT $2 OFFSET $3`, role, limit, offset)
	if err != nil {
		return nil, 0, mapPGError("identity list", err)
	}
	defer rows.Close()

	var idents []*Identity
	for rows.Next() {
		ident, err := scanIdentityRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("identity list: %w", err)
		}
		r.decryptNationalID(ident)
		idents = append(idents, ident)
	}
	return idents, total, rows.Err()
}

func (r *repoPG) encryptNationalID(ident *Identity) error {
	if r.cipher == nil || ident.NationalID == nil {
		return nil
	}
	// Backstop for the Update guard above: the placeholder must never reach
	// the cipher, let alone storage.
	if *ident.NationalID == privacy.Masked {
		return fmt.Errorf("national_id is the masked placeholder, refusing to encrypt it")
	}
	ciphertext, err := r.cipher.Encrypt(*ident.NationalID)
	if err != nil {
		return fmt.Errorf("encrypt national_id: %w", err)
	}
	ident.NationalID = &ciphertext
	return nil
}

// decryptNationalID replaces the stored ciphertext with plaintext. A failed
// decrypt is an integrity signal: it is logged with the identity id and the
// caller sees a masked placeholder, never the raw error or ciphertext.
func (r *repoPG) decryptNationalID(ident *Identity) {
	if r.cipher == nil || ident.NationalID == nil {
		return
	}
	plaintext, err := r.cipher.Decrypt(*ident.NationalID)
	if err != nil {
		r.logger.Error().
			Str("identity_id", ident.ID.String()).
			Err(err).
			Msg("national_id decryption failed; returning masked value")
		masked := privacy.Masked
		ident.NationalID = &masked
		return
	}
	ident.NationalID = &plaintext
}

func scanIdentity(row pgx.Row) (*Identity, error) {
	var i Identity
	err := row.Scan(
		&i.ID, &i.Role, &i.Username, &i.Email, &i.PasswordHash, &i.FirstName, &i.LastName,
		&i.Phone, &i.Location, &i.DateOfBirth, &i.NationalID, &i.UID, &i.Specialization, &i.LicenseNumber,
		&i.Active, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func scanIdentityRows(rows pgx.Rows) (*Identity, error) {
	return scanIdentity(rows)
}

// mapPGError converts storage-layer failures into the shared taxonomy:
// uniqueness violations become Conflict, broken references become
// ValidationError, missing rows become NotFound.
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
			return apperr.Validationf("%s: referenced record does not exist", op)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
