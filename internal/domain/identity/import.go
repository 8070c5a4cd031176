package identity

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichron/medichron/internal/platform/auth"
	"github.com/medichron/medichron/internal/platform/db"
)

// Importer bulk-loads patient registrations from CSV inside one transaction.
// Any bad row rolls the whole batch back; the error names the failing row's
// username so the source file can be fixed and re-run.
type Importer struct {
	svc   *Service
	runTx func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewImporter(pool *pgxpool.Pool, svc *Service) *Importer {
	return &Importer{
		svc: svc,
		runTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		},
	}
}

var importRequiredColumns = []string{"username", "email", "password", "first_name", "last_name", "national_id"}

// ImportPatients reads a CSV with a header row and registers each row as a
// patient. Returns the number of imported rows; on failure nothing is
// persisted.
func (im *Importer) ImportPatients(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("import patients: read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range importRequiredColumns {
		if _, ok := col[required]; !ok {
			return 0, fmt.Errorf("import patients: missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	count := 0
	err = im.runTx(ctx, func(ctx context.Context) error {
		for line := 2; ; line++ {
			row, err := reader.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("row %d: %w", line, err)
			}

			reg := Registration{
				Username:   field(row, "username"),
				Email:      field(row, "email"),
				Password:   field(row, "password"),
				FirstName:  field(row, "first_name"),
				LastName:   field(row, "last_name"),
				NationalID: field(row, "national_id"),
			}
			if phone := field(row, "phone"); phone != "" {
				reg.Phone = &phone
			}
			if location := field(row, "location"); location != "" {
				reg.Location = &location
			}

			if _, err := im.svc.Register(ctx, auth.RolePatient, &reg); err != nil {
				return fmt.Errorf("row %d (username %q): %w", line, reg.Username, err)
			}
			count++
		}
	})
	if err != nil {
		return 0, fmt.Errorf("import patients: %w", err)
	}
	return count, nil
}
