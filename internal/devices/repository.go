package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	defaultDevicesTable = "devices"
	defaultAccessTable  = "device_access"
)

// Repository is a Postgres implementation for devices.
type Repository struct {
	db          *sql.DB
	table       string
	accessTable string
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB, opts ...RepositoryOption) *Repository {
	repo := &Repository{db: db, table: defaultDevicesTable, accessTable: defaultAccessTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithTable overrides the default devices table name.
func WithTable(table string) RepositoryOption {
	return func(repo *Repository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithAccessTable overrides the default device-access table name.
func WithAccessTable(table string) RepositoryOption {
	return func(repo *Repository) {
		if table != "" {
			repo.accessTable = table
		}
	}
}

// ListAll loads every registered device, ordered by code.
func (r *Repository) ListAll(ctx context.Context) ([]Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("devices repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT code, name, model, location, created_at, updated_at
FROM %s
ORDER BY code ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDevices(rows)
}

// ListForUser loads the devices a user holds an access grant for,
// ordered by code.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("devices repo: nil db")
	}
	if userID == "" {
		return nil, errors.New("devices repo: empty user id")
	}

	query := fmt.Sprintf(`
SELECT d.code, d.name, d.model, d.location, d.created_at, d.updated_at
FROM %s d
JOIN %s a ON a.device_code = d.code
WHERE a.user_id = $1
ORDER BY d.code ASC`, r.table, r.accessTable)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDevices(rows)
}

// Get loads a device by code.
func (r *Repository) Get(ctx context.Context, code string) (*Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("devices repo: nil db")
	}
	if code == "" {
		return nil, errors.New("devices repo: empty code")
	}

	query := fmt.Sprintf(`
SELECT code, name, model, location, created_at, updated_at
FROM %s
WHERE code = $1
LIMIT 1`, r.table)

	var device Device
	var model, location sql.NullString
	if err := r.db.QueryRowContext(ctx, query, code).Scan(
		&device.Code,
		&device.Name,
		&model,
		&location,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	device.Model = model.String
	device.Location = location.String
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	return &device, nil
}

// Delete removes a device row and its access grants. Notification rules
// are cleaned up separately by the alerting service.
func (r *Repository) Delete(ctx context.Context, code string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("devices repo: nil db")
	}
	if code == "" {
		return false, errors.New("devices repo: empty code")
	}

	grantQuery := fmt.Sprintf(`DELETE FROM %s WHERE device_code = $1`, r.accessTable)
	if _, err := r.db.ExecContext(ctx, grantQuery, code); err != nil {
		return false, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE code = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, code)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanDevices(rows *sql.Rows) ([]Device, error) {
	var result []Device
	for rows.Next() {
		var device Device
		var model, location sql.NullString
		if err := rows.Scan(
			&device.Code,
			&device.Name,
			&model,
			&location,
			&device.CreatedAt,
			&device.UpdatedAt,
		); err != nil {
			return nil, err
		}
		device.Model = model.String
		device.Location = location.String
		device.CreatedAt = device.CreatedAt.UTC()
		device.UpdatedAt = device.UpdatedAt.UTC()
		result = append(result, device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
