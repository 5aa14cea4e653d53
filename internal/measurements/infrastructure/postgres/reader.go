package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	measurements "github.com/phurich29/mobile-first-looker-ui-sub000/internal/measurements/domain"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/quality"
)

const defaultMeasurementsTable = "quality_measurements"

// Reader is a Postgres reader for device measurements. The metric catalog
// supplies the value columns, so the row comes back as a sparse map keyed by
// canonical metric id.
type Reader struct {
	db      *sql.DB
	table   string
	columns []string
}

// ReaderOption configures the reader.
type ReaderOption func(*Reader)

// WithTable overrides the default table name.
func WithTable(table string) ReaderOption {
	return func(r *Reader) {
		if table != "" {
			r.table = table
		}
	}
}

// NewReader constructs a reader over the catalog's metric columns.
func NewReader(db *sql.DB, catalog *quality.Catalog, opts ...ReaderOption) (*Reader, error) {
	if db == nil {
		return nil, errors.New("measurement reader: nil db")
	}
	if catalog == nil {
		return nil, errors.New("measurement reader: nil catalog")
	}
	reader := &Reader{db: db, table: defaultMeasurementsTable, columns: catalog.MetricIDs()}
	if len(reader.columns) == 0 {
		return nil, errors.New("measurement reader: empty catalog")
	}
	for _, opt := range opts {
		opt(reader)
	}
	return reader, nil
}

// Latest returns the most recent measurement for a device, or nil when the
// device has never reported.
func (r *Reader) Latest(ctx context.Context, deviceCode string) (*measurements.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement reader: nil db")
	}
	if deviceCode == "" {
		return nil, errors.New("measurement reader: empty device code")
	}

	query := fmt.Sprintf(`
SELECT captured_at, %s
FROM %s
WHERE device_code = $1
ORDER BY captured_at DESC
LIMIT 1`, strings.Join(r.columns, ", "), r.table)

	row := r.db.QueryRowContext(ctx, query, deviceCode)
	m, err := r.scanRow(deviceCode, row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// LatestValue projects a single metric out of the latest measurement. Both
// return values are nil when the device has no data or the row lacks the
// metric.
func (r *Reader) LatestValue(ctx context.Context, deviceCode, metricID string) (*float64, *time.Time, error) {
	latest, err := r.Latest(ctx, deviceCode)
	if err != nil {
		return nil, nil, err
	}
	if latest == nil {
		return nil, nil, nil
	}
	value := latest.Value(metricID)
	if value == nil {
		return nil, nil, nil
	}
	capturedAt := latest.CapturedAt
	return value, &capturedAt, nil
}

// History returns measurements in [from, to), oldest first.
func (r *Reader) History(ctx context.Context, deviceCode string, from, to time.Time) ([]measurements.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement reader: nil db")
	}
	if deviceCode == "" {
		return nil, errors.New("measurement reader: empty device code")
	}

	query := fmt.Sprintf(`
SELECT captured_at, %s
FROM %s
WHERE device_code = $1 AND captured_at >= $2 AND captured_at < $3
ORDER BY captured_at ASC`, strings.Join(r.columns, ", "), r.table)

	rows, err := r.db.QueryContext(ctx, query, deviceCode, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []measurements.Measurement
	for rows.Next() {
		m, err := r.scanRow(deviceCode, rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Reader) scanRow(deviceCode string, scan func(dest ...any) error) (*measurements.Measurement, error) {
	var capturedAt time.Time
	values := make([]sql.NullFloat64, len(r.columns))
	dest := make([]any, 0, len(r.columns)+1)
	dest = append(dest, &capturedAt)
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}

	m := &measurements.Measurement{
		DeviceCode: deviceCode,
		CapturedAt: capturedAt.UTC(),
		Values:     make(map[string]*float64, len(r.columns)),
	}
	for i, column := range r.columns {
		if values[i].Valid {
			v := values[i].Float64
			m.Values[column] = &v
		} else {
			m.Values[column] = nil
		}
	}
	return m, nil
}
