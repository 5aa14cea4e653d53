package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	notifications "github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/domain"
)

const defaultRulesTable = "notification_rules"

// RuleRepository is a Postgres repository for notification rules. Every read
// and write is scoped by the owner id the caller validated; the repository
// never runs an unscoped query and filters nothing client-side.
type RuleRepository struct {
	db    *sql.DB
	table string
}

// NewRuleRepository constructs a repository.
func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db, table: defaultRulesTable}
}

// Get loads the rule for (owner, device, metric), or nil when absent.
func (r *RuleRepository) Get(ctx context.Context, ownerID, deviceCode, metricID string) (*notifications.NotificationRule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rule repo: nil db")
	}
	if ownerID == "" || deviceCode == "" || metricID == "" {
		return nil, errors.New("rule repo: invalid query")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, owner_id, device_code, metric_id, metric_label, enabled,
	min_enabled, max_enabled, min_threshold, max_threshold, created_at, updated_at
FROM notification_rules
WHERE owner_id = $1 AND device_code = $2 AND metric_id = $3
LIMIT 1`, ownerID, deviceCode, metricID)

	rule, err := scanRule(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rule, nil
}

// Upsert writes a rule keyed by (owner, device, metric). A second save for
// the same triple updates thresholds and switches in place; the stored id and
// creation time survive.
func (r *RuleRepository) Upsert(ctx context.Context, rule *notifications.NotificationRule) error {
	if r == nil || r.db == nil {
		return errors.New("rule repo: nil db")
	}
	if rule == nil {
		return errors.New("rule repo: nil rule")
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO notification_rules (
	id, owner_id, device_code, metric_id, metric_label, enabled,
	min_enabled, max_enabled, min_threshold, max_threshold, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9, $10, $11, $12
)
ON CONFLICT (owner_id, device_code, metric_id)
DO UPDATE SET
	metric_label = EXCLUDED.metric_label,
	enabled = EXCLUDED.enabled,
	min_enabled = EXCLUDED.min_enabled,
	max_enabled = EXCLUDED.max_enabled,
	min_threshold = EXCLUDED.min_threshold,
	max_threshold = EXCLUDED.max_threshold,
	updated_at = EXCLUDED.updated_at`,
		rule.ID, rule.OwnerID, rule.DeviceCode, rule.MetricID, rule.MetricLabel, rule.Enabled,
		rule.MinEnabled, rule.MaxEnabled, rule.MinThreshold, rule.MaxThreshold, rule.CreatedAt, rule.UpdatedAt)
	return err
}

// ListEnabledForDevice returns the owner's enabled rules for a device,
// ordered by metric id so repeated evaluations see a stable sequence.
func (r *RuleRepository) ListEnabledForDevice(ctx context.Context, ownerID, deviceCode string) ([]notifications.NotificationRule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rule repo: nil db")
	}
	if ownerID == "" || deviceCode == "" {
		return nil, errors.New("rule repo: invalid query")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, owner_id, device_code, metric_id, metric_label, enabled,
	min_enabled, max_enabled, min_threshold, max_threshold, created_at, updated_at
FROM notification_rules
WHERE owner_id = $1 AND device_code = $2 AND enabled = TRUE
ORDER BY metric_id ASC`, ownerID, deviceCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []notifications.NotificationRule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteForDevice removes every owner's rules for a device. It backs the
// cascade when the device itself is deleted, which is the one path allowed
// to cross owner boundaries.
func (r *RuleRepository) DeleteForDevice(ctx context.Context, deviceCode string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("rule repo: nil db")
	}
	if deviceCode == "" {
		return 0, errors.New("rule repo: empty device code")
	}
	res, err := r.db.ExecContext(ctx, `
DELETE FROM notification_rules
WHERE device_code = $1`, deviceCode)
	if err != nil {
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func scanRule(scan func(dest ...any) error) (*notifications.NotificationRule, error) {
	var rule notifications.NotificationRule
	if err := scan(
		&rule.ID,
		&rule.OwnerID,
		&rule.DeviceCode,
		&rule.MetricID,
		&rule.MetricLabel,
		&rule.Enabled,
		&rule.MinEnabled,
		&rule.MaxEnabled,
		&rule.MinThreshold,
		&rule.MaxThreshold,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	rule.UpdatedAt = rule.UpdatedAt.UTC()
	return &rule, nil
}
