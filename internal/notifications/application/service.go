package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/audit"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/auth"
	measurements "github.com/phurich29/mobile-first-looker-ui-sub000/internal/measurements/domain"
	notifications "github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/domain"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/observability/metrics"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/quality"
)

// RuleStore is the persistence contract for notification rules.
type RuleStore interface {
	Get(ctx context.Context, ownerID, deviceCode, metricID string) (*notifications.NotificationRule, error)
	Upsert(ctx context.Context, rule *notifications.NotificationRule) error
	ListEnabledForDevice(ctx context.Context, ownerID, deviceCode string) ([]notifications.NotificationRule, error)
	DeleteForDevice(ctx context.Context, deviceCode string) (int64, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// RuleInput carries the user-editable fields of a rule. Owner, device and
// metric are supplied by the validated call, never by this payload.
type RuleInput struct {
	Enabled      bool    `json:"enabled"`
	MinEnabled   bool    `json:"min_enabled"`
	MaxEnabled   bool    `json:"max_enabled"`
	MinThreshold float64 `json:"min_threshold"`
	MaxThreshold float64 `json:"max_threshold"`
}

// Service is the alerting engine: it owns rule CRUD on behalf of a caller
// and derives the merged alert status for a device.
type Service struct {
	validator *AccessValidator
	rules     RuleStore
	latest    measurements.LatestReader
	catalog   *quality.Catalog
	auditLog  audit.Logger
	clock     Clock
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithAuditLogger assigns an audit logger.
func WithAuditLogger(logger audit.Logger) ServiceOption {
	return func(s *Service) {
		s.auditLog = logger
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService constructs the alerting service.
func NewService(validator *AccessValidator, rules RuleStore, latest measurements.LatestReader, catalog *quality.Catalog, opts ...ServiceOption) (*Service, error) {
	if validator == nil {
		return nil, errors.New("notifications: nil access validator")
	}
	if rules == nil {
		return nil, errors.New("notifications: nil rule store")
	}
	if latest == nil {
		return nil, errors.New("notifications: nil measurement reader")
	}
	if catalog == nil {
		return nil, errors.New("notifications: nil metric catalog")
	}
	service := &Service{
		validator: validator,
		rules:     rules,
		latest:    latest,
		catalog:   catalog,
		clock:     systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// LoadRule returns the caller's rule for (device, metric), or nil when none
// exists. A stored row owned by someone else is a security fault, not a
// not-found: it is audited and surfaced as ErrOwnershipViolation.
func (s *Service) LoadRule(ctx context.Context, deviceCode, metricSlug string) (*notifications.NotificationRule, error) {
	if s == nil {
		return nil, errors.New("notifications: nil service")
	}
	identity, err := s.validator.Validate(ctx, deviceCode)
	if err != nil {
		return nil, err
	}
	metricID := s.catalog.CanonicalMetric(metricSlug)

	rule, err := s.rules.Get(ctx, identity.UserID, deviceCode, metricID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", notifications.ErrStoreUnavailable, err)
	}
	if rule == nil {
		return nil, nil
	}
	if rule.OwnerID != identity.UserID {
		s.recordOwnershipViolation(ctx, identity, *rule)
		return nil, notifications.ErrOwnershipViolation
	}
	return rule, nil
}

// SaveRule upserts the caller's rule for (device, metric). The triple is the
// conflict key: a second save overwrites thresholds and switches in place.
func (s *Service) SaveRule(ctx context.Context, deviceCode, metricSlug string, input RuleInput) (*notifications.NotificationRule, error) {
	if s == nil {
		return nil, errors.New("notifications: nil service")
	}
	identity, err := s.validator.Validate(ctx, deviceCode)
	if err != nil {
		metrics.IncRuleSave(metrics.ResultError)
		return nil, err
	}
	metricID := s.catalog.CanonicalMetric(metricSlug)

	existing, err := s.rules.Get(ctx, identity.UserID, deviceCode, metricID)
	if err != nil {
		metrics.IncRuleSave(metrics.ResultError)
		return nil, fmt.Errorf("%w: %v", notifications.ErrStoreUnavailable, err)
	}
	if existing != nil && existing.OwnerID != identity.UserID {
		s.recordOwnershipViolation(ctx, identity, *existing)
		metrics.IncRuleSave(metrics.ResultError)
		return nil, notifications.ErrOwnershipViolation
	}

	rule := &notifications.NotificationRule{
		OwnerID:      identity.UserID,
		DeviceCode:   deviceCode,
		MetricID:     metricID,
		MetricLabel:  s.catalog.MetricLabel(metricID),
		Enabled:      input.Enabled,
		MinEnabled:   input.MinEnabled,
		MaxEnabled:   input.MaxEnabled,
		MinThreshold: input.MinThreshold,
		MaxThreshold: input.MaxThreshold,
	}
	if existing != nil {
		rule.ID = existing.ID
		rule.CreatedAt = existing.CreatedAt
	}
	if err := s.rules.Upsert(ctx, rule); err != nil {
		metrics.IncRuleSave(metrics.ResultError)
		return nil, fmt.Errorf("%w: %v", notifications.ErrStoreUnavailable, err)
	}
	metrics.IncRuleSave(metrics.ResultSuccess)
	s.auditRuleSave(ctx, identity, *rule)
	return rule, nil
}

// StatusFor derives the merged alert status for deviceCode. Auth failures
// collapse to the empty status so a dashboard tile degrades instead of
// crashing; store failures return an error so a transient outage is retried
// on the next cycle rather than shown as "no rules".
func (s *Service) StatusFor(ctx context.Context, deviceCode string) (notifications.AlertStatus, error) {
	if s == nil {
		return notifications.AlertStatus{}, errors.New("notifications: nil service")
	}
	start := time.Now()
	checkedAt := s.clock.Now().UTC()

	identity, err := s.validator.Validate(ctx, deviceCode)
	if err != nil {
		if errors.Is(err, notifications.ErrUnauthenticated) || errors.Is(err, notifications.ErrForbidden) {
			metrics.ObserveStatusEvaluation("denied", time.Since(start))
			return notifications.EmptyStatus(deviceCode, checkedAt), nil
		}
		metrics.ObserveStatusEvaluation(metrics.ResultError, time.Since(start))
		return notifications.EmptyStatus(deviceCode, checkedAt), err
	}

	rules, err := s.rules.ListEnabledForDevice(ctx, identity.UserID, deviceCode)
	if err != nil {
		metrics.ObserveStatusEvaluation(metrics.ResultError, time.Since(start))
		return notifications.EmptyStatus(deviceCode, checkedAt), fmt.Errorf("%w: %v", notifications.ErrStoreUnavailable, err)
	}
	for _, rule := range rules {
		if rule.OwnerID != identity.UserID {
			s.recordOwnershipViolation(ctx, identity, rule)
			metrics.ObserveStatusEvaluation(metrics.ResultError, time.Since(start))
			return notifications.EmptyStatus(deviceCode, checkedAt), notifications.ErrOwnershipViolation
		}
	}

	status := notifications.EmptyStatus(deviceCode, checkedAt)
	if len(rules) == 0 {
		metrics.ObserveStatusEvaluation(metrics.ResultSuccess, time.Since(start))
		return status, nil
	}

	// One snapshot per cycle: N rules cost exactly one measurement fetch.
	latest, err := s.latest.Latest(ctx, deviceCode)
	if err != nil {
		metrics.ObserveStatusEvaluation(metrics.ResultError, time.Since(start))
		return notifications.EmptyStatus(deviceCode, checkedAt), fmt.Errorf("%w: %v", notifications.ErrStoreUnavailable, err)
	}

	status.HasRules = true
	if latest != nil {
		measuredAt := latest.CapturedAt
		status.MeasuredAt = &measuredAt
	}
	for _, rule := range rules {
		if rule.Dormant() {
			status.DormantRules = append(status.DormantRules, notifications.DormantRule{
				MetricID:    rule.MetricID,
				MetricLabel: rule.MetricLabel,
			})
			continue
		}
		result := notifications.Evaluate(rule, latest.Value(rule.MetricID))
		status.TriggeredRules = append(status.TriggeredRules, result.Reasons...)
	}
	status.IsTriggered = len(status.TriggeredRules) > 0

	metrics.ObserveStatusEvaluation(metrics.ResultSuccess, time.Since(start))
	return status, nil
}

// PurgeDeviceRules removes every rule watching deviceCode. It backs the
// cascade on device deletion and requires an authenticated caller.
func (s *Service) PurgeDeviceRules(ctx context.Context, deviceCode string) (int64, error) {
	if s == nil {
		return 0, errors.New("notifications: nil service")
	}
	if deviceCode == "" {
		return 0, errors.New("notifications: empty device code")
	}
	userID := auth.UserIDFromContext(ctx)
	if userID == "" {
		return 0, notifications.ErrUnauthenticated
	}
	deleted, err := s.rules.DeleteForDevice(ctx, deviceCode)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", notifications.ErrStoreUnavailable, err)
	}
	if s.auditLog != nil {
		meta, _ := json.Marshal(map[string]any{"deleted": deleted})
		_ = s.auditLog.Log(ctx, audit.Entry{
			Actor:        userID,
			Role:         string(auth.RoleFromContext(ctx)),
			Action:       audit.ActionRuleDelete,
			ResourceType: "notification_rule",
			DeviceCode:   deviceCode,
			Metadata:     meta,
			CreatedAt:    s.clock.Now().UTC(),
		})
	}
	return deleted, nil
}

func (s *Service) auditRuleSave(ctx context.Context, identity Identity, rule notifications.NotificationRule) {
	if s.auditLog == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"metric_id":     rule.MetricID,
		"enabled":       rule.Enabled,
		"min_enabled":   rule.MinEnabled,
		"max_enabled":   rule.MaxEnabled,
		"min_threshold": rule.MinThreshold,
		"max_threshold": rule.MaxThreshold,
	})
	_ = s.auditLog.Log(ctx, audit.Entry{
		Actor:        identity.UserID,
		Role:         string(identity.Role),
		Action:       audit.ActionRuleSave,
		ResourceType: "notification_rule",
		ResourceID:   rule.ID,
		DeviceCode:   rule.DeviceCode,
		Metadata:     meta,
		CreatedAt:    s.clock.Now().UTC(),
	})
}

func (s *Service) recordOwnershipViolation(ctx context.Context, identity Identity, rule notifications.NotificationRule) {
	metrics.IncOwnershipViolation()
	if s.auditLog == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"stored_owner": rule.OwnerID,
		"metric_id":    rule.MetricID,
	})
	_ = s.auditLog.Log(ctx, audit.Entry{
		Actor:        identity.UserID,
		Role:         string(identity.Role),
		Action:       audit.ActionOwnershipViolated,
		ResourceType: "notification_rule",
		ResourceID:   rule.ID,
		DeviceCode:   rule.DeviceCode,
		Metadata:     meta,
		CreatedAt:    s.clock.Now().UTC(),
	})
}
