package application

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/audit"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/auth"
	measurements "github.com/phurich29/mobile-first-looker-ui-sub000/internal/measurements/domain"
	notifications "github.com/phurich29/mobile-first-looker-ui-sub000/internal/notifications/domain"
	"github.com/phurich29/mobile-first-looker-ui-sub000/internal/quality"
)

type stubChecker struct {
	allowed bool
	err     error
}

func (c stubChecker) Allowed(_ context.Context, _, _ string) (bool, error) {
	return c.allowed, c.err
}

type stubRuleStore struct {
	getRule   *notifications.NotificationRule
	getErr    error
	listRules []notifications.NotificationRule
	listErr   error
	listCalls int
	upserted  *notifications.NotificationRule
	deleted   int64
}

func (s *stubRuleStore) Get(_ context.Context, _, _, _ string) (*notifications.NotificationRule, error) {
	return s.getRule, s.getErr
}

func (s *stubRuleStore) Upsert(_ context.Context, rule *notifications.NotificationRule) error {
	s.upserted = rule
	return nil
}

func (s *stubRuleStore) ListEnabledForDevice(_ context.Context, _, _ string) ([]notifications.NotificationRule, error) {
	s.listCalls++
	return s.listRules, s.listErr
}

func (s *stubRuleStore) DeleteForDevice(_ context.Context, _ string) (int64, error) {
	return s.deleted, nil
}

type stubLatestReader struct {
	measurement *measurements.Measurement
	err         error
	calls       int
}

func (s *stubLatestReader) Latest(_ context.Context, _ string) (*measurements.Measurement, error) {
	s.calls++
	return s.measurement, s.err
}

type recordingAudit struct {
	entries []audit.Entry
}

func (r *recordingAudit) Log(_ context.Context, entry audit.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

func newTestService(t *testing.T, store *stubRuleStore, latest *stubLatestReader, auditLog audit.Logger) *Service {
	t.Helper()
	validator, err := NewAccessValidator(stubChecker{allowed: true})
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	catalog, err := quality.NewCatalog(quality.DefaultMetrics())
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	opts := []ServiceOption{WithClock(fixedClock{at: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)})}
	if auditLog != nil {
		opts = append(opts, WithAuditLogger(auditLog))
	}
	service, err := NewService(validator, store, latest, catalog, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func callerCtx(userID string) context.Context {
	return auth.WithIdentity(context.Background(), userID, auth.RoleViewer)
}

func measurementWith(metricID string, value float64) *measurements.Measurement {
	v := value
	return &measurements.Measurement{
		DeviceCode: "D1",
		CapturedAt: time.Date(2026, 8, 30, 11, 59, 0, 0, time.UTC),
		Values:     map[string]*float64{metricID: &v},
	}
}

func minRule(owner, device, metric string, threshold float64) notifications.NotificationRule {
	return notifications.NotificationRule{
		ID:           "rule-" + metric,
		OwnerID:      owner,
		DeviceCode:   device,
		MetricID:     metric,
		MetricLabel:  metric,
		Enabled:      true,
		MinEnabled:   true,
		MinThreshold: threshold,
	}
}

func TestStatusForMinViolationTriggers(t *testing.T) {
	store := &stubRuleStore{listRules: []notifications.NotificationRule{minRule("user-1", "D1", "whiteness", 40)}}
	latest := &stubLatestReader{measurement: measurementWith("whiteness", 35)}
	service := newTestService(t, store, latest, nil)

	status, err := service.StatusFor(callerCtx("user-1"), "D1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.HasRules || !status.IsTriggered {
		t.Fatalf("expected triggered status, got %+v", status)
	}
	if len(status.TriggeredRules) != 1 {
		t.Fatalf("expected 1 triggered rule, got %d", len(status.TriggeredRules))
	}
	reason := status.TriggeredRules[0]
	if reason.MetricID != "whiteness" || reason.Bound != notifications.BoundMin ||
		reason.Threshold != 40 || reason.CurrentValue != 35 {
		t.Fatalf("unexpected reason: %+v", reason)
	}
}

func TestStatusForBoundaryValueDoesNotTrigger(t *testing.T) {
	store := &stubRuleStore{listRules: []notifications.NotificationRule{minRule("user-1", "D1", "whiteness", 40)}}
	latest := &stubLatestReader{measurement: measurementWith("whiteness", 40)}
	service := newTestService(t, store, latest, nil)

	status, err := service.StatusFor(callerCtx("user-1"), "D1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.IsTriggered {
		t.Fatalf("boundary value must not trigger, got %+v", status.TriggeredRules)
	}
	if !status.HasRules {
		t.Fatal("expected has_rules")
	}
}

func TestStatusForUnauthenticatedDegradesSilently(t *testing.T) {
	store := &stubRuleStore{listRules: []notifications.NotificationRule{minRule("user-1", "D1", "whiteness", 40)}}
	latest := &stubLatestReader{measurement: measurementWith("whiteness", 0)}
	service := newTestService(t, store, latest, nil)

	status, err := service.StatusFor(context.Background(), "D1")
	if err != nil {
		t.Fatalf("unauthenticated status must not error, got %v", err)
	}
	if status.HasRules || status.IsTriggered || len(status.TriggeredRules) != 0 {
		t.Fatalf("expected empty status, got %+v", status)
	}
	if store.listCalls != 0 || latest.calls != 0 {
		t.Fatal("no partial work may run after a failed validation")
	}
}

func TestStatusForForbiddenDegradesSilently(t *testing.T) {
	validator, err := NewAccessValidator(stubChecker{allowed: false})
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	catalog, err := quality.NewCatalog(quality.DefaultMetrics())
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	service, err := NewService(validator, &stubRuleStore{}, &stubLatestReader{}, catalog)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	status, err := service.StatusFor(callerCtx("user-1"), "D1")
	if err != nil {
		t.Fatalf("forbidden status must not error, got %v", err)
	}
	if status.HasRules {
		t.Fatalf("expected empty status, got %+v", status)
	}
}

func TestStatusForSingleMeasurementFetch(t *testing.T) {
	store := &stubRuleStore{listRules: []notifications.NotificationRule{
		minRule("user-1", "D1", "head_rice", 70),
		minRule("user-1", "D1", "total_brokens", 5),
		minRule("user-1", "D1", "whiteness", 40),
	}}
	latest := &stubLatestReader{measurement: measurementWith("whiteness", 35)}
	service := newTestService(t, store, latest, nil)

	if _, err := service.StatusFor(callerCtx("user-1"), "D1"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if latest.calls != 1 {
		t.Fatalf("expected exactly one measurement fetch, got %d", latest.calls)
	}
	if store.listCalls != 1 {
		t.Fatalf("expected exactly one rule list fetch, got %d", store.listCalls)
	}
}

func TestStatusForDeterministic(t *testing.T) {
	store := &stubRuleStore{listRules: []notifications.NotificationRule{
		minRule("user-1", "D1", "head_rice", 90),
		minRule("user-1", "D1", "whiteness", 40),
	}}
	m := measurementWith("whiteness", 35)
	v := 80.0
	m.Values["head_rice"] = &v
	latest := &stubLatestReader{measurement: m}
	service := newTestService(t, store, latest, nil)

	first, err := service.StatusFor(callerCtx("user-1"), "D1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	second, err := service.StatusFor(callerCtx("user-1"), "D1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got\n%+v\n%+v", first, second)
	}
}

func TestStatusForNoRules(t *testing.T) {
	store := &stubRuleStore{}
	latest := &stubLatestReader{measurement: measurementWith("whiteness", 0)}
	service := newTestService(t, store, latest, nil)

	status, err := service.StatusFor(callerCtx("user-1"), "D1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.HasRules || status.IsTriggered {
		t.Fatalf("expected no-rules status, got %+v", status)
	}
	if latest.calls != 0 {
		t.Fatal("no measurement fetch expected without rules")
	}
}

func TestStatusForNoMeasurementYet(t *testing.T) {
	store := &stubRuleStore{listRules: []notifications.NotificationRule{minRule("user-1", "D1", "whiteness", 40)}}
	latest := &stubLatestReader{measurement: nil}
	service := newTestService(t, store, latest, nil)

	status, err := service.StatusFor(callerCtx("user-1"), "D1")
	if err != nil {
		t.Fatalf("absence of data must not error, got %v", err)
	}
	if !status.HasRules {
		t.Fatal("expected has_rules")
	}
	if status.IsTriggered || status.MeasuredAt != nil {
		t.Fatalf("expected quiet status without data, got %+v", status)
	}
}

func TestStatusForDormantRuleSurfaced(t *testing.T) {
	dormant := notifications.NotificationRule{
		ID:          "rule-d",
		OwnerID:     "user-1",
		DeviceCode:  "D1",
		MetricID:    "whiteness",
		MetricLabel: "Whiteness",
		Enabled:     true,
	}
	store := &stubRuleStore{listRules: []notifications.NotificationRule{dormant}}
	latest := &stubLatestReader{measurement: measurementWith("whiteness", 0)}
	service := newTestService(t, store, latest, nil)

	status, err := service.StatusFor(callerCtx("user-1"), "D1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.HasRules {
		t.Fatal("a dormant rule still counts as configured")
	}
	if status.IsTriggered || len(status.TriggeredRules) != 0 {
		t.Fatalf("dormant rule must never trigger, got %+v", status.TriggeredRules)
	}
	if len(status.DormantRules) != 1 || status.DormantRules[0].MetricID != "whiteness" {
		t.Fatalf("expected dormant rule surfaced, got %+v", status.DormantRules)
	}
}

func TestStatusForOwnershipViolationSurfaced(t *testing.T) {
	foreign := minRule("user-2", "D1", "whiteness", 40)
	store := &stubRuleStore{listRules: []notifications.NotificationRule{foreign}}
	latest := &stubLatestReader{measurement: measurementWith("whiteness", 0)}
	auditLog := &recordingAudit{}
	service := newTestService(t, store, latest, auditLog)

	_, err := service.StatusFor(callerCtx("user-1"), "D1")
	if !errors.Is(err, notifications.ErrOwnershipViolation) {
		t.Fatalf("expected ownership violation, got %v", err)
	}
	if len(auditLog.entries) != 1 || auditLog.entries[0].Action != audit.ActionOwnershipViolated {
		t.Fatalf("expected audited violation, got %+v", auditLog.entries)
	}
}

func TestStatusForStoreErrorPropagates(t *testing.T) {
	store := &stubRuleStore{listErr: errors.New("connection refused")}
	latest := &stubLatestReader{}
	service := newTestService(t, store, latest, nil)

	_, err := service.StatusFor(callerCtx("user-1"), "D1")
	if !errors.Is(err, notifications.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestLoadRuleNotFound(t *testing.T) {
	service := newTestService(t, &stubRuleStore{}, &stubLatestReader{}, nil)

	rule, err := service.LoadRule(callerCtx("user-1"), "D1", "whiteness")
	if err != nil {
		t.Fatalf("missing rule must not error, got %v", err)
	}
	if rule != nil {
		t.Fatalf("expected nil rule, got %+v", rule)
	}
}

func TestLoadRuleOwnershipViolation(t *testing.T) {
	foreign := minRule("user-2", "D1", "whiteness", 40)
	store := &stubRuleStore{getRule: &foreign}
	auditLog := &recordingAudit{}
	service := newTestService(t, store, &stubLatestReader{}, auditLog)

	_, err := service.LoadRule(callerCtx("user-1"), "D1", "whiteness")
	if !errors.Is(err, notifications.ErrOwnershipViolation) {
		t.Fatalf("expected ownership violation, got %v", err)
	}
	if len(auditLog.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(auditLog.entries))
	}
}

func TestLoadRuleUnauthenticatedSurfaced(t *testing.T) {
	service := newTestService(t, &stubRuleStore{}, &stubLatestReader{}, nil)

	_, err := service.LoadRule(context.Background(), "D1", "whiteness")
	if !errors.Is(err, notifications.ErrUnauthenticated) {
		t.Fatalf("explicit user actions surface auth errors, got %v", err)
	}
}

func TestSaveRuleOwnerComesFromIdentity(t *testing.T) {
	store := &stubRuleStore{}
	auditLog := &recordingAudit{}
	service := newTestService(t, store, &stubLatestReader{}, auditLog)

	saved, err := service.SaveRule(callerCtx("user-1"), "D1", "paddy", RuleInput{
		Enabled:      true,
		MinEnabled:   true,
		MinThreshold: 3,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.OwnerID != "user-1" {
		t.Fatalf("owner must come from the validated identity, got %q", saved.OwnerID)
	}
	if saved.MetricID != "paddy_rate" {
		t.Fatalf("expected canonical metric id, got %q", saved.MetricID)
	}
	if saved.MetricLabel != "Paddy" {
		t.Fatalf("expected label snapshot, got %q", saved.MetricLabel)
	}
	if store.upserted == nil {
		t.Fatal("expected upsert")
	}
	if len(auditLog.entries) != 1 || auditLog.entries[0].Action != audit.ActionRuleSave {
		t.Fatalf("expected save audited, got %+v", auditLog.entries)
	}
}

func TestSaveRulePreservesIdentityOnUpdate(t *testing.T) {
	existing := minRule("user-1", "D1", "whiteness", 40)
	existing.ID = "rule-original"
	existing.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &stubRuleStore{getRule: &existing}
	service := newTestService(t, store, &stubLatestReader{}, nil)

	saved, err := service.SaveRule(callerCtx("user-1"), "D1", "whiteness", RuleInput{
		Enabled:      true,
		MaxEnabled:   true,
		MaxThreshold: 50,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID != "rule-original" {
		t.Fatalf("a second save must update in place, got id %q", saved.ID)
	}
	if !saved.CreatedAt.Equal(existing.CreatedAt) {
		t.Fatalf("expected original creation time, got %v", saved.CreatedAt)
	}
}

func TestPurgeDeviceRules(t *testing.T) {
	store := &stubRuleStore{deleted: 4}
	auditLog := &recordingAudit{}
	service := newTestService(t, store, &stubLatestReader{}, auditLog)

	deleted, err := service.PurgeDeviceRules(callerCtx("admin-1"), "D1")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 4 {
		t.Fatalf("expected 4 deleted, got %d", deleted)
	}
	if len(auditLog.entries) != 1 || auditLog.entries[0].Action != audit.ActionRuleDelete {
		t.Fatalf("expected delete audited, got %+v", auditLog.entries)
	}
}
