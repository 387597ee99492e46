package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	sla "sla-cloud/internal/sla/domain"
)

// AgreementRepository is an in-memory repository for agreements.
type AgreementRepository struct {
	mu           sync.RWMutex
	data         map[string]*sla.Agreement
	measurements *MeasurementRepository
}

// NewAgreementRepository constructs a repository.
func NewAgreementRepository() *AgreementRepository {
	return &AgreementRepository{data: make(map[string]*sla.Agreement)}
}

// Get loads an agreement.
func (r *AgreementRepository) Get(ctx context.Context, id string) (*sla.Agreement, error) {
	_ = ctx
	r.mu.RLock()
	agreement := r.data[id]
	r.mu.RUnlock()
	if agreement == nil {
		return nil, nil
	}
	return agreement.Clone(), nil
}

// Create stores a new agreement.
func (r *AgreementRepository) Create(ctx context.Context, agreement *sla.Agreement) error {
	_ = ctx
	if agreement == nil || agreement.ID == "" {
		return fmt.Errorf("%w: agreement id required", sla.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[agreement.ID]; ok {
		return fmt.Errorf("%w: agreement %s exists", sla.ErrValidation, agreement.ID)
	}
	r.data[agreement.ID] = agreement.Clone()
	return nil
}

// Update overwrites an existing agreement.
func (r *AgreementRepository) Update(ctx context.Context, agreement *sla.Agreement) error {
	_ = ctx
	if agreement == nil {
		return fmt.Errorf("%w: nil agreement", sla.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[agreement.ID]; !ok {
		return sla.ErrNotFound
	}
	r.data[agreement.ID] = agreement.Clone()
	return nil
}

// Delete removes an agreement.
func (r *AgreementRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return sla.ErrNotFound
	}
	if r.measurements != nil {
		if count, _ := r.measurements.CountByAgreement(ctx, id); count > 0 {
			return fmt.Errorf("%w: agreement %s", sla.ErrAgreementInUse, id)
		}
	}
	delete(r.data, id)
	return nil
}

// ListByTenant returns a tenant's agreements, newest effective date first.
func (r *AgreementRepository) ListByTenant(ctx context.Context, tenantID string) ([]sla.Agreement, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]sla.Agreement, 0)
	for _, agreement := range r.data {
		if agreement.TenantID == tenantID {
			out = append(out, *agreement.Clone())
		}
	}
	r.mu.RUnlock()
	sortAgreements(out)
	return out, nil
}

// ListActive returns every active agreement.
func (r *AgreementRepository) ListActive(ctx context.Context) ([]sla.Agreement, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]sla.Agreement, 0)
	for _, agreement := range r.data {
		if agreement.Active {
			out = append(out, *agreement.Clone())
		}
	}
	r.mu.RUnlock()
	sortAgreements(out)
	return out, nil
}

func sortAgreements(items []sla.Agreement) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EffectiveDate.Equal(items[j].EffectiveDate) {
			return items[i].EffectiveDate.After(items[j].EffectiveDate)
		}
		return items[i].ID < items[j].ID
	})
}

// IncidentRepository is an in-memory repository for incidents.
type IncidentRepository struct {
	mu   sync.RWMutex
	data map[string]*sla.Incident
}

// NewIncidentRepository constructs a repository.
func NewIncidentRepository() *IncidentRepository {
	return &IncidentRepository{data: make(map[string]*sla.Incident)}
}

// Get loads an incident.
func (r *IncidentRepository) Get(ctx context.Context, id string) (*sla.Incident, error) {
	_ = ctx
	r.mu.RLock()
	incident := r.data[id]
	r.mu.RUnlock()
	if incident == nil {
		return nil, nil
	}
	return incident.Clone(), nil
}

// Create stores a new incident.
func (r *IncidentRepository) Create(ctx context.Context, incident *sla.Incident) error {
	_ = ctx
	if incident == nil || incident.ID == "" {
		return fmt.Errorf("%w: incident id required", sla.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[incident.ID]; ok {
		return fmt.Errorf("%w: incident %s exists", sla.ErrValidation, incident.ID)
	}
	r.data[incident.ID] = incident.Clone()
	return nil
}

// UpdateStatus replaces the incident when its stored status still equals expected.
func (r *IncidentRepository) UpdateStatus(ctx context.Context, incident *sla.Incident, expected sla.Status) (bool, error) {
	_ = ctx
	if incident == nil {
		return false, fmt.Errorf("%w: nil incident", sla.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.data[incident.ID]
	if !ok {
		return false, sla.ErrNotFound
	}
	if current.Status != expected {
		return false, nil
	}
	r.data[incident.ID] = incident.Clone()
	return true, nil
}

// ListOverlapping returns a tenant's incidents whose outage interval
// intersects [start, end), ordered by start time.
func (r *IncidentRepository) ListOverlapping(ctx context.Context, tenantID string, start, end time.Time) ([]sla.Incident, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]sla.Incident, 0)
	for _, incident := range r.data {
		if incident.TenantID != tenantID {
			continue
		}
		if !incident.StartedAt.Before(end) {
			continue
		}
		if incident.ResolvedAt != nil && !incident.ResolvedAt.After(start) {
			continue
		}
		out = append(out, *incident.Clone())
	}
	r.mu.RUnlock()
	sortIncidents(out)
	return out, nil
}

// ListByTenant returns a tenant's incidents, optionally filtered by status.
func (r *IncidentRepository) ListByTenant(ctx context.Context, tenantID string, status sla.Status) ([]sla.Incident, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]sla.Incident, 0)
	for _, incident := range r.data {
		if incident.TenantID != tenantID {
			continue
		}
		if status != "" && incident.Status != status {
			continue
		}
		out = append(out, *incident.Clone())
	}
	r.mu.RUnlock()
	sortIncidents(out)
	return out, nil
}

func sortIncidents(items []sla.Incident) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].StartedAt.Equal(items[j].StartedAt) {
			return items[i].StartedAt.Before(items[j].StartedAt)
		}
		return items[i].ID < items[j].ID
	})
}

// MeasurementRepository is an append-only in-memory repository.
type MeasurementRepository struct {
	mu         sync.RWMutex
	data       map[string]*sla.Measurement
	keys       map[string]string
	agreements *AgreementRepository
}

// NewMeasurementRepository constructs a standalone repository.
func NewMeasurementRepository() *MeasurementRepository {
	return &MeasurementRepository{
		data: make(map[string]*sla.Measurement),
		keys: make(map[string]string),
	}
}

// NewMeasurementRepositoryFor constructs a repository that references the
// agreements store: measurements need an existing agreement, and agreements
// with measurements cannot be deleted.
func NewMeasurementRepositoryFor(agreements *AgreementRepository) *MeasurementRepository {
	r := NewMeasurementRepository()
	if agreements != nil {
		r.agreements = agreements
		agreements.mu.Lock()
		agreements.measurements = r
		agreements.mu.Unlock()
	}
	return r
}

func versionKey(m *sla.Measurement) string {
	return fmt.Sprintf("%s|%s|%d", m.AgreementID, m.Period().Key(), m.Version)
}

// Create appends a measurement; (agreement, period, version) is unique.
func (r *MeasurementRepository) Create(ctx context.Context, measurement *sla.Measurement) error {
	_ = ctx
	if measurement == nil || measurement.ID == "" {
		return fmt.Errorf("%w: measurement id required", sla.ErrValidation)
	}
	key := versionKey(measurement)
	// lock order: agreements, then measurements
	if r.agreements != nil {
		r.agreements.mu.RLock()
		defer r.agreements.mu.RUnlock()
		if _, ok := r.agreements.data[measurement.AgreementID]; !ok {
			return fmt.Errorf("%w: agreement %s", sla.ErrNotFound, measurement.AgreementID)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[key]; ok {
		return sla.ErrDuplicatePeriod
	}
	if _, ok := r.data[measurement.ID]; ok {
		return sla.ErrDuplicatePeriod
	}
	r.data[measurement.ID] = measurement.Clone()
	r.keys[key] = measurement.ID
	return nil
}

// Get loads a measurement.
func (r *MeasurementRepository) Get(ctx context.Context, id string) (*sla.Measurement, error) {
	_ = ctx
	r.mu.RLock()
	measurement := r.data[id]
	r.mu.RUnlock()
	if measurement == nil {
		return nil, nil
	}
	return measurement.Clone(), nil
}

// Latest returns the highest version for the exact period.
func (r *MeasurementRepository) Latest(ctx context.Context, agreementID string, start, end time.Time) (*sla.Measurement, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *sla.Measurement
	for _, m := range r.data {
		if m.AgreementID != agreementID || !m.PeriodStart.Equal(start) || !m.PeriodEnd.Equal(end) {
			continue
		}
		if latest == nil || m.Version > latest.Version {
			latest = m
		}
	}
	return latest.Clone(), nil
}

// ListByAgreement returns every version, ordered by period then version.
func (r *MeasurementRepository) ListByAgreement(ctx context.Context, agreementID string) ([]sla.Measurement, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]sla.Measurement, 0)
	for _, m := range r.data {
		if m.AgreementID == agreementID {
			out = append(out, *m.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].PeriodStart.Before(out[j].PeriodStart)
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// CountByAgreement returns how many measurements reference the agreement.
func (r *MeasurementRepository) CountByAgreement(ctx context.Context, agreementID string) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, m := range r.data {
		if m.AgreementID == agreementID {
			count++
		}
	}
	return count, nil
}

// TenantDirectory is a static tenant name lookup.
type TenantDirectory struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewTenantDirectory constructs a directory seeded with names.
func NewTenantDirectory(names map[string]string) *TenantDirectory {
	copied := make(map[string]string, len(names))
	for k, v := range names {
		copied[k] = v
	}
	return &TenantDirectory{names: copied}
}

// Put records a tenant name.
func (d *TenantDirectory) Put(tenantID, name string) {
	d.mu.Lock()
	d.names[tenantID] = name
	d.mu.Unlock()
}

// TenantName returns the display name, or ErrNotFound.
func (d *TenantDirectory) TenantName(ctx context.Context, tenantID string) (string, error) {
	_ = ctx
	d.mu.RLock()
	name, ok := d.names[tenantID]
	d.mu.RUnlock()
	if !ok {
		return "", sla.ErrNotFound
	}
	return name, nil
}
