package handlers

import (
	"context"
	"net/http"

	"github.com/ekaya-inc/field-tools/pkg/apperrors"
	"github.com/ekaya-inc/field-tools/pkg/models"
	"github.com/ekaya-inc/field-tools/pkg/services"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockCatalogService implements services.CatalogService for handler tests.
type mockCatalogService struct {
	fields   map[string]*models.FieldDefinition // keyed by ConfigName()
	displays map[models.DisplayKey]*models.DisplayConfiguration
	targets  []models.CloneTarget
	listErr  error

	lastTargetField *models.FieldDefinition
}

func newMockCatalogService() *mockCatalogService {
	return &mockCatalogService{
		fields:   make(map[string]*models.FieldDefinition),
		displays: make(map[models.DisplayKey]*models.DisplayConfiguration),
	}
}

func (m *mockCatalogService) GetField(ctx context.Context, entityType, bundle, fieldName string) (*models.FieldDefinition, error) {
	f, ok := m.fields[entityType+"."+bundle+"."+fieldName]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return f, nil
}

func (m *mockCatalogService) GetDisplay(ctx context.Context, key models.DisplayKey) (*models.DisplayConfiguration, error) {
	d, ok := m.displays[key]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return d, nil
}

func (m *mockCatalogService) ListBundleFields(ctx context.Context, entityType, bundle string) ([]*models.FieldDefinition, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var fields []*models.FieldDefinition
	for _, f := range m.fields {
		if f.EntityType == entityType && f.Bundle == bundle {
			fields = append(fields, f)
		}
	}
	return fields, nil
}

func (m *mockCatalogService) ListCloneTargets(ctx context.Context, field *models.FieldDefinition) ([]models.CloneTarget, error) {
	m.lastTargetField = field
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.targets, nil
}

// mockFieldCloner implements services.FieldCloner for handler tests.
type mockFieldCloner struct {
	result *models.FieldCloneResult
	err    error

	calls []string // "entityType/bundle" of each destination
}

func (m *mockFieldCloner) CloneField(ctx context.Context, source *models.FieldDefinition, destEntityType, destBundle string) (*models.FieldCloneResult, error) {
	m.calls = append(m.calls, destEntityType+"/"+destBundle)
	if m.err != nil {
		return m.result, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &models.FieldCloneResult{Field: source.Duplicate(destBundle)}, nil
}

// mockBulkCloner implements services.BulkCloner for handler tests.
type mockBulkCloner struct {
	fieldReport   *models.BulkFieldCloneReport
	displayReport *models.BulkDisplayCloneReport
	err           error

	lastFieldRequest  services.BulkFieldCloneRequest
	lastDisplaySource *models.DisplayConfiguration
	lastDestBundles   []string
}

func (m *mockBulkCloner) CloneFields(ctx context.Context, req services.BulkFieldCloneRequest) (*models.BulkFieldCloneReport, error) {
	m.lastFieldRequest = req
	report := m.fieldReport
	if report == nil {
		report = &models.BulkFieldCloneReport{Cloned: []*models.FieldCloneResult{}}
	}
	return report, m.err
}

func (m *mockBulkCloner) CloneDisplay(ctx context.Context, source *models.DisplayConfiguration, destBundles []string) (*models.BulkDisplayCloneReport, error) {
	m.lastDisplaySource = source
	m.lastDestBundles = destBundles
	report := m.displayReport
	if report == nil {
		report = &models.BulkDisplayCloneReport{Displays: []*models.DisplayCloneReport{}}
	}
	return report, m.err
}

// passthroughScope stands in for database.WithScopeContext.
func passthroughScope(next http.HandlerFunc) http.HandlerFunc {
	return next
}
