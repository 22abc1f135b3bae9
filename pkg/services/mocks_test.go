package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ekaya-inc/field-tools/pkg/apperrors"
	"github.com/ekaya-inc/field-tools/pkg/models"
)

// ============================================================================
// In-memory store shared by the repository mocks
// ============================================================================

// memStore keeps copies of everything saved so tests can check that callers
// never mutate stored values through returned pointers.
type memStore struct {
	fields   map[string]*models.FieldDefinition // keyed by ConfigName()
	storages map[string]*models.FieldStorage    // keyed by entity_type.field_name
	displays map[models.DisplayKey]*models.DisplayConfiguration
	bundles  map[string][]*models.Bundle // keyed by entity type

	fieldSaves   int
	displaySaves int
}

func newMemStore() *memStore {
	return &memStore{
		fields:   make(map[string]*models.FieldDefinition),
		storages: make(map[string]*models.FieldStorage),
		displays: make(map[models.DisplayKey]*models.DisplayConfiguration),
		bundles:  make(map[string][]*models.Bundle),
	}
}

func (s *memStore) addBundle(entityType, bundle, label string) {
	s.bundles[entityType] = append(s.bundles[entityType], &models.Bundle{EntityType: entityType, Bundle: bundle, Label: label})
}

func (s *memStore) addField(f *models.FieldDefinition) *models.FieldDefinition {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	storageKey := f.EntityType + "." + f.FieldName
	storage, ok := s.storages[storageKey]
	if !ok {
		storage = &models.FieldStorage{ID: uuid.New(), EntityType: f.EntityType, FieldName: f.FieldName, Type: "string", Cardinality: 1}
		s.storages[storageKey] = storage
	}
	f.StorageID = storage.ID
	s.fields[f.ConfigName()] = copyField(f)
	return f
}

func (s *memStore) addDisplay(d *models.DisplayConfiguration) *models.DisplayConfiguration {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	s.displays[d.Key()] = d.Clone()
	return d
}

func (s *memStore) display(key models.DisplayKey) *models.DisplayConfiguration {
	d, ok := s.displays[key]
	if !ok {
		return nil
	}
	return d.Clone()
}

func copyField(f *models.FieldDefinition) *models.FieldDefinition {
	dup := f.Duplicate(f.Bundle)
	dup.ID = f.ID
	dup.CreatedAt = f.CreatedAt
	dup.UpdatedAt = f.UpdatedAt
	return dup
}

// ============================================================================
// Field repository mock
// ============================================================================

type mockFieldRepo struct {
	store    *memStore
	queryErr error
	saveErr  error
	getErr   error
}

func (m *mockFieldRepo) Get(ctx context.Context, entityType, bundle, fieldName string) (*models.FieldDefinition, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	f, ok := m.store.fields[entityType+"."+bundle+"."+fieldName]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyField(f), nil
}

func (m *mockFieldRepo) Query(ctx context.Context, filter models.FieldFilter) ([]*models.FieldDefinition, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var result []*models.FieldDefinition
	for _, f := range m.store.fields {
		if filter.EntityType != "" && f.EntityType != filter.EntityType {
			continue
		}
		if filter.Bundle != "" && f.Bundle != filter.Bundle {
			continue
		}
		if filter.FieldName != "" && f.FieldName != filter.FieldName {
			continue
		}
		result = append(result, copyField(f))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ConfigName() < result[j].ConfigName() })
	return result, nil
}

func (m *mockFieldRepo) Save(ctx context.Context, field *models.FieldDefinition) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	name := field.ConfigName()
	if existing, ok := m.store.fields[name]; ok && existing.ID != field.ID {
		return fmt.Errorf("%w: field %s already exists", apperrors.ErrConflict, name)
	}
	if field.ID == uuid.Nil {
		field.ID = uuid.New()
	}
	m.store.fields[name] = copyField(field)
	m.store.fieldSaves++
	return nil
}

func (m *mockFieldRepo) GetStorage(ctx context.Context, entityType, fieldName string) (*models.FieldStorage, error) {
	storage, ok := m.store.storages[entityType+"."+fieldName]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	dup := *storage
	return &dup, nil
}

func (m *mockFieldRepo) SaveStorage(ctx context.Context, storage *models.FieldStorage) error {
	if storage.ID == uuid.Nil {
		storage.ID = uuid.New()
	}
	dup := *storage
	m.store.storages[storage.EntityType+"."+storage.FieldName] = &dup
	return nil
}

// ============================================================================
// Display repository mock
// ============================================================================

type mockDisplayRepo struct {
	store    *memStore
	queryErr error
	// saveErrAfter fails every save once this many saves have succeeded; <0 disables.
	saveErrAfter int
	saveErr      error
}

func newMockDisplayRepo(store *memStore) *mockDisplayRepo {
	return &mockDisplayRepo{store: store, saveErrAfter: -1}
}

func (m *mockDisplayRepo) Get(ctx context.Context, key models.DisplayKey) (*models.DisplayConfiguration, error) {
	d, ok := m.store.displays[key]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return d.Clone(), nil
}

func (m *mockDisplayRepo) Query(ctx context.Context, filter models.DisplayFilter) ([]*models.DisplayConfiguration, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var result []*models.DisplayConfiguration
	for _, d := range m.store.displays {
		if d.EntityType == filter.EntityType && d.Bundle == filter.Bundle && d.Context == filter.Context {
			result = append(result, d.Clone())
		}
	}
	// Unordered on purpose: callers must not depend on store order.
	return result, nil
}

func (m *mockDisplayRepo) Save(ctx context.Context, display *models.DisplayConfiguration) error {
	if m.saveErrAfter >= 0 && m.store.displaySaves >= m.saveErrAfter {
		return m.saveErr
	}
	if display.ID == uuid.Nil {
		display.ID = uuid.New()
	}
	m.store.displays[display.Key()] = display.Clone()
	m.store.displaySaves++
	return nil
}

// ============================================================================
// Bundle repository mock
// ============================================================================

type mockBundleRepo struct {
	store   *memStore
	listErr error
}

func (m *mockBundleRepo) List(ctx context.Context, entityType string) ([]*models.Bundle, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	bundles := make([]*models.Bundle, 0, len(m.store.bundles[entityType]))
	for _, b := range m.store.bundles[entityType] {
		dup := *b
		bundles = append(bundles, &dup)
	}
	return bundles, nil
}

func (m *mockBundleRepo) Save(ctx context.Context, bundle *models.Bundle) error {
	m.store.addBundle(bundle.EntityType, bundle.Bundle, bundle.Label)
	return nil
}

// ============================================================================
// Fixtures
// ============================================================================

// articlePageFixture builds node bundles "article" and "page". article has
// field_subtitle shown by formatter "X" in teaser and hidden in full. page has
// no field_subtitle but its full display still carries a stale component.
func articlePageFixture() *memStore {
	store := newMemStore()
	store.addBundle("node", "article", "Article")
	store.addBundle("node", "page", "Basic page")

	store.addField(&models.FieldDefinition{
		EntityType: "node", Bundle: "article", FieldName: "field_subtitle",
		Label: "Subtitle", Settings: map[string]any{"max_length": 255},
	})
	store.addField(&models.FieldDefinition{EntityType: "node", Bundle: "article", FieldName: "body", Label: "Body"})
	store.addField(&models.FieldDefinition{EntityType: "node", Bundle: "page", FieldName: "body", Label: "Body"})

	store.addDisplay(&models.DisplayConfiguration{
		EntityType: "node", Bundle: "article", Mode: "teaser", Context: models.DisplayContextView, Status: true,
		Components: []models.Component{
			{FieldName: "field_subtitle", ComponentSettings: models.ComponentSettings{Type: "X", Weight: 2, Label: "hidden", Settings: map[string]any{"trim": 100}}},
			{FieldName: "body", ComponentSettings: models.ComponentSettings{Type: "text_summary", Weight: 0}},
		},
	})
	store.addDisplay(&models.DisplayConfiguration{
		EntityType: "node", Bundle: "article", Mode: "full", Context: models.DisplayContextView, Status: true,
		Components: []models.Component{
			{FieldName: "body", ComponentSettings: models.ComponentSettings{Type: "text_default", Weight: 0}},
		},
	})
	store.addDisplay(&models.DisplayConfiguration{
		EntityType: "node", Bundle: "page", Mode: "teaser", Context: models.DisplayContextView, Status: true,
		Components: []models.Component{
			{FieldName: "body", ComponentSettings: models.ComponentSettings{Type: "text_trimmed", Weight: 0}},
		},
	})
	store.addDisplay(&models.DisplayConfiguration{
		EntityType: "node", Bundle: "page", Mode: "full", Context: models.DisplayContextView, Status: true,
		Components: []models.Component{
			{FieldName: "body", ComponentSettings: models.ComponentSettings{Type: "text_default", Weight: 0}},
			// Stale component left from an earlier field of the same name.
			{FieldName: "field_subtitle", ComponentSettings: models.ComponentSettings{Type: "Y", Weight: 5}},
		},
	})
	return store
}

func viewKey(bundle, mode string) models.DisplayKey {
	return models.DisplayKey{EntityType: "node", Bundle: bundle, Mode: mode, Context: models.DisplayContextView}
}

func formKey(bundle, mode string) models.DisplayKey {
	return models.DisplayKey{EntityType: "node", Bundle: bundle, Mode: mode, Context: models.DisplayContextForm}
}
