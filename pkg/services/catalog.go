package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/field-tools/pkg/apperrors"
	"github.com/ekaya-inc/field-tools/pkg/models"
	"github.com/ekaya-inc/field-tools/pkg/repositories"
)

// ReasonFieldOnBundle explains why a clone target is disabled.
const ReasonFieldOnBundle = "The field is already on this bundle."

// CatalogService is the read side used before and around cloning: it loads
// sources and lists what an operator can pick.
type CatalogService interface {
	// GetField returns one field definition or apperrors.ErrNotFound.
	GetField(ctx context.Context, entityType, bundle, fieldName string) (*models.FieldDefinition, error)

	// GetDisplay returns one display or apperrors.ErrNotFound.
	GetDisplay(ctx context.Context, key models.DisplayKey) (*models.DisplayConfiguration, error)

	// ListBundleFields returns the fields of a bundle sorted by label.
	ListBundleFields(ctx context.Context, entityType, bundle string) ([]*models.FieldDefinition, error)

	// ListCloneTargets returns every other bundle of the field's entity type,
	// sorted by label. Bundles that already have the field are disabled.
	ListCloneTargets(ctx context.Context, field *models.FieldDefinition) ([]models.CloneTarget, error)
}

type catalogService struct {
	fieldRepo   repositories.FieldRepository
	displayRepo repositories.DisplayRepository
	bundleRepo  repositories.BundleRepository
	logger      *zap.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(
	fieldRepo repositories.FieldRepository,
	displayRepo repositories.DisplayRepository,
	bundleRepo repositories.BundleRepository,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		fieldRepo:   fieldRepo,
		displayRepo: displayRepo,
		bundleRepo:  bundleRepo,
		logger:      logger.Named("catalog"),
	}
}

var _ CatalogService = (*catalogService)(nil)

func (s *catalogService) GetField(ctx context.Context, entityType, bundle, fieldName string) (*models.FieldDefinition, error) {
	field, err := s.fieldRepo.Get(ctx, entityType, bundle, fieldName)
	if err != nil {
		return nil, fmt.Errorf("failed to load field %s.%s.%s: %w", entityType, bundle, fieldName, err)
	}
	return field, nil
}

func (s *catalogService) GetDisplay(ctx context.Context, key models.DisplayKey) (*models.DisplayConfiguration, error) {
	if !key.Context.IsValid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidDisplayContext, key.Context)
	}
	display, err := s.displayRepo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load display %s: %w", key, err)
	}
	return display, nil
}

func (s *catalogService) ListCloneTargets(ctx context.Context, field *models.FieldDefinition) ([]models.CloneTarget, error) {
	bundles, err := s.bundleRepo.List(ctx, field.EntityType)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles of %s: %w", field.EntityType, err)
	}

	sameName, err := s.fieldRepo.Query(ctx, models.FieldFilter{
		EntityType: field.EntityType,
		FieldName:  field.FieldName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find bundles using field %s: %w", field.FieldName, err)
	}
	hasField := make(map[string]bool, len(sameName))
	for _, f := range sameName {
		hasField[f.Bundle] = true
	}

	targets := make([]models.CloneTarget, 0, len(bundles))
	for _, b := range bundles {
		if b.Bundle == field.Bundle {
			continue
		}
		target := models.CloneTarget{Bundle: b.Bundle, Label: b.Label}
		if target.Label == "" {
			target.Label = b.Bundle
		}
		if hasField[b.Bundle] {
			target.Disabled = true
			target.Reason = ReasonFieldOnBundle
		}
		targets = append(targets, target)
	}

	sort.SliceStable(targets, func(i, j int) bool {
		return naturalLessFold(targets[i].Label, targets[j].Label)
	})

	s.logger.Debug("Listed clone targets",
		zap.String("field", field.ConfigName()),
		zap.Int("targets", len(targets)))

	return targets, nil
}

func (s *catalogService) ListBundleFields(ctx context.Context, entityType, bundle string) ([]*models.FieldDefinition, error) {
	fields, err := s.fieldRepo.Query(ctx, models.FieldFilter{EntityType: entityType, Bundle: bundle})
	if err != nil {
		return nil, fmt.Errorf("failed to list fields of %s.%s: %w", entityType, bundle, err)
	}

	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Label != fields[j].Label {
			return fields[i].Label < fields[j].Label
		}
		return fields[i].FieldName < fields[j].FieldName
	})
	return fields, nil
}
