package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/field-tools/pkg/apperrors"
	"github.com/ekaya-inc/field-tools/pkg/models"
	"github.com/ekaya-inc/field-tools/pkg/repositories"
)

// FieldCloner duplicates field definitions onto other bundles.
type FieldCloner interface {
	// CloneField saves a copy of source on destBundle, sharing its storage, and
	// then synchronizes the field's form and view displays onto destBundle.
	//
	// The caller must ensure destBundle does not already have the field; this
	// is not re-checked here. An empty destEntityType means the source's
	// entity type. Other entity types are rejected before any write.
	CloneField(ctx context.Context, source *models.FieldDefinition, destEntityType, destBundle string) (*models.FieldCloneResult, error)
}

type fieldCloner struct {
	fieldRepo    repositories.FieldRepository
	synchronizer DisplaySynchronizer
	logger       *zap.Logger
}

// NewFieldCloner creates a new FieldCloner.
func NewFieldCloner(
	fieldRepo repositories.FieldRepository,
	synchronizer DisplaySynchronizer,
	logger *zap.Logger,
) FieldCloner {
	return &fieldCloner{
		fieldRepo:    fieldRepo,
		synchronizer: synchronizer,
		logger:       logger.Named("field_cloner"),
	}
}

var _ FieldCloner = (*fieldCloner)(nil)

func (c *fieldCloner) CloneField(ctx context.Context, source *models.FieldDefinition, destEntityType, destBundle string) (*models.FieldCloneResult, error) {
	if destEntityType == "" {
		destEntityType = source.EntityType
	}
	if destEntityType != source.EntityType {
		return nil, fmt.Errorf("%w: %s to %s", apperrors.ErrCrossEntityTypeUnsupported, source.EntityType, destEntityType)
	}
	if destBundle == "" {
		return nil, fmt.Errorf("%w: no destination bundle for %s", apperrors.ErrMissingBundle, source.ConfigName())
	}

	clone := source.Duplicate(destBundle)
	if err := c.fieldRepo.Save(ctx, clone); err != nil {
		c.logger.Error("Failed to save cloned field",
			zap.String("field", source.ConfigName()),
			zap.String("destination_bundle", destBundle),
			zap.Error(err))
		return nil, fmt.Errorf("failed to clone field %s to bundle %s: %w", source.ConfigName(), destBundle, err)
	}

	result := &models.FieldCloneResult{Field: clone}
	for _, displayContext := range models.DisplayContexts {
		report, err := c.synchronizer.Sync(ctx, displayContext, source, destEntityType, destBundle)
		if report != nil {
			result.Display = append(result.Display, report)
		}
		if err != nil {
			return result, err
		}
	}

	c.logger.Info("Field cloned",
		zap.String("field", source.ConfigName()),
		zap.String("destination", clone.ConfigName()),
		zap.String("storage_id", clone.StorageID.String()))

	return result, nil
}
