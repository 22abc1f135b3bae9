package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/field-tools/pkg/models"
	"github.com/ekaya-inc/field-tools/pkg/repositories"
)

// Reasons recorded for fields left out of a bulk clone.
const (
	SkipReasonFieldExists  = "field already exists on bundle"
	SkipReasonSourceBundle = "bundle is the source bundle"
)

// BulkFieldCloneRequest selects fields of one bundle and the bundles to clone them to.
type BulkFieldCloneRequest struct {
	EntityType         string
	SourceBundle       string
	FieldNames         []string
	DestinationBundles []string
}

// BulkCloner runs the cloners over several fields and destination bundles.
// It stops at the first failure and returns what completed alongside the error;
// earlier clones are not rolled back.
type BulkCloner interface {
	// CloneFields clones each selected field to each destination bundle,
	// skipping bundles that already have a field of that name.
	CloneFields(ctx context.Context, req BulkFieldCloneRequest) (*models.BulkFieldCloneReport, error)

	// CloneDisplay merges source into the same mode on every destination bundle.
	CloneDisplay(ctx context.Context, source *models.DisplayConfiguration, destBundles []string) (*models.BulkDisplayCloneReport, error)
}

type bulkCloner struct {
	fieldRepo     repositories.FieldRepository
	fieldCloner   FieldCloner
	displayCloner DisplayCloner
	logger        *zap.Logger
}

// NewBulkCloner creates a new BulkCloner.
func NewBulkCloner(
	fieldRepo repositories.FieldRepository,
	fieldCloner FieldCloner,
	displayCloner DisplayCloner,
	logger *zap.Logger,
) BulkCloner {
	return &bulkCloner{
		fieldRepo:     fieldRepo,
		fieldCloner:   fieldCloner,
		displayCloner: displayCloner,
		logger:        logger.Named("bulk_clone"),
	}
}

var _ BulkCloner = (*bulkCloner)(nil)

func (b *bulkCloner) CloneFields(ctx context.Context, req BulkFieldCloneRequest) (*models.BulkFieldCloneReport, error) {
	report := &models.BulkFieldCloneReport{Cloned: []*models.FieldCloneResult{}}

	for _, fieldName := range req.FieldNames {
		source, err := b.fieldRepo.Get(ctx, req.EntityType, req.SourceBundle, fieldName)
		if err != nil {
			return report, fmt.Errorf("failed to load field %s.%s.%s: %w", req.EntityType, req.SourceBundle, fieldName, err)
		}

		for _, destBundle := range req.DestinationBundles {
			if destBundle == req.SourceBundle {
				report.Skipped = append(report.Skipped, models.SkippedFieldClone{
					FieldName: fieldName, Bundle: destBundle, Reason: SkipReasonSourceBundle,
				})
				continue
			}

			existing, err := b.fieldRepo.Query(ctx, models.FieldFilter{
				EntityType: req.EntityType,
				Bundle:     destBundle,
				FieldName:  fieldName,
			})
			if err != nil {
				return report, fmt.Errorf("failed to check field %s on bundle %s: %w", fieldName, destBundle, err)
			}
			if len(existing) > 0 {
				b.logger.Debug("Field already on bundle, skipping",
					zap.String("field", fieldName),
					zap.String("bundle", destBundle))
				report.Skipped = append(report.Skipped, models.SkippedFieldClone{
					FieldName: fieldName, Bundle: destBundle, Reason: SkipReasonFieldExists,
				})
				continue
			}

			result, err := b.fieldCloner.CloneField(ctx, source, req.EntityType, destBundle)
			if result != nil {
				report.Cloned = append(report.Cloned, result)
			}
			if err != nil {
				return report, err
			}
		}
	}

	b.logger.Info("Bulk field clone finished",
		zap.String("entity_type", req.EntityType),
		zap.String("source_bundle", req.SourceBundle),
		zap.Int("cloned", len(report.Cloned)),
		zap.Int("skipped", len(report.Skipped)))

	return report, nil
}

func (b *bulkCloner) CloneDisplay(ctx context.Context, source *models.DisplayConfiguration, destBundles []string) (*models.BulkDisplayCloneReport, error) {
	report := &models.BulkDisplayCloneReport{Displays: []*models.DisplayCloneReport{}}

	for _, destBundle := range destBundles {
		result, err := b.displayCloner.CloneDisplay(ctx, source, destBundle)
		if err != nil {
			return report, err
		}
		report.Displays = append(report.Displays, result)
	}

	return report, nil
}
