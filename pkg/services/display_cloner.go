package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/field-tools/pkg/apperrors"
	"github.com/ekaya-inc/field-tools/pkg/models"
	"github.com/ekaya-inc/field-tools/pkg/repositories"
)

// DisplayCloner merges a whole display into the same mode on another bundle.
type DisplayCloner interface {
	// CloneDisplay copies every component and field group of source onto the
	// existing display of the same mode and context on destBundle:
	//   - fields missing from destBundle are ignored;
	//   - fields on both have their destination settings overwritten;
	//   - destination-only components are left untouched;
	//   - groups keep only children present on destBundle and are dropped when
	//     none remain.
	// The destination is saved once. When it does not exist the call fails
	// with apperrors.ErrMissingDestinationDisplay and nothing is written.
	CloneDisplay(ctx context.Context, source *models.DisplayConfiguration, destBundle string) (*models.DisplayCloneReport, error)
}

type displayCloner struct {
	displayRepo repositories.DisplayRepository
	fieldIndex  BundleFieldIndex
	logger      *zap.Logger
}

// NewDisplayCloner creates a new DisplayCloner.
func NewDisplayCloner(
	displayRepo repositories.DisplayRepository,
	fieldIndex BundleFieldIndex,
	logger *zap.Logger,
) DisplayCloner {
	return &displayCloner{
		displayRepo: displayRepo,
		fieldIndex:  fieldIndex,
		logger:      logger.Named("display_cloner"),
	}
}

var _ DisplayCloner = (*displayCloner)(nil)

func (c *displayCloner) CloneDisplay(ctx context.Context, source *models.DisplayConfiguration, destBundle string) (*models.DisplayCloneReport, error) {
	if !source.Context.IsValid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidDisplayContext, source.Context)
	}

	destKey := models.DisplayKey{
		EntityType: source.EntityType,
		Bundle:     destBundle,
		Mode:       source.Mode,
		Context:    source.Context,
	}

	dest, err := c.displayRepo.Get(ctx, destKey)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrMissingDestinationDisplay, destKey)
		}
		return nil, fmt.Errorf("failed to load display %s: %w", destKey, err)
	}

	destFields, err := c.fieldIndex.FieldsOf(ctx, source.EntityType, destBundle)
	if err != nil {
		return nil, err
	}

	report := &models.DisplayCloneReport{Destination: destKey, CopiedComponents: []string{}}

	for _, component := range source.Components {
		if !destFields.Has(component.FieldName) {
			report.SkippedFields = append(report.SkippedFields, component.FieldName)
			continue
		}
		dest.SetComponent(component.FieldName, component.ComponentSettings.Clone())
		report.CopiedComponents = append(report.CopiedComponents, component.FieldName)
	}

	for _, group := range source.Extensions.FieldGroups {
		children := make([]string, 0, len(group.Children))
		for _, child := range group.Children {
			if destFields.Has(child) {
				children = append(children, child)
			}
		}
		if len(children) == 0 {
			report.SkippedGroups = append(report.SkippedGroups, group.GroupID)
			continue
		}

		attached := group.Clone()
		attached.Children = children
		dest.SetFieldGroup(attached)
		report.AttachedGroups = append(report.AttachedGroups, group.GroupID)
	}

	if err := c.displayRepo.Save(ctx, dest); err != nil {
		c.logger.Error("Failed to save cloned display",
			zap.String("display", destKey.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to save display %s: %w", destKey, err)
	}

	c.logger.Info("Display cloned",
		zap.String("source", source.Key().String()),
		zap.String("destination", destKey.String()),
		zap.Int("copied_components", len(report.CopiedComponents)),
		zap.Int("skipped_fields", len(report.SkippedFields)),
		zap.Int("attached_groups", len(report.AttachedGroups)),
		zap.Int("skipped_groups", len(report.SkippedGroups)))

	return report, nil
}
