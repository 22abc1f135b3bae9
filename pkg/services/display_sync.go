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

// DisplaySynchronizer copies one field's component settings between displays
// of the same mode on two bundles.
type DisplaySynchronizer interface {
	// Sync matches the field's source displays of displayContext with the
	// destination bundle's displays by mode name. For each match the
	// destination either receives a copy of the source component or loses its
	// own component when the field is hidden on the source, and is saved right
	// away. Unmatched source modes are skipped; no display is created.
	//
	// An empty destEntityType means the field's own entity type.
	//
	// Writes are not atomic across modes: a failure leaves earlier modes saved.
	Sync(ctx context.Context, displayContext models.DisplayContext, field *models.FieldDefinition, destEntityType, destBundle string) (*models.DisplaySyncReport, error)
}

type displaySynchronizer struct {
	displayRepo repositories.DisplayRepository
	logger      *zap.Logger
}

// NewDisplaySynchronizer creates a new DisplaySynchronizer.
func NewDisplaySynchronizer(displayRepo repositories.DisplayRepository, logger *zap.Logger) DisplaySynchronizer {
	return &displaySynchronizer{
		displayRepo: displayRepo,
		logger:      logger.Named("display_sync"),
	}
}

var _ DisplaySynchronizer = (*displaySynchronizer)(nil)

func (s *displaySynchronizer) Sync(ctx context.Context, displayContext models.DisplayContext, field *models.FieldDefinition, destEntityType, destBundle string) (*models.DisplaySyncReport, error) {
	if !displayContext.IsValid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidDisplayContext, displayContext)
	}
	if destEntityType == "" {
		destEntityType = field.EntityType
	}
	if destBundle == "" {
		return nil, fmt.Errorf("%w: no destination bundle for %s", apperrors.ErrMissingBundle, field.ConfigName())
	}

	sources, err := s.displayRepo.Query(ctx, models.DisplayFilter{
		EntityType: field.EntityType,
		Bundle:     field.Bundle,
		Context:    displayContext,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s displays of %s.%s: %w", displayContext, field.EntityType, field.Bundle, err)
	}

	destinations, err := s.displayRepo.Query(ctx, models.DisplayFilter{
		EntityType: destEntityType,
		Bundle:     destBundle,
		Context:    displayContext,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s displays of %s.%s: %w", displayContext, destEntityType, destBundle, err)
	}

	destByMode := make(map[string]*models.DisplayConfiguration, len(destinations))
	for _, d := range destinations {
		destByMode[d.Mode] = d
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Mode < sources[j].Mode })

	report := &models.DisplaySyncReport{Context: displayContext, Updated: []models.ModeSync{}}
	for _, source := range sources {
		dest, ok := destByMode[source.Mode]
		if !ok {
			s.logger.Debug("No destination display for mode, skipping",
				zap.String("context", string(displayContext)),
				zap.String("mode", source.Mode),
				zap.String("bundle", destBundle))
			report.Skipped = append(report.Skipped, source.Mode)
			continue
		}

		action := models.SyncActionHidden
		if settings, visible := source.Component(field.FieldName); visible {
			dest.SetComponent(field.FieldName, settings.Clone())
			action = models.SyncActionCopied
		} else {
			dest.RemoveComponent(field.FieldName)
		}

		if err := s.displayRepo.Save(ctx, dest); err != nil {
			s.logger.Error("Failed to save synchronized display",
				zap.String("display", dest.Key().String()),
				zap.String("field", field.FieldName),
				zap.Error(err))
			return report, fmt.Errorf("failed to save display %s: %w", dest.Key(), err)
		}

		report.Updated = append(report.Updated, models.ModeSync{Mode: source.Mode, Action: action})
	}

	s.logger.Info("Field display synchronized",
		zap.String("field", field.ConfigName()),
		zap.String("context", string(displayContext)),
		zap.String("destination_bundle", destBundle),
		zap.Int("updated", len(report.Updated)),
		zap.Int("skipped", len(report.Skipped)))

	return report, nil
}
