package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/field-tools/pkg/apperrors"
	"github.com/ekaya-inc/field-tools/pkg/models"
)

// DisplayRepository provides data access for form and view display configurations.
type DisplayRepository interface {
	// Get loads one display. Returns apperrors.ErrNotFound when it does not exist.
	Get(ctx context.Context, key models.DisplayKey) (*models.DisplayConfiguration, error)

	// Query returns every display of one context on one bundle, ordered by mode.
	Query(ctx context.Context, filter models.DisplayFilter) ([]*models.DisplayConfiguration, error)

	// Save overwrites the whole display (components and extensions) in one write,
	// creating it when its key is new.
	Save(ctx context.Context, display *models.DisplayConfiguration) error
}

type displayRepository struct{}

// NewDisplayRepository creates a new DisplayRepository.
func NewDisplayRepository() DisplayRepository {
	return &displayRepository{}
}

var _ DisplayRepository = (*displayRepository)(nil)

const displayColumns = `id, entity_type, bundle, mode, context, status, components, extensions, created_at, updated_at`

func (r *displayRepository) Get(ctx context.Context, key models.DisplayKey) (*models.DisplayConfiguration, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + displayColumns + `
		FROM display_configs
		WHERE entity_type = $1 AND bundle = $2 AND mode = $3 AND context = $4`

	display, err := scanDisplay(conn.QueryRow(ctx, query, key.EntityType, key.Bundle, key.Mode, string(key.Context)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return display, nil
}

func (r *displayRepository) Query(ctx context.Context, filter models.DisplayFilter) ([]*models.DisplayConfiguration, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	var where whereClause
	where.eq("entity_type", filter.EntityType)
	where.eq("bundle", filter.Bundle)
	where.eq("context", string(filter.Context))

	query := `SELECT ` + displayColumns + ` FROM display_configs` + where.String() +
		` ORDER BY entity_type, bundle, context, mode`

	rows, err := conn.Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query display configs: %w", err)
	}
	defer rows.Close()

	var displays []*models.DisplayConfiguration
	for rows.Next() {
		display, err := scanDisplay(rows)
		if err != nil {
			return nil, err
		}
		displays = append(displays, display)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate display configs: %w", err)
	}
	return displays, nil
}

func (r *displayRepository) Save(ctx context.Context, display *models.DisplayConfiguration) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	if !display.Context.IsValid() {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidDisplayContext, display.Context)
	}
	if display.ID == uuid.Nil {
		display.ID = uuid.New()
	}

	components := display.Components
	if components == nil {
		components = []models.Component{}
	}
	componentsJSON, err := json.Marshal(components)
	if err != nil {
		return fmt.Errorf("failed to encode components of %s: %w", display.Key(), err)
	}
	extensionsJSON, err := json.Marshal(display.Extensions)
	if err != nil {
		return fmt.Errorf("failed to encode extensions of %s: %w", display.Key(), err)
	}

	query := `
		INSERT INTO display_configs (id, entity_type, bundle, mode, context, status, components, extensions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (entity_type, bundle, mode, context) DO UPDATE SET
			status = EXCLUDED.status,
			components = EXCLUDED.components,
			extensions = EXCLUDED.extensions,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err = conn.QueryRow(ctx, query,
		display.ID,
		display.EntityType,
		display.Bundle,
		display.Mode,
		string(display.Context),
		display.Status,
		componentsJSON,
		extensionsJSON,
	).Scan(&display.ID, &display.CreatedAt, &display.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save display config %s: %w", display.Key(), err)
	}
	return nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func scanDisplay(row pgx.Row) (*models.DisplayConfiguration, error) {
	var d models.DisplayConfiguration
	var displayContext string
	var components, extensions []byte

	err := row.Scan(
		&d.ID,
		&d.EntityType,
		&d.Bundle,
		&d.Mode,
		&displayContext,
		&d.Status,
		&components,
		&extensions,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan display config: %w", err)
	}
	d.Context = models.DisplayContext(displayContext)

	if err := unmarshalJSONB(components, &d.Components); err != nil {
		return nil, fmt.Errorf("failed to decode components of %s: %w", d.Key(), err)
	}
	if err := unmarshalJSONB(extensions, &d.Extensions); err != nil {
		return nil, fmt.Errorf("failed to decode extensions of %s: %w", d.Key(), err)
	}
	return &d, nil
}
