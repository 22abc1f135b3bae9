package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/field-tools/pkg/models"
)

// BundleRepository provides data access for bundle labels.
type BundleRepository interface {
	List(ctx context.Context, entityType string) ([]*models.Bundle, error)
	Save(ctx context.Context, bundle *models.Bundle) error
}

type bundleRepository struct{}

// NewBundleRepository creates a new BundleRepository.
func NewBundleRepository() BundleRepository {
	return &bundleRepository{}
}

var _ BundleRepository = (*bundleRepository)(nil)

func (r *bundleRepository) List(ctx context.Context, entityType string) ([]*models.Bundle, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT entity_type, bundle, label, created_at
		FROM bundles
		WHERE entity_type = $1
		ORDER BY bundle`

	rows, err := conn.Query(ctx, query, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to query bundles: %w", err)
	}
	defer rows.Close()

	var bundles []*models.Bundle
	for rows.Next() {
		var b models.Bundle
		if err := rows.Scan(&b.EntityType, &b.Bundle, &b.Label, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bundle: %w", err)
		}
		bundles = append(bundles, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bundles: %w", err)
	}
	return bundles, nil
}

func (r *bundleRepository) Save(ctx context.Context, bundle *models.Bundle) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO bundles (entity_type, bundle, label)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_type, bundle) DO UPDATE SET label = EXCLUDED.label
		RETURNING created_at`

	if err := conn.QueryRow(ctx, query, bundle.EntityType, bundle.Bundle, bundle.Label).Scan(&bundle.CreatedAt); err != nil {
		return fmt.Errorf("failed to save bundle %s.%s: %w", bundle.EntityType, bundle.Bundle, err)
	}
	return nil
}
