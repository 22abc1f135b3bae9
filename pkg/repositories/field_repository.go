package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/field-tools/pkg/apperrors"
	"github.com/ekaya-inc/field-tools/pkg/models"
)

// FieldRepository provides data access for field definitions and their shared storages.
type FieldRepository interface {
	// Get loads the definition of fieldName on (entityType, bundle).
	// Returns apperrors.ErrNotFound when the bundle has no such field.
	Get(ctx context.Context, entityType, bundle, fieldName string) (*models.FieldDefinition, error)

	// Query returns every definition matching all non-empty filter members.
	Query(ctx context.Context, filter models.FieldFilter) ([]*models.FieldDefinition, error)

	// Save writes the whole definition. A zero ID inserts a new row; a
	// definition whose name already exists on the bundle yields apperrors.ErrConflict.
	Save(ctx context.Context, field *models.FieldDefinition) error

	GetStorage(ctx context.Context, entityType, fieldName string) (*models.FieldStorage, error)

	// SaveStorage upserts a storage by (entity_type, field_name) and sets its ID.
	SaveStorage(ctx context.Context, storage *models.FieldStorage) error
}

type fieldRepository struct{}

// NewFieldRepository creates a new FieldRepository.
func NewFieldRepository() FieldRepository {
	return &fieldRepository{}
}

var _ FieldRepository = (*fieldRepository)(nil)

const fieldColumns = `id, storage_id, entity_type, bundle, field_name, label, description,
	required, default_value, settings, created_at, updated_at`

func (r *fieldRepository) Get(ctx context.Context, entityType, bundle, fieldName string) (*models.FieldDefinition, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + fieldColumns + `
		FROM field_configs
		WHERE entity_type = $1 AND bundle = $2 AND field_name = $3`

	field, err := scanField(conn.QueryRow(ctx, query, entityType, bundle, fieldName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return field, nil
}

func (r *fieldRepository) Query(ctx context.Context, filter models.FieldFilter) ([]*models.FieldDefinition, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	var where whereClause
	where.eq("entity_type", filter.EntityType)
	where.eq("bundle", filter.Bundle)
	where.eq("field_name", filter.FieldName)

	query := `SELECT ` + fieldColumns + ` FROM field_configs` + where.String() +
		` ORDER BY entity_type, bundle, field_name`

	rows, err := conn.Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query field configs: %w", err)
	}
	defer rows.Close()

	var fields []*models.FieldDefinition
	for rows.Next() {
		field, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate field configs: %w", err)
	}
	return fields, nil
}

func (r *fieldRepository) Save(ctx context.Context, field *models.FieldDefinition) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	if field.ID == uuid.Nil {
		field.ID = uuid.New()
	}

	defaultValue, err := jsonbValue(field.DefaultValue)
	if err != nil {
		return fmt.Errorf("failed to encode default value: %w", err)
	}
	settings, err := jsonbValue(field.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode field settings: %w", err)
	}

	query := `
		INSERT INTO field_configs (
			id, storage_id, entity_type, bundle, field_name, label, description,
			required, default_value, settings
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			storage_id = EXCLUDED.storage_id,
			bundle = EXCLUDED.bundle,
			label = EXCLUDED.label,
			description = EXCLUDED.description,
			required = EXCLUDED.required,
			default_value = EXCLUDED.default_value,
			settings = EXCLUDED.settings,
			updated_at = now()
		RETURNING created_at, updated_at`

	err = conn.QueryRow(ctx, query,
		field.ID,
		field.StorageID,
		field.EntityType,
		field.Bundle,
		field.FieldName,
		field.Label,
		field.Description,
		field.Required,
		defaultValue,
		settings,
	).Scan(&field.CreatedAt, &field.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: field %s already exists", apperrors.ErrConflict, field.ConfigName())
		}
		return fmt.Errorf("failed to save field config %s: %w", field.ConfigName(), err)
	}

	return nil
}

func (r *fieldRepository) GetStorage(ctx context.Context, entityType, fieldName string) (*models.FieldStorage, error) {
	conn, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, entity_type, field_name, type, cardinality, settings, created_at, updated_at
		FROM field_storage_configs
		WHERE entity_type = $1 AND field_name = $2`

	var s models.FieldStorage
	var settings []byte
	err = conn.QueryRow(ctx, query, entityType, fieldName).Scan(
		&s.ID,
		&s.EntityType,
		&s.FieldName,
		&s.Type,
		&s.Cardinality,
		&settings,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get field storage %s.%s: %w", entityType, fieldName, err)
	}
	if err := unmarshalJSONB(settings, &s.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode field storage settings: %w", err)
	}
	return &s, nil
}

func (r *fieldRepository) SaveStorage(ctx context.Context, storage *models.FieldStorage) error {
	conn, err := querier(ctx)
	if err != nil {
		return err
	}

	if storage.ID == uuid.Nil {
		storage.ID = uuid.New()
	}

	settings, err := jsonbValue(storage.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode storage settings: %w", err)
	}

	query := `
		INSERT INTO field_storage_configs (id, entity_type, field_name, type, cardinality, settings)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entity_type, field_name) DO UPDATE SET
			type = EXCLUDED.type,
			cardinality = EXCLUDED.cardinality,
			settings = EXCLUDED.settings,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err = conn.QueryRow(ctx, query,
		storage.ID,
		storage.EntityType,
		storage.FieldName,
		storage.Type,
		storage.Cardinality,
		settings,
	).Scan(&storage.ID, &storage.CreatedAt, &storage.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save field storage %s.%s: %w", storage.EntityType, storage.FieldName, err)
	}
	return nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func scanField(row pgx.Row) (*models.FieldDefinition, error) {
	var f models.FieldDefinition
	var defaultValue, settings []byte

	err := row.Scan(
		&f.ID,
		&f.StorageID,
		&f.EntityType,
		&f.Bundle,
		&f.FieldName,
		&f.Label,
		&f.Description,
		&f.Required,
		&defaultValue,
		&settings,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan field config: %w", err)
	}

	if err := unmarshalJSONB(defaultValue, &f.DefaultValue); err != nil {
		return nil, fmt.Errorf("failed to decode default value of %s: %w", f.ConfigName(), err)
	}
	if err := unmarshalJSONB(settings, &f.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings of %s: %w", f.ConfigName(), err)
	}
	return &f, nil
}
