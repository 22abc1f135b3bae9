package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cardinality value for fields that accept any number of values.
const CardinalityUnlimited = -1

// FieldStorage is the value-type definition shared by every bundle that uses
// a field name on an entity type.
// Stored in field_storage_configs table.
type FieldStorage struct {
	ID          uuid.UUID      `json:"id" yaml:"-"`
	EntityType  string         `json:"entity_type" yaml:"entity_type"`
	FieldName   string         `json:"field_name" yaml:"field_name"`
	Type        string         `json:"type" yaml:"type"`               // Value type, e.g. "string", "entity_reference"
	Cardinality int            `json:"cardinality" yaml:"cardinality"` // -1 = unlimited
	Settings    map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
	CreatedAt   time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time      `json:"updated_at" yaml:"-"`
}

// FieldDefinition binds a field storage to one bundle.
// Stored in field_configs table; field_name is unique within (entity_type, bundle).
type FieldDefinition struct {
	ID           uuid.UUID        `json:"id" yaml:"-"`
	StorageID    uuid.UUID        `json:"storage_id" yaml:"-"`
	EntityType   string           `json:"entity_type" yaml:"entity_type"`
	Bundle       string           `json:"bundle" yaml:"bundle"`
	FieldName    string           `json:"field_name" yaml:"field_name"`
	Label        string           `json:"label" yaml:"label"`
	Description  string           `json:"description,omitempty" yaml:"description,omitempty"`
	Required     bool             `json:"required" yaml:"required"`
	DefaultValue []map[string]any `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Settings     map[string]any   `json:"settings,omitempty" yaml:"settings,omitempty"`
	CreatedAt    time.Time        `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time        `json:"updated_at" yaml:"-"`
}

// ConfigName returns the dotted identifier "entity_type.bundle.field_name".
func (f *FieldDefinition) ConfigName() string {
	return fmt.Sprintf("%s.%s.%s", f.EntityType, f.Bundle, f.FieldName)
}

// Duplicate returns a copy of the definition rebound to another bundle.
// The copy has no ID and no timestamps so the store treats it as new; it keeps
// the same storage reference.
func (f *FieldDefinition) Duplicate(bundle string) *FieldDefinition {
	dup := &FieldDefinition{
		StorageID:   f.StorageID,
		EntityType:  f.EntityType,
		Bundle:      bundle,
		FieldName:   f.FieldName,
		Label:       f.Label,
		Description: f.Description,
		Required:    f.Required,
		Settings:    cloneMap(f.Settings),
	}
	if f.DefaultValue != nil {
		dup.DefaultValue = make([]map[string]any, len(f.DefaultValue))
		for i, v := range f.DefaultValue {
			dup.DefaultValue[i] = cloneMap(v)
		}
	}
	return dup
}

// FieldFilter selects field definitions by exact match. Empty members are
// not constrained; set members are combined with AND.
type FieldFilter struct {
	EntityType string
	Bundle     string
	FieldName  string
}
