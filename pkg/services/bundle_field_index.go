package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/ekaya-inc/field-tools/pkg/apperrors"
	"github.com/ekaya-inc/field-tools/pkg/models"
	"github.com/ekaya-inc/field-tools/pkg/repositories"
)

// FieldSet is a set of field names.
type FieldSet map[string]struct{}

// NewFieldSet builds a set from names.
func NewFieldSet(names ...string) FieldSet {
	set := make(FieldSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Has reports whether name is in the set.
func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members in sorted order.
func (s FieldSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BundleFieldIndex answers which fields exist on a bundle.
type BundleFieldIndex interface {
	// FieldsOf returns the names of every field defined on (entityType, bundle).
	// The store is read on every call; results gate writes of the same operation.
	FieldsOf(ctx context.Context, entityType, bundle string) (FieldSet, error)
}

type bundleFieldIndex struct {
	fieldRepo repositories.FieldRepository
}

// NewBundleFieldIndex creates a BundleFieldIndex backed by the field repository.
func NewBundleFieldIndex(fieldRepo repositories.FieldRepository) BundleFieldIndex {
	return &bundleFieldIndex{fieldRepo: fieldRepo}
}

var _ BundleFieldIndex = (*bundleFieldIndex)(nil)

func (i *bundleFieldIndex) FieldsOf(ctx context.Context, entityType, bundle string) (FieldSet, error) {
	// An empty value would drop its condition from the query.
	if entityType == "" || bundle == "" {
		return nil, fmt.Errorf("%w: got %q.%q", apperrors.ErrMissingBundle, entityType, bundle)
	}

	fields, err := i.fieldRepo.Query(ctx, models.FieldFilter{EntityType: entityType, Bundle: bundle})
	if err != nil {
		return nil, fmt.Errorf("failed to list fields of %s.%s: %w", entityType, bundle, err)
	}

	set := make(FieldSet, len(fields))
	for _, f := range fields {
		set[f.FieldName] = struct{}{}
	}
	return set, nil
}
