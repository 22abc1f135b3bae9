// Package seed loads bundles, fields and displays from a YAML document into
// the store. Applying the same document twice leaves the store unchanged.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/field-tools/pkg/apperrors"
	"github.com/ekaya-inc/field-tools/pkg/models"
	"github.com/ekaya-inc/field-tools/pkg/repositories"
)

// Document is the YAML seed format.
//
//	bundles:
//	  - {entity_type: node, bundle: article, label: Article}
//	storages:
//	  - {entity_type: node, field_name: field_subtitle, type: string, cardinality: 1}
//	fields:
//	  - {entity_type: node, bundle: article, field_name: field_subtitle, label: Subtitle}
//	displays:
//	  - entity_type: node
//	    bundle: article
//	    mode: teaser
//	    context: view
//	    components:
//	      - {field_name: field_subtitle, type: string, weight: 1}
type Document struct {
	Bundles  []*models.Bundle               `yaml:"bundles"`
	Storages []*models.FieldStorage         `yaml:"storages"`
	Fields   []*models.FieldDefinition      `yaml:"fields"`
	Displays []*models.DisplayConfiguration `yaml:"displays"`
}

// Repositories are the stores a Document is applied to.
type Repositories struct {
	Fields   repositories.FieldRepository
	Displays repositories.DisplayRepository
	Bundles  repositories.BundleRepository
}

// Result counts what Apply wrote.
type Result struct {
	Bundles  int
	Storages int
	Fields   int
	Displays int
}

// Load decodes and validates a seed document. Unknown keys are rejected.
func Load(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode seed document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed document: %w", err)
	}
	return &doc, nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate reports every structural problem in the document at once.
func (d *Document) Validate() error {
	var err error

	for i, b := range d.Bundles {
		if b == nil {
			err = multierr.Append(err, fmt.Errorf("bundles[%d]: empty entry", i))
			continue
		}
		if b.EntityType == "" || b.Bundle == "" {
			err = multierr.Append(err, fmt.Errorf("bundles[%d]: entity_type and bundle are required", i))
		}
	}

	storages := make(map[string]bool, len(d.Storages))
	for i, s := range d.Storages {
		if s == nil {
			err = multierr.Append(err, fmt.Errorf("storages[%d]: empty entry", i))
			continue
		}
		if s.EntityType == "" || s.FieldName == "" || s.Type == "" {
			err = multierr.Append(err, fmt.Errorf("storages[%d]: entity_type, field_name and type are required", i))
			continue
		}
		if s.Cardinality == 0 || s.Cardinality < models.CardinalityUnlimited {
			err = multierr.Append(err, fmt.Errorf("storages[%d]: cardinality must be positive or -1", i))
		}
		storages[s.EntityType+"."+s.FieldName] = true
	}

	fields := make(map[string]bool, len(d.Fields))
	for i, f := range d.Fields {
		if f == nil {
			err = multierr.Append(err, fmt.Errorf("fields[%d]: empty entry", i))
			continue
		}
		if f.EntityType == "" || f.Bundle == "" || f.FieldName == "" {
			err = multierr.Append(err, fmt.Errorf("fields[%d]: entity_type, bundle and field_name are required", i))
			continue
		}
		if fields[f.ConfigName()] {
			err = multierr.Append(err, fmt.Errorf("fields[%d]: duplicate field %s", i, f.ConfigName()))
		}
		fields[f.ConfigName()] = true
	}

	displays := make(map[models.DisplayKey]bool, len(d.Displays))
	for i, disp := range d.Displays {
		if disp == nil {
			err = multierr.Append(err, fmt.Errorf("displays[%d]: empty entry", i))
			continue
		}
		if disp.EntityType == "" || disp.Bundle == "" || disp.Mode == "" {
			err = multierr.Append(err, fmt.Errorf("displays[%d]: entity_type, bundle and mode are required", i))
			continue
		}
		if !disp.Context.IsValid() {
			err = multierr.Append(err, fmt.Errorf("displays[%d]: %w: %q", i, apperrors.ErrInvalidDisplayContext, disp.Context))
			continue
		}
		if displays[disp.Key()] {
			err = multierr.Append(err, fmt.Errorf("displays[%d]: duplicate display %s", i, disp.Key()))
		}
		displays[disp.Key()] = true
	}

	return err
}

// Apply writes the document in dependency order: bundles, storages, fields,
// then displays. Existing records keep their ids and are overwritten.
// A field whose storage is neither in the document nor in the store fails.
func Apply(ctx context.Context, doc *Document, repos Repositories, logger *zap.Logger) (*Result, error) {
	logger = logger.Named("seed")
	result := &Result{}

	for _, b := range doc.Bundles {
		if err := repos.Bundles.Save(ctx, b); err != nil {
			return result, fmt.Errorf("failed to save bundle %s.%s: %w", b.EntityType, b.Bundle, err)
		}
		result.Bundles++
	}

	for _, s := range doc.Storages {
		existing, err := repos.Fields.GetStorage(ctx, s.EntityType, s.FieldName)
		switch {
		case err == nil:
			s.ID = existing.ID
		case !errors.Is(err, apperrors.ErrNotFound):
			return result, fmt.Errorf("failed to look up storage %s.%s: %w", s.EntityType, s.FieldName, err)
		}
		if err := repos.Fields.SaveStorage(ctx, s); err != nil {
			return result, fmt.Errorf("failed to save storage %s.%s: %w", s.EntityType, s.FieldName, err)
		}
		result.Storages++
	}

	for _, f := range doc.Fields {
		storage, err := repos.Fields.GetStorage(ctx, f.EntityType, f.FieldName)
		if err != nil {
			return result, fmt.Errorf("no storage for field %s: %w", f.ConfigName(), err)
		}
		f.StorageID = storage.ID

		existing, err := repos.Fields.Get(ctx, f.EntityType, f.Bundle, f.FieldName)
		switch {
		case err == nil:
			f.ID = existing.ID
		case !errors.Is(err, apperrors.ErrNotFound):
			return result, fmt.Errorf("failed to look up field %s: %w", f.ConfigName(), err)
		}
		if err := repos.Fields.Save(ctx, f); err != nil {
			return result, fmt.Errorf("failed to save field %s: %w", f.ConfigName(), err)
		}
		result.Fields++
	}

	for _, d := range doc.Displays {
		existing, err := repos.Displays.Get(ctx, d.Key())
		switch {
		case err == nil:
			d.ID = existing.ID
		case !errors.Is(err, apperrors.ErrNotFound):
			return result, fmt.Errorf("failed to look up display %s: %w", d.Key(), err)
		}
		if err := repos.Displays.Save(ctx, d); err != nil {
			return result, fmt.Errorf("failed to save display %s: %w", d.Key(), err)
		}
		result.Displays++
	}

	logger.Info("Seed applied",
		zap.Int("bundles", result.Bundles),
		zap.Int("storages", result.Storages),
		zap.Int("fields", result.Fields),
		zap.Int("displays", result.Displays))

	return result, nil
}
