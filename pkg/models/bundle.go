package models

import "time"

// Bundle is a named sub-type of an entity type that carries its own field set.
// Stored in bundles table.
type Bundle struct {
	EntityType string    `json:"entity_type" yaml:"entity_type"`
	Bundle     string    `json:"bundle" yaml:"bundle"`
	Label      string    `json:"label" yaml:"label"`
	CreatedAt  time.Time `json:"created_at" yaml:"-"`
}

// CloneTarget is a destination option offered when cloning a field.
type CloneTarget struct {
	Bundle   string `json:"bundle"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
	Reason   string `json:"reason,omitempty"`
}
