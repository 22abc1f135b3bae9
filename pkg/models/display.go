package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DisplayContext distinguishes edit forms from rendered views.
type DisplayContext string

const (
	DisplayContextForm DisplayContext = "form"
	DisplayContextView DisplayContext = "view"
)

// DisplayContexts lists every context in the order field clones visit them.
var DisplayContexts = []DisplayContext{DisplayContextForm, DisplayContextView}

// IsValid reports whether c is one of the known contexts.
func (c DisplayContext) IsValid() bool {
	return c == DisplayContextForm || c == DisplayContextView
}

// DisplayKey identifies one display configuration.
type DisplayKey struct {
	EntityType string         `json:"entity_type"`
	Bundle     string         `json:"bundle"`
	Mode       string         `json:"mode"`
	Context    DisplayContext `json:"context"`
}

func (k DisplayKey) String() string {
	return fmt.Sprintf("%s:%s.%s.%s", k.Context, k.EntityType, k.Bundle, k.Mode)
}

// DisplayFilter selects every display of one context on one bundle.
type DisplayFilter struct {
	EntityType string
	Bundle     string
	Context    DisplayContext
}

// ComponentSettings is the widget (form) or formatter (view) configuration of
// one field in one display. It is replaced as a whole, never merged.
type ComponentSettings struct {
	Type               string                    `json:"type" yaml:"type"`
	Weight             int                       `json:"weight" yaml:"weight"`
	Region             string                    `json:"region,omitempty" yaml:"region,omitempty"`
	Label              string                    `json:"label,omitempty" yaml:"label,omitempty"` // Label display, view only
	Settings           map[string]any            `json:"settings,omitempty" yaml:"settings,omitempty"`
	ThirdPartySettings map[string]map[string]any `json:"third_party_settings,omitempty" yaml:"third_party_settings,omitempty"`
}

// Clone returns a deep copy of the settings.
func (s ComponentSettings) Clone() ComponentSettings {
	out := s
	out.Settings = cloneMap(s.Settings)
	if s.ThirdPartySettings != nil {
		out.ThirdPartySettings = make(map[string]map[string]any, len(s.ThirdPartySettings))
		for ns, settings := range s.ThirdPartySettings {
			out.ThirdPartySettings[ns] = cloneMap(settings)
		}
	}
	return out
}

// Component is a visible field in a display.
type Component struct {
	FieldName         string `json:"field_name" yaml:"field_name"`
	ComponentSettings `yaml:",inline"`
}

// FieldGroup groups field components under a shared wrapper (tabs, fieldsets, ...).
type FieldGroup struct {
	GroupID        string         `json:"group_id" yaml:"group_id"`
	Children       []string       `json:"children" yaml:"children"`
	Label          string         `json:"label" yaml:"label"`
	ParentName     string         `json:"parent_name,omitempty" yaml:"parent_name,omitempty"`
	Weight         int            `json:"weight" yaml:"weight"`
	Region         string         `json:"region,omitempty" yaml:"region,omitempty"`
	FormatType     string         `json:"format_type" yaml:"format_type"`
	FormatSettings map[string]any `json:"format_settings,omitempty" yaml:"format_settings,omitempty"`
}

// Clone returns a deep copy of the group.
func (g FieldGroup) Clone() FieldGroup {
	out := g
	out.Children = cloneStrings(g.Children)
	out.FormatSettings = cloneMap(g.FormatSettings)
	return out
}

// DisplayExtensions holds the typed extension records attached to a display,
// keyed by the namespace that owns them.
type DisplayExtensions struct {
	FieldGroups []FieldGroup `json:"field_group,omitempty" yaml:"field_group,omitempty"`
}

// DisplayConfiguration is the arrangement of a bundle's fields in one mode of
// one context. Fields without a component are hidden.
// Stored in display_configs table.
type DisplayConfiguration struct {
	ID         uuid.UUID         `json:"id" yaml:"-"`
	EntityType string            `json:"entity_type" yaml:"entity_type"`
	Bundle     string            `json:"bundle" yaml:"bundle"`
	Mode       string            `json:"mode" yaml:"mode"`
	Context    DisplayContext    `json:"context" yaml:"context"`
	Status     bool              `json:"status" yaml:"status"`
	Components []Component       `json:"components" yaml:"components"`
	Extensions DisplayExtensions `json:"extensions" yaml:"extensions,omitempty"`
	CreatedAt  time.Time         `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time         `json:"updated_at" yaml:"-"`
}

// Key returns the identifying key of the display.
func (d *DisplayConfiguration) Key() DisplayKey {
	return DisplayKey{EntityType: d.EntityType, Bundle: d.Bundle, Mode: d.Mode, Context: d.Context}
}

// Component returns the settings of a visible field.
func (d *DisplayConfiguration) Component(fieldName string) (ComponentSettings, bool) {
	for _, c := range d.Components {
		if c.FieldName == fieldName {
			return c.ComponentSettings, true
		}
	}
	return ComponentSettings{}, false
}

// SetComponent replaces the settings of a field, keeping its position, or
// appends it when the field had no component.
func (d *DisplayConfiguration) SetComponent(fieldName string, settings ComponentSettings) {
	for i := range d.Components {
		if d.Components[i].FieldName == fieldName {
			d.Components[i].ComponentSettings = settings
			return
		}
	}
	d.Components = append(d.Components, Component{FieldName: fieldName, ComponentSettings: settings})
}

// RemoveComponent hides a field. Returns false when it was already hidden.
func (d *DisplayConfiguration) RemoveComponent(fieldName string) bool {
	for i, c := range d.Components {
		if c.FieldName == fieldName {
			d.Components = append(d.Components[:i], d.Components[i+1:]...)
			return true
		}
	}
	return false
}

// ComponentNames lists the visible fields in display order.
func (d *DisplayConfiguration) ComponentNames() []string {
	names := make([]string, len(d.Components))
	for i, c := range d.Components {
		names[i] = c.FieldName
	}
	return names
}

// FieldGroup returns the group with the given id.
func (d *DisplayConfiguration) FieldGroup(groupID string) (FieldGroup, bool) {
	for _, g := range d.Extensions.FieldGroups {
		if g.GroupID == groupID {
			return g, true
		}
	}
	return FieldGroup{}, false
}

// SetFieldGroup overwrites the group with the same id, or appends it.
func (d *DisplayConfiguration) SetFieldGroup(group FieldGroup) {
	for i := range d.Extensions.FieldGroups {
		if d.Extensions.FieldGroups[i].GroupID == group.GroupID {
			d.Extensions.FieldGroups[i] = group
			return
		}
	}
	d.Extensions.FieldGroups = append(d.Extensions.FieldGroups, group)
}

// Clone returns a deep copy of the display.
func (d *DisplayConfiguration) Clone() *DisplayConfiguration {
	out := *d
	if d.Components != nil {
		out.Components = make([]Component, len(d.Components))
		for i, c := range d.Components {
			out.Components[i] = Component{FieldName: c.FieldName, ComponentSettings: c.ComponentSettings.Clone()}
		}
	}
	if d.Extensions.FieldGroups != nil {
		out.Extensions.FieldGroups = make([]FieldGroup, len(d.Extensions.FieldGroups))
		for i, g := range d.Extensions.FieldGroups {
			out.Extensions.FieldGroups[i] = g.Clone()
		}
	}
	return &out
}
