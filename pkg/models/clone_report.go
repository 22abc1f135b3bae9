package models

// Mode sync actions recorded in a DisplaySyncReport.
const (
	SyncActionCopied = "copied" // Source component copied onto the destination
	SyncActionHidden = "hidden" // Field hidden on the destination to match the source
)

// ModeSync records what happened to one destination display during a sync.
type ModeSync struct {
	Mode   string `json:"mode"`
	Action string `json:"action"`
}

// DisplaySyncReport describes one field's display sync in one context.
type DisplaySyncReport struct {
	Context DisplayContext `json:"context"`
	Updated []ModeSync     `json:"updated"`
	Skipped []string       `json:"skipped,omitempty"` // Source modes with no destination counterpart
}

// FieldCloneResult is the outcome of cloning one field to one bundle.
type FieldCloneResult struct {
	Field   *FieldDefinition     `json:"field"`
	Display []*DisplaySyncReport `json:"display"`
}

// DisplayCloneReport describes the changes applied to one destination display.
type DisplayCloneReport struct {
	Destination      DisplayKey `json:"destination"`
	CopiedComponents []string   `json:"copied_components"`
	SkippedFields    []string   `json:"skipped_fields,omitempty"` // Not on the destination bundle
	AttachedGroups   []string   `json:"attached_groups,omitempty"`
	SkippedGroups    []string   `json:"skipped_groups,omitempty"` // No surviving children
}

// SkippedFieldClone records a field that was not cloned to a bundle.
type SkippedFieldClone struct {
	FieldName string `json:"field_name"`
	Bundle    string `json:"bundle"`
	Reason    string `json:"reason"`
}

// BulkFieldCloneReport is the outcome of cloning several fields to several bundles.
// On failure it holds whatever completed before the failing clone.
type BulkFieldCloneReport struct {
	Cloned  []*FieldCloneResult `json:"cloned"`
	Skipped []SkippedFieldClone `json:"skipped,omitempty"`
}

// BulkDisplayCloneReport is the outcome of cloning one display to several bundles.
type BulkDisplayCloneReport struct {
	Displays []*DisplayCloneReport `json:"displays"`
}
