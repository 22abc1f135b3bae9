// Package audit records configuration changes made through the API as
// structured log events, one per write request, for log pipelines to collect.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/field-tools/pkg/middleware"
	"github.com/ekaya-inc/field-tools/pkg/models"
)

// ChangeEventType categorizes configuration change events for filtering.
type ChangeEventType string

const (
	// EventFieldsCloned is logged when one or more field definitions were created.
	EventFieldsCloned ChangeEventType = "fields_cloned"
	// EventDisplaysCloned is logged when one or more displays were overwritten.
	EventDisplaysCloned ChangeEventType = "displays_cloned"
	// EventCloneFailed is logged when a clone stopped with an error. Writes
	// completed before the failure are listed in Details.
	EventCloneFailed ChangeEventType = "clone_failed"
)

// ChangeEvent is one auditable configuration change.
type ChangeEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	EventType ChangeEventType `json:"event_type"`
	RequestID string          `json:"request_id,omitempty"`
	ClientIP  string          `json:"client_ip,omitempty"`
	Source    string          `json:"source"`
	Written   []string        `json:"written"`
	Details   any             `json:"details,omitempty"`
	Severity  string          `json:"severity"` // info, warning
}

// ChangeAuditor logs configuration changes under the "change_audit" logger.
type ChangeAuditor struct {
	logger *zap.Logger
}

// NewChangeAuditor creates a new change auditor with a dedicated logger namespace.
func NewChangeAuditor(logger *zap.Logger) *ChangeAuditor {
	return &ChangeAuditor{logger: logger.Named("change_audit")}
}

// LogFieldsCloned records the field definitions a clone request created.
// Nothing is logged when no field was written.
func (a *ChangeAuditor) LogFieldsCloned(ctx context.Context, source string, results []*models.FieldCloneResult, clientIP string) {
	written := FieldNames(results)
	if len(written) == 0 {
		return
	}
	a.log(ctx, ChangeEvent{
		EventType: EventFieldsCloned,
		ClientIP:  clientIP,
		Source:    source,
		Written:   written,
		Severity:  "info",
	})
}

// LogDisplaysCloned records the displays a display clone request overwrote.
func (a *ChangeAuditor) LogDisplaysCloned(ctx context.Context, source models.DisplayKey, reports []*models.DisplayCloneReport, clientIP string) {
	written := DisplayKeys(reports)
	if len(written) == 0 {
		return
	}
	a.log(ctx, ChangeEvent{
		EventType: EventDisplaysCloned,
		ClientIP:  clientIP,
		Source:    source.String(),
		Written:   written,
		Severity:  "info",
	})
}

// LogCloneFailed records a clone that stopped with an error after writing
// the configuration named in written (possibly nothing).
func (a *ChangeAuditor) LogCloneFailed(ctx context.Context, source string, written []string, cause error, clientIP string) {
	a.log(ctx, ChangeEvent{
		EventType: EventCloneFailed,
		ClientIP:  clientIP,
		Source:    source,
		Written:   written,
		Details:   map[string]string{"error": cause.Error()},
		Severity:  "warning",
	})
}

func (a *ChangeAuditor) log(ctx context.Context, event ChangeEvent) {
	event.Timestamp = time.Now().UTC()
	event.RequestID = middleware.RequestIDFromContext(ctx)
	if event.Written == nil {
		event.Written = []string{}
	}

	// Marshaling known types does not fail.
	eventJSON, _ := json.Marshal(event)

	fields := []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(event.EventType)),
		zap.String("request_id", event.RequestID),
		zap.String("source", event.Source),
		zap.Strings("written", event.Written),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	}
	if event.Severity == "warning" {
		a.logger.Warn("Configuration clone failed", fields...)
		return
	}
	a.logger.Info("Configuration changed", fields...)
}

// FieldNames returns the config names of the fields in results.
func FieldNames(results []*models.FieldCloneResult) []string {
	var names []string
	for _, r := range results {
		if r != nil && r.Field != nil {
			names = append(names, r.Field.ConfigName())
		}
	}
	return names
}

// FieldCloneWrites returns everything results saved: each cloned field
// followed by the destination displays its sync updated.
func FieldCloneWrites(results []*models.FieldCloneResult) []string {
	var written []string
	for _, r := range results {
		if r == nil || r.Field == nil {
			continue
		}
		written = append(written, r.Field.ConfigName())
		for _, report := range r.Display {
			if report == nil {
				continue
			}
			for _, u := range report.Updated {
				key := models.DisplayKey{
					EntityType: r.Field.EntityType,
					Bundle:     r.Field.Bundle,
					Mode:       u.Mode,
					Context:    report.Context,
				}
				written = append(written, key.String())
			}
		}
	}
	return written
}

// DisplayKeys returns the keys of the displays in reports.
func DisplayKeys(reports []*models.DisplayCloneReport) []string {
	var keys []string
	for _, r := range reports {
		if r != nil {
			keys = append(keys, r.Destination.String())
		}
	}
	return keys
}
