package handlers

import (
	"net/http"
	"regexp"

	"go.uber.org/zap"

	"github.com/ekaya-inc/field-tools/pkg/models"
)

// machineNamePattern matches entity type, bundle, field and mode names.
var machineNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,128}$`)

// IsMachineName reports whether s is a valid machine name.
func IsMachineName(s string) bool {
	return machineNamePattern.MatchString(s)
}

// BundlePath holds the entity type and bundle addressed by a request.
type BundlePath struct {
	EntityType string
	Bundle     string
}

// ParseBundlePath extracts and validates the entity type and bundle from the
// request path. Returns false after writing an error response on failure.
// Expects path parameters: entityType, bundle
func ParseBundlePath(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (BundlePath, bool) {
	entityType, ok := parseMachineName(w, r, "entityType", "invalid_entity_type", "Invalid entity type", logger)
	if !ok {
		return BundlePath{}, false
	}
	bundle, ok := parseMachineName(w, r, "bundle", "invalid_bundle", "Invalid bundle name", logger)
	if !ok {
		return BundlePath{}, false
	}
	return BundlePath{EntityType: entityType, Bundle: bundle}, true
}

// ParseFieldName extracts and validates the field name from the request path.
// Expects path parameter: fieldName
func ParseFieldName(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	return parseMachineName(w, r, "fieldName", "invalid_field_name", "Invalid field name", logger)
}

// ParseDisplayKey extracts and validates a display key from the request path.
// Expects path parameters: entityType, bundle, context, mode
func ParseDisplayKey(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.DisplayKey, bool) {
	path, ok := ParseBundlePath(w, r, logger)
	if !ok {
		return models.DisplayKey{}, false
	}

	displayContext := models.DisplayContext(r.PathValue("context"))
	if !displayContext.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid_display_context", "Display context must be form or view", logger)
		return models.DisplayKey{}, false
	}

	mode, ok := parseMachineName(w, r, "mode", "invalid_mode", "Invalid display mode", logger)
	if !ok {
		return models.DisplayKey{}, false
	}

	return models.DisplayKey{
		EntityType: path.EntityType,
		Bundle:     path.Bundle,
		Mode:       mode,
		Context:    displayContext,
	}, true
}

func parseMachineName(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (string, bool) {
	value := r.PathValue(pathParam)
	if !IsMachineName(value) {
		writeError(w, http.StatusBadRequest, errorCode, errorMessage, logger)
		return "", false
	}
	return value, true
}
