package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ekaya-inc/field-tools/pkg/audit"
	"github.com/ekaya-inc/field-tools/pkg/models"
	"github.com/ekaya-inc/field-tools/pkg/services"
)

// ScopeMiddleware wraps handlers that need a database scope in their context.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// ============================================================================
// Request/Response Types
// ============================================================================

// BundleFieldsResponse for GET .../bundles/{bundle}/fields
type BundleFieldsResponse struct {
	Fields []*models.FieldDefinition `json:"fields"`
	Total  int                       `json:"total"`
}

// CloneTargetsResponse for GET .../fields/{fieldName}/clone-targets
type CloneTargetsResponse struct {
	Field   string               `json:"field"`
	Targets []models.CloneTarget `json:"targets"`
}

// CloneFieldRequest for POST .../fields/{fieldName}/clone
type CloneFieldRequest struct {
	DestinationEntityType string `json:"destination_entity_type,omitempty"` // Defaults to the source entity type
	DestinationBundle     string `json:"destination_bundle"`
}

// Validate checks the request and reports every problem at once.
func (req *CloneFieldRequest) Validate() error {
	var err error
	if !IsMachineName(req.DestinationBundle) {
		err = multierr.Append(err, errors.New("destination_bundle must be a machine name"))
	}
	if req.DestinationEntityType != "" && !IsMachineName(req.DestinationEntityType) {
		err = multierr.Append(err, errors.New("destination_entity_type must be a machine name"))
	}
	return err
}

// BulkCloneFieldsRequest for POST .../fields/clone
type BulkCloneFieldsRequest struct {
	FieldNames         []string `json:"field_names"`
	DestinationBundles []string `json:"destination_bundles"`
}

// Validate checks the request and reports every problem at once.
func (req *BulkCloneFieldsRequest) Validate() error {
	var err error
	if len(req.FieldNames) == 0 {
		err = multierr.Append(err, errors.New("field_names must not be empty"))
	}
	if len(req.DestinationBundles) == 0 {
		err = multierr.Append(err, errors.New("destination_bundles must not be empty"))
	}
	for _, name := range req.FieldNames {
		if !IsMachineName(name) {
			err = multierr.Append(err, fmt.Errorf("field_names: %q is not a machine name", name))
		}
	}
	for _, bundle := range req.DestinationBundles {
		if !IsMachineName(bundle) {
			err = multierr.Append(err, fmt.Errorf("destination_bundles: %q is not a machine name", bundle))
		}
	}
	return err
}

// ============================================================================
// Handler
// ============================================================================

// FieldCloneHandler handles field listing and field clone requests.
type FieldCloneHandler struct {
	catalog     services.CatalogService
	fieldCloner services.FieldCloner
	bulkCloner  services.BulkCloner
	auditor     *audit.ChangeAuditor
	logger      *zap.Logger
}

// NewFieldCloneHandler creates a new field clone handler.
func NewFieldCloneHandler(
	catalog services.CatalogService,
	fieldCloner services.FieldCloner,
	bulkCloner services.BulkCloner,
	auditor *audit.ChangeAuditor,
	logger *zap.Logger,
) *FieldCloneHandler {
	return &FieldCloneHandler{
		catalog:     catalog,
		fieldCloner: fieldCloner,
		bulkCloner:  bulkCloner,
		auditor:     auditor,
		logger:      logger,
	}
}

// RegisterRoutes registers the field clone handler's routes on the given mux.
func (h *FieldCloneHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	base := "/api/entity-types/{entityType}/bundles/{bundle}/fields"

	mux.HandleFunc("GET "+base, scope(h.List))
	mux.HandleFunc("POST "+base+"/clone", scope(h.BulkClone))
	mux.HandleFunc("GET "+base+"/{fieldName}/clone-targets", scope(h.CloneTargets))
	mux.HandleFunc("POST "+base+"/{fieldName}/clone", scope(h.Clone))
}

// List handles GET /api/entity-types/{entityType}/bundles/{bundle}/fields
func (h *FieldCloneHandler) List(w http.ResponseWriter, r *http.Request) {
	path, ok := ParseBundlePath(w, r, h.logger)
	if !ok {
		return
	}

	fields, err := h.catalog.ListBundleFields(r.Context(), path.EntityType, path.Bundle)
	if err != nil {
		writeServiceError(w, err, nil, h.logger)
		return
	}

	writeOK(w, http.StatusOK, BundleFieldsResponse{Fields: fields, Total: len(fields)}, h.logger)
}

// CloneTargets handles GET .../fields/{fieldName}/clone-targets
func (h *FieldCloneHandler) CloneTargets(w http.ResponseWriter, r *http.Request) {
	field, ok := h.loadField(w, r)
	if !ok {
		return
	}

	targets, err := h.catalog.ListCloneTargets(r.Context(), field)
	if err != nil {
		writeServiceError(w, err, nil, h.logger)
		return
	}

	writeOK(w, http.StatusOK, CloneTargetsResponse{Field: field.ConfigName(), Targets: targets}, h.logger)
}

// Clone handles POST .../fields/{fieldName}/clone
func (h *FieldCloneHandler) Clone(w http.ResponseWriter, r *http.Request) {
	field, ok := h.loadField(w, r)
	if !ok {
		return
	}

	var req CloneFieldRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.fieldCloner.CloneField(r.Context(), field, req.DestinationEntityType, req.DestinationBundle)
	if err != nil {
		var partial any
		var written []string
		if result != nil {
			partial = result
			written = audit.FieldCloneWrites([]*models.FieldCloneResult{result})
		}
		h.auditor.LogCloneFailed(r.Context(), field.ConfigName(), written, err, r.RemoteAddr)
		writeServiceError(w, err, partial, h.logger)
		return
	}

	h.auditor.LogFieldsCloned(r.Context(), field.ConfigName(), []*models.FieldCloneResult{result}, r.RemoteAddr)
	writeOK(w, http.StatusCreated, result, h.logger)
}

// BulkClone handles POST .../fields/clone
func (h *FieldCloneHandler) BulkClone(w http.ResponseWriter, r *http.Request) {
	path, ok := ParseBundlePath(w, r, h.logger)
	if !ok {
		return
	}

	var req BulkCloneFieldsRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	report, err := h.bulkCloner.CloneFields(r.Context(), services.BulkFieldCloneRequest{
		EntityType:         path.EntityType,
		SourceBundle:       path.Bundle,
		FieldNames:         req.FieldNames,
		DestinationBundles: req.DestinationBundles,
	})
	source := path.EntityType + "." + path.Bundle
	if err != nil {
		var written []string
		if report != nil {
			written = audit.FieldCloneWrites(report.Cloned)
		}
		h.auditor.LogCloneFailed(r.Context(), source, written, err, r.RemoteAddr)
		writeServiceError(w, err, report, h.logger)
		return
	}

	h.auditor.LogFieldsCloned(r.Context(), source, report.Cloned, r.RemoteAddr)
	writeOK(w, http.StatusOK, report, h.logger)
}

func (h *FieldCloneHandler) loadField(w http.ResponseWriter, r *http.Request) (*models.FieldDefinition, bool) {
	path, ok := ParseBundlePath(w, r, h.logger)
	if !ok {
		return nil, false
	}
	fieldName, ok := ParseFieldName(w, r, h.logger)
	if !ok {
		return nil, false
	}

	field, err := h.catalog.GetField(r.Context(), path.EntityType, path.Bundle, fieldName)
	if err != nil {
		writeServiceError(w, err, nil, h.logger)
		return nil, false
	}
	return field, true
}

type validatable interface {
	Validate() error
}

// decodeRequest reads a JSON body into req and validates it. Returns false
// after writing a 400 response on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, req validatable, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", logger)
		return false
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), logger)
		return false
	}
	return true
}
