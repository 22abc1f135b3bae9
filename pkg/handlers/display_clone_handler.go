package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ekaya-inc/field-tools/pkg/audit"
	"github.com/ekaya-inc/field-tools/pkg/services"
)

// CloneDisplayRequest for POST .../displays/{context}/{mode}/clone
type CloneDisplayRequest struct {
	DestinationBundles []string `json:"destination_bundles"`
}

// Validate checks the request and reports every problem at once.
func (req *CloneDisplayRequest) Validate() error {
	var err error
	if len(req.DestinationBundles) == 0 {
		err = multierr.Append(err, errors.New("destination_bundles must not be empty"))
	}
	for _, bundle := range req.DestinationBundles {
		if !IsMachineName(bundle) {
			err = multierr.Append(err, fmt.Errorf("destination_bundles: %q is not a machine name", bundle))
		}
	}
	return err
}

// DisplayCloneHandler handles display clone requests.
type DisplayCloneHandler struct {
	catalog    services.CatalogService
	bulkCloner services.BulkCloner
	auditor    *audit.ChangeAuditor
	logger     *zap.Logger
}

// NewDisplayCloneHandler creates a new display clone handler.
func NewDisplayCloneHandler(
	catalog services.CatalogService,
	bulkCloner services.BulkCloner,
	auditor *audit.ChangeAuditor,
	logger *zap.Logger,
) *DisplayCloneHandler {
	return &DisplayCloneHandler{
		catalog:    catalog,
		bulkCloner: bulkCloner,
		auditor:    auditor,
		logger:     logger,
	}
}

// RegisterRoutes registers the display clone handler's routes on the given mux.
func (h *DisplayCloneHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/entity-types/{entityType}/bundles/{bundle}/displays/{context}/{mode}/clone",
		scope(h.Clone))
}

// Clone handles POST /api/entity-types/{entityType}/bundles/{bundle}/displays/{context}/{mode}/clone
func (h *DisplayCloneHandler) Clone(w http.ResponseWriter, r *http.Request) {
	key, ok := ParseDisplayKey(w, r, h.logger)
	if !ok {
		return
	}

	var req CloneDisplayRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	source, err := h.catalog.GetDisplay(r.Context(), key)
	if err != nil {
		writeServiceError(w, err, nil, h.logger)
		return
	}

	report, err := h.bulkCloner.CloneDisplay(r.Context(), source, req.DestinationBundles)
	if err != nil {
		var written []string
		if report != nil {
			written = audit.DisplayKeys(report.Displays)
		}
		h.auditor.LogCloneFailed(r.Context(), key.String(), written, err, r.RemoteAddr)
		writeServiceError(w, err, report, h.logger)
		return
	}

	h.auditor.LogDisplaysCloned(r.Context(), key, report.Displays, r.RemoteAddr)

	writeOK(w, http.StatusOK, report, h.logger)
}
