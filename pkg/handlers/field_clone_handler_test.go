package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/field-tools/pkg/apperrors"
	"github.com/ekaya-inc/field-tools/pkg/audit"
	"github.com/ekaya-inc/field-tools/pkg/models"
)

type fieldHandlerFixture struct {
	mux     *http.ServeMux
	catalog *mockCatalogService
	cloner  *mockFieldCloner
	bulk    *mockBulkCloner
	audit   *observer.ObservedLogs
}

func newFieldHandlerFixture() *fieldHandlerFixture {
	f := &fieldHandlerFixture{
		mux:     http.NewServeMux(),
		catalog: newMockCatalogService(),
		cloner:  &mockFieldCloner{},
		bulk:    &mockBulkCloner{},
	}
	f.catalog.fields["node.article.field_subtitle"] = &models.FieldDefinition{
		EntityType: "node", Bundle: "article", FieldName: "field_subtitle", Label: "Subtitle",
	}
	core, recorded := observer.New(zapcore.InfoLevel)
	f.audit = recorded
	auditor := audit.NewChangeAuditor(zap.New(core))
	NewFieldCloneHandler(f.catalog, f.cloner, f.bulk, auditor, zap.NewNop()).RegisterRoutes(f.mux, passthroughScope)
	return f
}

func (f *fieldHandlerFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ApiError {
	t.Helper()
	var apiErr ApiError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	return apiErr
}

func TestFieldCloneHandler_List(t *testing.T) {
	f := newFieldHandlerFixture()

	rec := f.do(http.MethodGet, "/api/entity-types/node/bundles/article/fields", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                 `json:"success"`
		Data    BundleFieldsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "field_subtitle", resp.Data.Fields[0].FieldName)
}

func TestFieldCloneHandler_List_InvalidBundle(t *testing.T) {
	f := newFieldHandlerFixture()

	rec := f.do(http.MethodGet, "/api/entity-types/node/bundles/Not-Valid/fields", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_bundle", decodeError(t, rec).Error)
}

func TestFieldCloneHandler_List_ServiceError(t *testing.T) {
	f := newFieldHandlerFixture()
	f.catalog.listErr = errors.New("connection refused")

	rec := f.do(http.MethodGet, "/api/entity-types/node/bundles/article/fields", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeError(t, rec).Error)
}

func TestFieldCloneHandler_CloneTargets(t *testing.T) {
	f := newFieldHandlerFixture()
	f.catalog.targets = []models.CloneTarget{
		{Bundle: "page", Label: "Basic page"},
		{Bundle: "blog", Label: "Blog", Disabled: true, Reason: "The field is already on this bundle."},
	}

	rec := f.do(http.MethodGet, "/api/entity-types/node/bundles/article/fields/field_subtitle/clone-targets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data CloneTargetsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "node.article.field_subtitle", resp.Data.Field)
	assert.Equal(t, f.catalog.targets, resp.Data.Targets)
	assert.Equal(t, "field_subtitle", f.catalog.lastTargetField.FieldName)
}

func TestFieldCloneHandler_CloneTargets_UnknownField(t *testing.T) {
	f := newFieldHandlerFixture()

	rec := f.do(http.MethodGet, "/api/entity-types/node/bundles/article/fields/field_nope/clone-targets", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error)
}

func TestFieldCloneHandler_Clone(t *testing.T) {
	f := newFieldHandlerFixture()

	rec := f.do(http.MethodPost, "/api/entity-types/node/bundles/article/fields/field_subtitle/clone",
		CloneFieldRequest{DestinationBundle: "page"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data models.FieldCloneResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "page", resp.Data.Field.Bundle)
	assert.Equal(t, []string{"/page"}, f.cloner.calls)

	logs := f.audit.FilterField(zap.String("event_type", string(audit.EventFieldsCloned))).All()
	require.Len(t, logs, 1)
	assert.Equal(t, "node.article.field_subtitle", logs[0].ContextMap()["source"])
}

func TestFieldCloneHandler_Clone_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"conflict", fmt.Errorf("%w: field node.page.field_subtitle already exists", apperrors.ErrConflict), http.StatusConflict, "conflict"},
		{"cross entity type", apperrors.ErrCrossEntityTypeUnsupported, http.StatusUnprocessableEntity, "cross_entity_type_unsupported"},
		{"store failure", errors.New("disk full"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFieldHandlerFixture()
			f.cloner.err = tt.err

			rec := f.do(http.MethodPost, "/api/entity-types/node/bundles/article/fields/field_subtitle/clone",
				CloneFieldRequest{DestinationEntityType: "node", DestinationBundle: "page"})
			require.Equal(t, tt.wantStatus, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, apiErr.Error)
			assert.Nil(t, apiErr.Partial)
		})
	}
}

func TestFieldCloneHandler_Clone_PartialResult(t *testing.T) {
	f := newFieldHandlerFixture()
	f.cloner.err = errors.New("display save failed")
	f.cloner.result = &models.FieldCloneResult{
		Field: &models.FieldDefinition{EntityType: "node", Bundle: "page", FieldName: "field_subtitle"},
		Display: []*models.DisplaySyncReport{
			{Context: models.DisplayContextForm, Updated: []models.ModeSync{{Mode: "default", Action: models.SyncActionCopied}}},
		},
	}

	rec := f.do(http.MethodPost, "/api/entity-types/node/bundles/article/fields/field_subtitle/clone",
		CloneFieldRequest{DestinationBundle: "page"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotNil(t, decodeError(t, rec).Partial)

	// The saved field and the display synced before the failure are both recorded.
	logs := f.audit.FilterField(zap.String("event_type", string(audit.EventCloneFailed))).All()
	require.Len(t, logs, 1)
	assert.Equal(t, []any{"node.page.field_subtitle", "form:node.page.default"}, logs[0].ContextMap()["written"])
}

func TestFieldCloneHandler_Clone_InvalidBody(t *testing.T) {
	f := newFieldHandlerFixture()

	rec := f.do(http.MethodPost, "/api/entity-types/node/bundles/article/fields/field_subtitle/clone", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Error)
	assert.Empty(t, f.cloner.calls)
}

func TestFieldCloneHandler_Clone_ValidationErrors(t *testing.T) {
	f := newFieldHandlerFixture()

	rec := f.do(http.MethodPost, "/api/entity-types/node/bundles/article/fields/field_subtitle/clone",
		CloneFieldRequest{DestinationEntityType: "Bad Type", DestinationBundle: ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	msg := decodeError(t, rec).Message
	assert.Contains(t, msg, "destination_bundle")
	assert.Contains(t, msg, "destination_entity_type")
	assert.Empty(t, f.cloner.calls)
}

func TestFieldCloneHandler_BulkClone(t *testing.T) {
	f := newFieldHandlerFixture()
	f.bulk.fieldReport = &models.BulkFieldCloneReport{
		Cloned:  []*models.FieldCloneResult{{Field: &models.FieldDefinition{EntityType: "node", Bundle: "page", FieldName: "field_subtitle"}}},
		Skipped: []models.SkippedFieldClone{{FieldName: "field_subtitle", Bundle: "blog", Reason: "field already exists on bundle"}},
	}

	rec := f.do(http.MethodPost, "/api/entity-types/node/bundles/article/fields/clone", BulkCloneFieldsRequest{
		FieldNames:         []string{"field_subtitle"},
		DestinationBundles: []string{"page", "blog"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "node", f.bulk.lastFieldRequest.EntityType)
	assert.Equal(t, "article", f.bulk.lastFieldRequest.SourceBundle)
	assert.Equal(t, []string{"page", "blog"}, f.bulk.lastFieldRequest.DestinationBundles)

	var resp struct {
		Data models.BulkFieldCloneReport `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Data.Cloned, 1)
	assert.Len(t, resp.Data.Skipped, 1)

	logs := f.audit.FilterField(zap.String("event_type", string(audit.EventFieldsCloned))).All()
	require.Len(t, logs, 1)
	assert.Equal(t, "node.article", logs[0].ContextMap()["source"])
}

func TestFieldCloneHandler_BulkClone_FailureReturnsPartial(t *testing.T) {
	f := newFieldHandlerFixture()
	f.bulk.err = fmt.Errorf("failed to load field: %w", apperrors.ErrNotFound)

	rec := f.do(http.MethodPost, "/api/entity-types/node/bundles/article/fields/clone", BulkCloneFieldsRequest{
		FieldNames:         []string{"field_missing"},
		DestinationBundles: []string{"page"},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotNil(t, decodeError(t, rec).Partial)
}

func TestBulkCloneFieldsRequest_Validate(t *testing.T) {
	err := (&BulkCloneFieldsRequest{}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field_names must not be empty")
	assert.Contains(t, err.Error(), "destination_bundles must not be empty")

	err = (&BulkCloneFieldsRequest{FieldNames: []string{"ok", "Not OK"}, DestinationBundles: []string{"page"}}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Not OK"`)

	assert.NoError(t, (&BulkCloneFieldsRequest{FieldNames: []string{"body"}, DestinationBundles: []string{"page"}}).Validate())
}
