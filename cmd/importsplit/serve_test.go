package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/importsplit/pkg/loader"
	"github.com/Sumatoshi-tech/importsplit/pkg/observability"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	a, err := newApp(&rootFlags{quiet: true}, observability.ModeServe, overrides{})
	require.NoError(t, err)
	t.Cleanup(a.close)

	handler, err := newServerMux(a)
	require.NoError(t, err)

	return handler
}

func post(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/transform", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestServe_Transform(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)

	body, err := json.Marshal(loader.Request{Source: lodashSource, Filename: "a.ts"})
	require.NoError(t, err)

	rec := post(t, handler, string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp transformResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, lodashOutput, resp.Output)
	assert.True(t, resp.Cacheable)
	assert.True(t, resp.Changed)
	assert.Empty(t, resp.Error)
	require.Len(t, resp.Edits, 1)
	assert.Equal(t, loader.EditSummary{Line: 1, Module: "lodash", Members: 2}, resp.Edits[0])
}

func TestServe_TransformTargetsOverride(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)

	rec := post(t, handler, `{"source":"import { map } from 'ramda';","targets":["ramda"],"dialect":"javascript"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp transformResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "import map = require('ramda/map');", resp.Output)
	assert.Equal(t, "javascript", resp.Dialect)
}

func TestServe_RejectsInvalidRequests(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "{"},
		{name: "missing source", body: `{"filename":"a.ts"}`},
		{name: "wrong type", body: `{"source":42}`},
		{name: "unknown field", body: `{"source":"","extra":true}`},
		{name: "unknown dialect", body: `{"source":"","dialect":"cobol"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := post(t, handler, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestServe_SourceTooLarge(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)

	body, err := json.Marshal(loader.Request{Source: strings.Repeat("a", loader.MaxSourceBytes+1)})
	require.NoError(t, err)

	rec := post(t, handler, string(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServe_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transform", http.NoBody))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServe_Healthz(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServe_MetricsAfterTransform(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)

	rec := post(t, handler, `{"source":"import { map } from 'lodash';"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "importsplit_requests_total")
	assert.Contains(t, rec.Body.String(), "importsplit_rewrite_modules_total")
}

func TestServe_RepeatedSourceServedFromCache(t *testing.T) {
	t.Parallel()

	a, err := newApp(&rootFlags{quiet: true}, observability.ModeServe, overrides{})
	require.NoError(t, err)
	t.Cleanup(a.close)
	require.NotNil(t, a.cache)

	handler, err := newServerMux(a)
	require.NoError(t, err)

	body := `{"source":"import { map } from 'lodash';"}`

	first := post(t, handler, body)
	second := post(t, handler, body)

	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int64(1), a.cache.CacheHits())
}
