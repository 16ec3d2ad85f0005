package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/sendparcel/internal/server"
	"github.com/tournevent/sendparcel/internal/telemetry"
	"github.com/tournevent/sendparcel/pkg/parcel"
	"github.com/tournevent/sendparcel/pkg/parcel/dummy"
	"github.com/tournevent/sendparcel/pkg/parcel/memory"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Prometheus collectors register once per process.
var testMetrics = telemetry.NewMetrics()

type testServer struct {
	handler http.Handler
	repo    *memory.Repository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dummy.ResetSequence()

	logger := otelzap.New(zap.NewNop())
	registry := parcel.NewRegistry()
	require.NoError(t, registry.Register(dummy.Descriptor()))

	repo := memory.NewRepository()
	flow := parcel.NewFlow(parcel.FlowConfig{
		Repository: repo,
		Registry:   registry,
		Logger:     logger,
	})

	srv := server.New(server.Config{Port: 8080}, flow, registry, repo, logger, testMetrics)
	return &testServer{handler: srv.Handler(), repo: repo}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createBody() map[string]any {
	return map[string]any{
		"provider": "dummy",
		"sender": map[string]any{
			"name": "Sender", "line1": "Main 1", "city": "Warsaw",
			"postal_code": "00-001", "country_code": "PL",
		},
		"receiver": map[string]any{
			"name": "Receiver", "line1": "Haupt 2", "city": "Berlin",
			"postal_code": "10115", "country_code": "DE",
		},
		"parcels": []map[string]any{{"weight_kg": 1.5}},
	}
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_Providers(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := ts.decode(t, rec)
	providers, ok := body["providers"].([]any)
	require.True(t, ok)
	require.Len(t, providers, 1)
	first := providers[0].(map[string]any)
	assert.Equal(t, "dummy", first["slug"])
	assert.Equal(t, "Dummy", first["display_name"])
}

func TestServer_CreateShipment(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/shipments", createBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	body := ts.decode(t, rec)
	assert.Equal(t, "label_ready", body["status"])
	assert.Equal(t, "dummy-1", body["external_id"])
	assert.Equal(t, "DUMMY-1", body["tracking_number"])
	assert.NotEmpty(t, body["label_url"])
}

func TestServer_CreateShipment_InvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/shipments", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CreateShipment_UnknownProvider(t *testing.T) {
	ts := newTestServer(t)

	body := createBody()
	body["provider"] = "nonexistent"
	rec := ts.do(t, http.MethodPost, "/shipments", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GetShipment(t *testing.T) {
	ts := newTestServer(t)

	created := ts.decode(t, ts.do(t, http.MethodPost, "/shipments", createBody()))
	id := created["id"].(string)

	rec := ts.do(t, http.MethodGet, "/shipments/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, ts.decode(t, rec)["id"])
}

func TestServer_GetShipment_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/shipments/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CreateLabel_WrongStatus(t *testing.T) {
	ts := newTestServer(t)

	// The dummy returns an inline label, so the shipment is already
	// LABEL_READY and a second label request has no valid transition.
	created := ts.decode(t, ts.do(t, http.MethodPost, "/shipments", createBody()))
	id := created["id"].(string)

	rec := ts.do(t, http.MethodPost, "/shipments/"+id+"/label", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_Webhook_AdvancesStatus(t *testing.T) {
	ts := newTestServer(t)

	created := ts.decode(t, ts.do(t, http.MethodPost, "/shipments", createBody()))
	id := created["id"].(string)

	raw, err := json.Marshal(map[string]any{"status": "in_transit"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/dummy/"+id, bytes.NewReader(raw))
	req.Header.Set("X-Dummy-Token", "dummy-token")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in_transit", ts.decode(t, rec)["status"])
}

func TestServer_Webhook_BadToken(t *testing.T) {
	ts := newTestServer(t)

	created := ts.decode(t, ts.do(t, http.MethodPost, "/shipments", createBody()))
	id := created["id"].(string)

	raw, err := json.Marshal(map[string]any{"status": "in_transit"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/dummy/"+id, bytes.NewReader(raw))
	req.Header.Set("X-Dummy-Token", "wrong")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Rejected callbacks leave the shipment untouched.
	get := ts.do(t, http.MethodGet, "/shipments/"+id, nil)
	assert.Equal(t, "label_ready", ts.decode(t, get)["status"])
}

func TestServer_Webhook_ProviderMismatch(t *testing.T) {
	ts := newTestServer(t)

	created := ts.decode(t, ts.do(t, http.MethodPost, "/shipments", createBody()))
	id := created["id"].(string)

	rec := ts.do(t, http.MethodPost, "/webhooks/otherpost/"+id, map[string]any{"status": "in_transit"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Cancel(t *testing.T) {
	ts := newTestServer(t)

	created := ts.decode(t, ts.do(t, http.MethodPost, "/shipments", createBody()))
	id := created["id"].(string)

	rec := ts.do(t, http.MethodPost, "/shipments/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", ts.decode(t, rec)["status"])

	// Cancelling again is no longer a valid transition.
	again := ts.do(t, http.MethodPost, "/shipments/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, again.Code)
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}