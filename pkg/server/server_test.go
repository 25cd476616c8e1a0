package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adwatch-hq/sentinel/pkg/config"
	"adwatch-hq/sentinel/pkg/policy/emergency"
	"adwatch-hq/sentinel/pkg/policy/engine"
	"adwatch-hq/sentinel/pkg/policy/quota"
	"adwatch-hq/sentinel/pkg/policy/ruleset"
	"adwatch-hq/sentinel/pkg/policy/whitelist"
	"adwatch-hq/sentinel/pkg/storage"
)

func newTestServer(t *testing.T, backend storage.Backend) *httptest.Server {
	t.Helper()

	provider, err := ruleset.NewStaticProvider(ruleset.Default())
	if err != nil {
		t.Fatalf("NewStaticProvider failed: %v", err)
	}
	eng, err := engine.New(engine.Options{
		Rules:     provider,
		Quota:     quota.NewTracker(backend, quota.Config{Location: time.UTC}, nil),
		Whitelist: whitelist.NewGuard(backend, nil),
		Emergency: emergency.NewInterlock(backend, nil),
	})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}

	srv, err := New(Options{
		Config: config.Default().Server,
		Engine: eng,
	})
	if err != nil {
		t.Fatalf("server.New failed: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return v
}

func passingCheckBody() map[string]any {
	return map[string]any{
		"kind": "PAUSE_KEYWORD",
		"metrics": map[string]float64{
			"clicks":      50,
			"impressions": 2000,
			"cost":        25,
			"ctr":         1.2,
			"cpa":         10,
		},
		"confidence_score": 90,
	}
}

func TestCheck_Allowed(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()
	ts := newTestServer(t, backend)

	resp := postJSON(t, ts.URL+"/api/v1/check", passingCheckBody())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	decision := decodeBody[engine.Decision](t, resp)
	if !decision.Allowed || decision.ReasonCode != engine.ReasonAllChecksPassed {
		t.Errorf("Unexpected decision: %+v", decision)
	}
}

func TestCheck_PolicyRejectionIs200(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()
	ts := newTestServer(t, backend)

	resp := postJSON(t, ts.URL+"/api/v1/check", map[string]any{
		"kind":             "MODIFY_BUDGET",
		"confidence_score": 100,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Policy rejection should be 200, got %d", resp.StatusCode)
	}
	decision := decodeBody[engine.Decision](t, resp)
	if decision.Allowed || decision.ReasonCode != engine.ReasonForbiddenAction {
		t.Errorf("Unexpected decision: %+v", decision)
	}
}

func TestCheck_InvalidJSON(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()
	ts := newTestServer(t, backend)

	resp, err := http.Post(ts.URL+"/api/v1/check", "application/json", bytes.NewReader([]byte("{")))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

type offlineBackend struct {
	*storage.MemoryBackend
}

func (o *offlineBackend) EmergencyState(ctx context.Context) (*storage.EmergencyState, error) {
	return nil, fmt.Errorf("store offline")
}

func TestCheck_EngineUnavailableIs503(t *testing.T) {
	backend := &offlineBackend{MemoryBackend: storage.NewMemoryBackend()}
	defer backend.Close()
	ts := newTestServer(t, backend)

	resp := postJSON(t, ts.URL+"/api/v1/check", passingCheckBody())
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", resp.StatusCode)
	}
	decision := decodeBody[engine.Decision](t, resp)
	if decision.Allowed || decision.ReasonCode != engine.ReasonEngineUnavailable {
		t.Errorf("Unexpected decision: %+v", decision)
	}
}

func TestCheckBatch(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()
	ts := newTestServer(t, backend)

	resp := postJSON(t, ts.URL+"/api/v1/check/batch", []map[string]any{
		passingCheckBody(),
		{"kind": "MODIFY_BUDGET", "confidence_score": 100},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	result := decodeBody[engine.BatchResult](t, resp)
	if result.Total != 2 || result.AllowedCount != 1 || result.BlockedCount != 1 {
		t.Errorf("Unexpected aggregation: %+v", result)
	}
}

func TestExecutions(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()
	ts := newTestServer(t, backend)

	resp := postJSON(t, ts.URL+"/api/v1/executions", map[string]any{
		"kind": "PAUSE_KEYWORD", "count": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	snap := decodeBody[quota.Snapshot](t, resp)
	if snap.Kinds["PAUSE_KEYWORD"].Used != 1 {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}

	// Filling the quota yields a conflict.
	max := ruleset.Default().DailyMax("PAUSE_KEYWORD")
	resp = postJSON(t, ts.URL+"/api/v1/executions", map[string]any{
		"kind": "PAUSE_KEYWORD", "count": max,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 at quota cap, got %d", resp.StatusCode)
	}

	// Missing kind is a bad request.
	resp = postJSON(t, ts.URL+"/api/v1/executions", map[string]any{"count": 1})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing kind, got %d", resp.StatusCode)
	}
}

func TestQuotaStatusAndReset(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()
	ts := newTestServer(t, backend)

	postJSON(t, ts.URL+"/api/v1/executions", map[string]any{"kind": "ADJUST_BID", "count": 3}).Body.Close()

	resp, err := http.Get(ts.URL + "/api/v1/quota")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	snap := decodeBody[quota.Snapshot](t, resp)
	if snap.Kinds["ADJUST_BID"].Used != 3 {
		t.Errorf("Unexpected usage: %+v", snap.Kinds)
	}

	// Reset requires a reason.
	resp = postJSON(t, ts.URL+"/api/v1/quota/reset", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without reason, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/v1/quota/reset", map[string]any{"reason": "manual correction"})
	snap = decodeBody[quota.Snapshot](t, resp)
	if snap.Kinds["ADJUST_BID"].Used != 0 {
		t.Errorf("Expected zeroed counters, got %+v", snap.Kinds)
	}
}

func TestEmergencyLifecycle(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()
	ts := newTestServer(t, backend)

	resp := postJSON(t, ts.URL+"/api/v1/emergency/activate", map[string]any{
		"reason": "CPA doubled", "triggered_by": "anomaly-detector",
	})
	state := decodeBody[storage.EmergencyState](t, resp)
	if !state.Active {
		t.Fatal("Expected active state")
	}

	// All checks are now vetoed.
	resp = postJSON(t, ts.URL+"/api/v1/check", passingCheckBody())
	decision := decodeBody[engine.Decision](t, resp)
	if decision.ReasonCode != engine.ReasonEmergencyModeActive {
		t.Errorf("Expected EMERGENCY_MODE_ACTIVE, got %s", decision.ReasonCode)
	}

	resp = postJSON(t, ts.URL+"/api/v1/emergency/deactivate", map[string]any{
		"deactivated_by": "operator",
	})
	state = decodeBody[storage.EmergencyState](t, resp)
	if state.Active {
		t.Error("Expected inactive state")
	}

	resp, err := http.Get(ts.URL + "/api/v1/emergency")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	state = decodeBody[storage.EmergencyState](t, resp)
	if state.Active {
		t.Error("Expected persisted inactive state")
	}
}

func TestWhitelistEndpoints(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()
	ts := newTestServer(t, backend)

	resp := postJSON(t, ts.URL+"/api/v1/whitelist", map[string]any{
		"entity_id": "kw-42", "entity_text": "brand term", "reason": "core brand keyword",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	entry := decodeBody[storage.WhitelistEntry](t, resp)
	if entry.ID == "" || entry.EntityID != "kw-42" {
		t.Errorf("Unexpected entry: %+v", entry)
	}

	// Duplicate adds conflict.
	resp = postJSON(t, ts.URL+"/api/v1/whitelist", map[string]any{"entity_id": "kw-42"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate, got %d", resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/api/v1/whitelist")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	entries := decodeBody[[]*storage.WhitelistEntry](t, resp)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/whitelist/kw-42", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	// Removing again is a 404.
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestRuleSetEndpoint(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()
	ts := newTestServer(t, backend)

	resp, err := http.Get(ts.URL + "/api/v1/ruleset")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	rules := decodeBody[ruleset.RuleSet](t, resp)
	if !rules.IsAllowed("PAUSE_KEYWORD") || !rules.IsForbidden("MODIFY_BUDGET") {
		t.Errorf("Unexpected rule set: %+v", rules)
	}
}

func TestAuditEndpoint_Disabled(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()
	ts := newTestServer(t, backend)

	resp, err := http.Get(ts.URL + "/api/v1/audit")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 without audit store, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	backend := storage.NewMemoryBackend()
	defer backend.Close()
	ts := newTestServer(t, backend)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestHealthz_Unhealthy(t *testing.T) {
	backend := &offlineBackend{MemoryBackend: storage.NewMemoryBackend()}
	defer backend.Close()
	ts := newTestServer(t, backend)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}
