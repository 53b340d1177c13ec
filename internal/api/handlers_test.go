package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"idleforge/internal/sim"
)

// mockRuntime implements RuntimeInterface for handler tests without the
// simulation loop.
type mockRuntime struct {
	submitOK   bool
	submitted  []sim.Command
	snapshot   *sim.ProgressionSnapshot
	background []bool
}

func newMockRuntime() *mockRuntime {
	return &mockRuntime{
		submitOK: true,
		snapshot: &sim.ProgressionSnapshot{Sequence: 3, Step: 7},
	}
}

func (m *mockRuntime) Submit(cmd sim.Command) bool {
	m.submitted = append(m.submitted, cmd)
	return m.submitOK
}
func (m *mockRuntime) Snapshot() *sim.ProgressionSnapshot    { return m.snapshot }
func (m *mockRuntime) BusSnapshot() sim.BackPressureSnapshot { return sim.BackPressureSnapshot{} }
func (m *mockRuntime) DispatchStats() sim.DispatchStats      { return sim.DispatchStats{Executed: 5} }
func (m *mockRuntime) JournalStats() sim.JournalStats        { return sim.JournalStats{Total: 5} }
func (m *mockRuntime) StateDigest() uint64                   { return 0xdeadbeef }

func (m *mockRuntime) SetBackground(background bool) {
	m.background = append(m.background, background)
}

func newTestServer(t *testing.T, mock *mockRuntime, saveFunc func() error) *httptest.Server {
	t.Helper()
	router := NewRouter(RouterConfig{
		Runtime:        mock,
		SaveFunc:       saveFunc,
		DisableLogging: true,
		RateLimitConfig: &RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Minute,
		},
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestGetSnapshot tests the snapshot endpoint returns the published state
func TestGetSnapshot(t *testing.T) {
	ts := newTestServer(t, newMockRuntime(), nil)

	resp, err := http.Get(ts.URL + "/api/snapshot")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var snap sim.ProgressionSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if snap.Step != 7 || snap.Sequence != 3 {
		t.Errorf("Expected step 7 sequence 3, got %d / %d", snap.Step, snap.Sequence)
	}
}

// TestPostCommandAccepted tests successful submission with a generated
// request id and player priority default
func TestPostCommandAccepted(t *testing.T) {
	mock := newMockRuntime()
	ts := newTestServer(t, mock, nil)

	resp := postJSON(t, ts.URL+"/api/commands", `{"type":"PurchaseGenerator","payload":{"generatorId":"panel","count":1}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Accepted  bool   `json:"accepted"`
		RequestID string `json:"requestId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !result.Accepted || result.RequestID == "" {
		t.Errorf("Expected accepted with generated request id, got %+v", result)
	}

	if len(mock.submitted) != 1 {
		t.Fatalf("Expected 1 submitted command, got %d", len(mock.submitted))
	}
	cmd := mock.submitted[0]
	if cmd.Type != "PurchaseGenerator" || cmd.Priority != sim.PriorityPlayer {
		t.Errorf("Unexpected submitted command: %+v", cmd)
	}
	if cmd.RequestID != result.RequestID {
		t.Errorf("Request id mismatch: %s vs %s", cmd.RequestID, result.RequestID)
	}
}

// TestPostCommandValidation tests the rejection paths at the HTTP boundary
func TestPostCommandValidation(t *testing.T) {
	mock := newMockRuntime()
	ts := newTestServer(t, mock, nil)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{not json`, http.StatusBadRequest},
		{"missing type", `{"priority":"player"}`, http.StatusBadRequest},
		{"unknown priority", `{"type":"ToggleGenerator","priority":"root"}`, http.StatusBadRequest},
		{"system priority forbidden", `{"type":"PrestigeReset","priority":"system"}`, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/commands", tc.body)
			if resp.StatusCode != tc.want {
				t.Errorf("Expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
	if len(mock.submitted) != 0 {
		t.Errorf("Rejected requests must not reach the runtime, got %d", len(mock.submitted))
	}
}

// TestPostCommandQueueFull tests backpressure translation to 503
func TestPostCommandQueueFull(t *testing.T) {
	mock := newMockRuntime()
	mock.submitOK = false
	ts := newTestServer(t, mock, nil)

	resp := postJSON(t, ts.URL+"/api/commands", `{"type":"ToggleGenerator"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}

// TestPostFocus tests the focus flag inverting into the background budget
func TestPostFocus(t *testing.T) {
	mock := newMockRuntime()
	ts := newTestServer(t, mock, nil)

	postJSON(t, ts.URL+"/api/focus", `{"focused":false}`)
	postJSON(t, ts.URL+"/api/focus", `{"focused":true}`)

	if len(mock.background) != 2 || mock.background[0] != true || mock.background[1] != false {
		t.Errorf("Expected background [true false], got %v", mock.background)
	}
}

// TestGetDigest tests the digest endpoint
func TestGetDigest(t *testing.T) {
	ts := newTestServer(t, newMockRuntime(), nil)

	resp, err := http.Get(ts.URL + "/api/digest")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var result struct {
		Digest uint64 `json:"digest"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if result.Digest != 0xdeadbeef {
		t.Errorf("Expected digest 0xdeadbeef, got %x", result.Digest)
	}
}

// TestSaveExport tests the three save outcomes: unconfigured, success
// and persistence failure
func TestSaveExport(t *testing.T) {
	resp := postJSON(t, newTestServer(t, newMockRuntime(), nil).URL+"/api/save/export", `{}`)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("Expected 501 when save is unconfigured, got %d", resp.StatusCode)
	}

	saved := false
	okServer := newTestServer(t, newMockRuntime(), func() error {
		saved = true
		return nil
	})
	resp = postJSON(t, okServer.URL+"/api/save/export", `{}`)
	if resp.StatusCode != http.StatusOK || !saved {
		t.Errorf("Expected 200 and save invoked, got %d / %v", resp.StatusCode, saved)
	}

	failServer := newTestServer(t, newMockRuntime(), func() error {
		return errors.New("disk full")
	})
	resp = postJSON(t, failServer.URL+"/api/save/export", `{}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected 500 on save failure, got %d", resp.StatusCode)
	}
}

// TestHealthEndpoint tests the liveness probe
func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, newMockRuntime(), nil)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}
