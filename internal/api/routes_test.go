package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-sync-service/internal/api"
	"knowledge-sync-service/internal/config"
	"knowledge-sync-service/internal/database"
	"knowledge-sync-service/internal/entity"
	"knowledge-sync-service/internal/store"
	"knowledge-sync-service/internal/sync"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := database.Open(config.StorageConfig{
		Type:     "sqlite",
		FilePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)

	s, err := store.New(db)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := config.SyncConfig{MaxPushBatch: 100, MaxPullChanges: 100}
	manager := sync.NewManager(cfg, s, entity.NewSnapshotApplier(s), sync.LogNotifier{})

	srv := httptest.NewServer(api.NewHandler(manager).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, owner string, body interface{}, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissingOwnerHeader(t *testing.T) {
	srv := newTestServer(t)

	status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/devices", "",
		map[string]string{"device_name": "laptop", "device_type": "desktop"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestDeviceEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var device store.Device
	status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/devices", "alice",
		map[string]string{"device_name": "laptop", "device_type": "desktop"}, &device)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, device.DeviceID)

	// Empty name is a 400.
	status = doJSON(t, http.MethodPost, srv.URL+"/api/v1/devices", "alice",
		map[string]string{"device_name": "", "device_type": "desktop"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var devices []store.Device
	status = doJSON(t, http.MethodGet, srv.URL+"/api/v1/devices", "alice", nil, &devices)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, devices, 1)

	status = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/devices/"+device.DeviceID, "alice", nil, nil)
	assert.Equal(t, http.StatusOK, status)

	// Deactivating someone else's device is a 404.
	status = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/devices/"+device.DeviceID, "bob", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func registerHTTP(t *testing.T, srv *httptest.Server, owner, name string) string {
	t.Helper()
	var device store.Device
	status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/devices", owner,
		map[string]string{"device_name": name, "device_type": "mobile"}, &device)
	require.Equal(t, http.StatusCreated, status)
	return device.DeviceID
}

func TestSyncFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	devA := registerHTTP(t, srv, "alice", "laptop")
	devB := registerHTTP(t, srv, "alice", "phone")

	// A pushes a create, then an update.
	var pushRes sync.PushResult
	status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync/push", "alice", map[string]interface{}{
		"device_id": devA,
		"changes": []map[string]interface{}{
			{"entity_type": "knowledge", "entity_id": "K1", "operation": "create", "payload": map[string]string{"body": "v1"}, "client_version": 0},
		},
	}, &pushRes)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, pushRes.Accepted, 1)
	assert.Equal(t, int64(1), pushRes.Accepted[0].Version)

	// B pulls and sees it.
	var pullRes sync.PullResult
	status = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync/pull", "alice",
		map[string]interface{}{"device_id": devB}, &pullRes)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, pullRes.Changes, 1)
	assert.Equal(t, "K1", pullRes.Changes[0].EntityID)

	// Both edit; A wins, B's stale push surfaces as a conflict.
	status = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync/push", "alice", map[string]interface{}{
		"device_id": devA,
		"changes": []map[string]interface{}{
			{"entity_type": "knowledge", "entity_id": "K1", "operation": "update", "payload": map[string]string{"body": "from A"}, "client_version": 1},
		},
	}, &pushRes)
	require.Equal(t, http.StatusOK, status)

	status = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync/push", "alice", map[string]interface{}{
		"device_id": devB,
		"changes": []map[string]interface{}{
			{"entity_type": "knowledge", "entity_id": "K1", "operation": "update", "payload": map[string]string{"body": "from B"}, "client_version": 1},
		},
	}, &pushRes)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, pushRes.Conflicts, 1)
	conflictID := pushRes.Conflicts[0].ConflictID

	// Conflicts list shows it.
	var conflicts []store.Conflict
	status = doJSON(t, http.MethodGet, srv.URL+"/api/v1/sync/conflicts?device_id="+devB, "alice", nil, &conflicts)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, conflicts, 1)
	assert.Equal(t, conflictID, conflicts[0].ID)

	// Resolve with device2.
	var entry store.ChangeEntry
	url := fmt.Sprintf("%s/api/v1/sync/conflicts/%s/resolve", srv.URL, conflictID)
	status = doJSON(t, http.MethodPost, url, "alice",
		map[string]string{"resolution": "device2"}, &entry)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(3), entry.Version)
	assert.JSONEq(t, `{"body":"from B"}`, string(entry.Payload))

	// Second resolve is a 404.
	status = doJSON(t, http.MethodPost, url, "alice",
		map[string]string{"resolution": "device1"}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestInactiveDeviceOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	dev := registerHTTP(t, srv, "alice", "laptop")
	status := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/devices/"+dev, "alice", nil, nil)
	require.Equal(t, http.StatusOK, status)

	status = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync/pull", "alice",
		map[string]interface{}{"device_id": dev}, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestInvalidJSONBody(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/sync/pull", bytes.NewBufferString("{"))
	require.NoError(t, err)
	req.Header.Set("X-Owner-ID", "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
