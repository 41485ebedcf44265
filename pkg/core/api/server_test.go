package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/laundrymon/pkg/core"
	"github.com/mfreeman451/laundrymon/pkg/db"
	"github.com/mfreeman451/laundrymon/pkg/rooms"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dbService, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	mapper := rooms.NewMapper(map[string]string{"a1": "North Hall"})
	engine := core.NewEngine(dbService, mapper, core.Config{})

	server := httptest.NewServer(NewAPIServer(engine).Router())

	t.Cleanup(func() {
		server.Close()
		_ = dbService.Close()
	})

	return server
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()

	defer func() {
		_ = resp.Body.Close()
	}()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestPostMachineValidation(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing machine id",
			body: `{"running": true, "empty": false}`,
		},
		{
			name: "missing running flag",
			body: `{"machineId": "a1-m1", "empty": false}`,
		},
		{
			name: "missing empty flag",
			body: `{"machineId": "a1-m1", "running": true}`,
		},
		{
			name: "non-boolean running",
			body: `{"machineId": "a1-m1", "running": "yes", "empty": false}`,
		},
		{
			name: "invalid json",
			body: `{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, server.URL+"/api/machines", tt.body)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body ErrorResponse
			decodeBody(t, resp, &body)
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestPostMachineReportsStateChange(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/machines", `{"machineId": "a1-m1", "running": true, "empty": false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var first ReportResponse
	decodeBody(t, resp, &first)
	assert.True(t, first.Success)
	assert.Equal(t, "a1-m1", first.MachineID)
	assert.True(t, first.StateChanged)
	assert.Equal(t, ReceivedFlags{Running: true, Empty: false}, first.Received)

	// Identical report: accepted, but no state change.
	resp = postJSON(t, server.URL+"/api/machines", `{"machineId": "a1-m1", "running": true, "empty": false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var second ReportResponse
	decodeBody(t, resp, &second)
	assert.True(t, second.Success)
	assert.False(t, second.StateChanged)
}

func TestGetMachines(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/machines", `{"machineId": "a1-m1", "running": false, "empty": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err := http.Get(server.URL + "/api/machines")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body MachinesResponse
	decodeBody(t, resp, &body)

	assert.True(t, body.Success)
	assert.False(t, body.Timestamp.IsZero())
	require.Contains(t, body.Machines, "a1-m1")

	status := body.Machines["a1-m1"]
	assert.False(t, status.Running)
	assert.True(t, status.Empty)
	assert.True(t, status.Available)
	require.NotNil(t, status.Room)
	assert.Equal(t, "North Hall", *status.Room)
}

func TestGetMachine(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/machines", `{"machineId": "a1-m1", "running": true, "empty": false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err := http.Get(server.URL + "/api/machines/a1-m1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body MachineResponse
	decodeBody(t, resp, &body)
	assert.True(t, body.Success)
	assert.True(t, body.Machine.Running)
	assert.True(t, body.Machine.Available)

	resp, err = http.Get(server.URL + "/api/machines/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errBody ErrorResponse
	decodeBody(t, resp, &errBody)
	assert.False(t, errBody.Success)
	assert.Equal(t, "Machine not found", errBody.Error)
}

func TestGetHistory(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/machines", `{"machineId": "a1-m1", "running": false, "empty": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/machines", `{"machineId": "a1-m1", "running": true, "empty": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err := http.Get(server.URL + "/api/history?machineId=a1-m1&limit=10")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body HistoryResponse
	decodeBody(t, resp, &body)

	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Records, 2)
	assert.Equal(t, db.ChangeUpdate, body.Records[0].ChangeType)
	assert.Equal(t, db.ChangeInitial, body.Records[1].ChangeType)

	require.Contains(t, body.Stats, "a1-m1")
	assert.Equal(t, 2, body.Stats["a1-m1"].TotalChanges)
	assert.Equal(t, 1, body.Stats["a1-m1"].TotalRunningChanges)

	assert.Equal(t, "a1-m1", body.Query.MachineID)
	assert.Equal(t, "10", body.Query.Limit)
}

func TestGetHistoryRejectsBadParams(t *testing.T) {
	server := newTestServer(t)

	for _, target := range []string{
		"/api/history?limit=abc",
		"/api/history?limit=-1",
		"/api/history?startDate=notadate",
		"/api/history?endDate=notadate",
	} {
		resp, err := http.Get(server.URL + target)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
		_ = resp.Body.Close()
	}
}

func TestCORSPreflight(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/machines", http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
