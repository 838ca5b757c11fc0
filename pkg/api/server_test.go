package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbodonnell/lockstep/pkg/api/handlers"
	authproviders "github.com/cbodonnell/lockstep/pkg/auth/providers"
	"github.com/cbodonnell/lockstep/pkg/lockstep"
)

type fixedStatus lockstep.Status

func (s fixedStatus) Status() lockstep.Status {
	return lockstep.Status(s)
}

func testStatus() fixedStatus {
	return fixedStatus{
		SessionID: "s",
		Role:      "leader",
		PlayerID:  1,
		Tick:      42,
		Peers: []lockstep.PeerStatus{
			{PlayerID: 2, State: "synchronized", Connection: lockstep.Connected, RTTMillis: 3.5, AckedTick: 41},
			{PlayerID: 3, State: "suspect", Connection: lockstep.Suspect, AckedTick: 30},
		},
	}
}

func serve(t *testing.T, server *APIServer, method string, path string, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAPIServer_Routes(t *testing.T) {
	server := NewAPIServer(NewAPIServerOptions{Status: testStatus()})

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{
			name:   "session",
			path:   "/session",
			status: http.StatusOK,
			body:   `{"session_id":"s","role":"leader","player_id":1,"tick":42}`,
		},
		{
			name:   "peers",
			path:   "/peers",
			status: http.StatusOK,
			body: `[{"player_id":2,"state":"synchronized","connection":"connected","rtt_ms":3.5,"acked_tick":41},
				{"player_id":3,"state":"suspect","connection":"suspect","rtt_ms":0,"acked_tick":30}]`,
		},
		{
			name:   "peer",
			path:   "/peers/3",
			status: http.StatusOK,
			body:   `{"player_id":3,"state":"suspect","connection":"suspect","rtt_ms":0,"acked_tick":30}`,
		},
		{
			name:   "unknown peer",
			path:   "/peers/9",
			status: http.StatusNotFound,
		},
		{
			name:   "not a peer id",
			path:   "/peers/abc",
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, server, http.MethodGet, tt.path, "")
			require.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, rec.Body.String())
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestAPIServer_ReadOnly(t *testing.T) {
	server := NewAPIServer(NewAPIServerOptions{Status: testStatus()})

	rec := serve(t, server, http.MethodPost, "/session", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = serve(t, server, http.MethodOptions, "/peers", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPIServer_EmptyPeers(t *testing.T) {
	server := NewAPIServer(NewAPIServerOptions{Status: fixedStatus{SessionID: "s"}})

	rec := serve(t, server, http.MethodGet, "/peers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var peers []lockstep.PeerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &peers))
	assert.NotNil(t, peers)
	assert.Empty(t, peers)
}

func TestAPIServer_Auth(t *testing.T) {
	server := NewAPIServer(NewAPIServerOptions{
		Status:       testStatus(),
		AuthProvider: authproviders.NewStaticTokenProvider("secret"),
	})

	assert.Equal(t, http.StatusUnauthorized, serve(t, server, http.MethodGet, "/session", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, server, http.MethodGet, "/session", "wrong").Code)
	assert.Equal(t, http.StatusOK, serve(t, server, http.MethodGet, "/session", "secret").Code)
}

var _ handlers.StatusProvider = fixedStatus{}
