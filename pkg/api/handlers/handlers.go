package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cbodonnell/lockstep/pkg/lockstep"
	"github.com/cbodonnell/lockstep/pkg/log"
)

// StatusProvider is implemented by every lockstep host.
type StatusProvider interface {
	Status() lockstep.Status
}

// SessionResponse is the body of GET /session.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	PlayerID  uint32 `json:"player_id"`
	Tick      uint64 `json:"tick"`
}

func HandleGetSession(provider StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := provider.Status()
		writeJSON(w, SessionResponse{
			SessionID: status.SessionID,
			Role:      status.Role,
			PlayerID:  status.PlayerID,
			Tick:      status.Tick,
		})
	}
}

func HandleListPeers(provider StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peers := provider.Status().Peers
		if peers == nil {
			peers = []lockstep.PeerStatus{}
		}
		writeJSON(w, peers)
	}
}

func HandleGetPeer(provider StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peerID, err := strconv.ParseUint(mux.Vars(r)["peerID"], 10, 32)
		if err != nil {
			http.Error(w, "Failed to parse peerID", http.StatusBadRequest)
			return
		}

		for _, peer := range provider.Status().Peers {
			if peer.PlayerID == uint32(peerID) {
				writeJSON(w, peer)
				return
			}
		}
		http.Error(w, "Peer not found", http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
