package lockstep

// Status is a point-in-time view of a host for the status API.
type Status struct {
	SessionID string       `json:"session_id"`
	Role      string       `json:"role"`
	PlayerID  uint32       `json:"player_id"`
	Tick      uint64       `json:"tick"`
	Peers     []PeerStatus `json:"peers"`
}
