package models

// Session is one host's participation in a lockstep session.
type Session struct {
	ID        string `json:"id"`
	PlayerID  uint32 `json:"player_id"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
}

// Segment is a compressed run of consecutive confirmed batches.
type Segment struct {
	SessionID string `json:"session_id"`
	PlayerID  uint32 `json:"player_id"`
	FirstTick uint64 `json:"first_tick"`
	LastTick  uint64 `json:"last_tick"`
	Archive   []byte `json:"-"`
	CreatedAt int64  `json:"created_at"`
}
