package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// EveryTicks thins the stream to one frame per N ticks (default 1).
	EveryTicks int `json:"every_ticks,omitempty"`
	// Resources includes resource entities in frames.
	Resources bool `json:"resources,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Torus           bool    `json:"torus"`
	Seed            int64   `json:"seed"`
	TickRateHz      int     `json:"tick_rate_hz"`
	Population      int     `json:"population"`
	Coop            float64 `json:"coop"`
	EnergyShareProb float64 `json:"energy_share_prob"`
	Center          [2]int  `json:"center"`
	BaseRadius      int     `json:"base_radius"`
}

// Server -> Client.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Explorers   int     `json:"explorers"`
	Exploiters  int     `json:"exploiters"`
	Resources   int     `json:"resources"`
	MeanReserve float64 `json:"mean_reserve"`

	Entities []EntityState `json:"entities"`
	Births   []uint64      `json:"births,omitempty"`
	Deaths   []DeathInfo   `json:"deaths,omitempty"`
}

// EntityState is one grid occupant. Energy is the reserve for resources.
type EntityState struct {
	ID     uint64  `json:"id"`
	Type   string  `json:"type"`
	Pos    [2]int  `json:"pos"`
	Energy float64 `json:"energy"`
}

type DeathInfo struct {
	ID   uint64 `json:"id"`
	Kind string `json:"kind"`
	Age  int    `json:"age"`
}
