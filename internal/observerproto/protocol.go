package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeGrid      = "GRID"
	TypeGrain     = "GRAIN"
	TypeDone      = "DONE"
	TypeError     = "ERROR"
)

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`

	// Optional: skip grains with seq < FromSeq.
	FromSeq int `json:"from_seq,omitempty"`
	// Optional: omit terrain cells from the GRID message.
	NoTerrain bool `json:"no_terrain,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string    `json:"protocol_version"`
	Runs            []RunInfo `json:"runs"`
}

type Bounds struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

type RunInfo struct {
	RunID         string `json:"run_id"`
	Mode          string `json:"mode"`
	Source        [2]int `json:"source"`
	Grains        int    `json:"grains"`
	Outcome       string `json:"outcome"`
	TerrainBounds Bounds `json:"terrain_bounds"`
	Bounds        Bounds `json:"bounds"`
	FloorY        *int   `json:"floor_y,omitempty"`
	Digest        string `json:"digest,omitempty"`
}

// Server -> Client. Terrain of the subscribed run, sent once.
type GridMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Run             RunInfo  `json:"run"`
	Rocks           [][2]int `json:"rocks"`
	Raster          *Raster  `json:"raster,omitempty"`
}

// Raster is the terrain inside Bounds, row-major from the top row, as
// base64(varint (kind, run_len) pairs). Kind 0 is empty, 1 is rock.
type Raster struct {
	Bounds   Bounds `json:"bounds"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

const RasterRLE = "RLE"

// Server -> Client. One per dropped grain, in drop order.
type GrainMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Seq             int    `json:"seq"`
	Outcome         string `json:"outcome"`
	Pos             [2]int `json:"pos"`
}

// Server -> Client. Last message of a stream.
type DoneMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Grains          int    `json:"grains"`
	Digest          string `json:"digest,omitempty"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

const (
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrRunNotFound = "E_RUN_NOT_FOUND"
)
