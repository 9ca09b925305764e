package models

// Aggregate is a vendor minute aggregate (AM event).
type Aggregate struct {
	Symbol  string
	StartMs int64
	Open    float64
	High    float64
	Low     float64
	Close   float64
	Volume  float64
}

// Trade is a single vendor trade print (T event).
type Trade struct {
	Symbol      string
	TimestampMs int64
	Price       float64
	Size        float64
}

// StreamStatus is a vendor control message such as auth_success.
type StreamStatus struct {
	Status  string
	Message string
}

// StreamEvent carries exactly one of its fields.
type StreamEvent struct {
	Aggregate *Aggregate
	Trade     *Trade
	Status    *StreamStatus
}

const (
	MessageSnapshot = "snapshot"
	MessageBar      = "bar"
)

// SnapshotMessage is both the snapshot endpoint body and the first SSE event.
type SnapshotMessage struct {
	OK     bool   `json:"ok"`
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
	TF     string `json:"tf"`
	Mode   string `json:"mode"`
	Bars   []Bar  `json:"bars"`
}

// BarMessage is a single SSE bar update.
type BarMessage struct {
	OK     bool   `json:"ok"`
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
	TF     string `json:"tf"`
	Mode   string `json:"mode"`
	Bar    Bar    `json:"bar"`
}

// Health is the /healthz body.
type Health struct {
	OK          bool     `json:"ok"`
	WSConnected bool     `json:"wsConnected"`
	Symbols     []string `json:"symbols"`
	Subscribers int      `json:"subscribers"`
}
