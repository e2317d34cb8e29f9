package streaming

import (
	"encoding/json"
	"time"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRun = "start_run"
	TypeEndRun   = "end_run"
	TypeWaypoint = "waypoint"
	TypeSummary  = "summary"
	TypeAck      = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRunPayload opens a collection run on the receiving side.
type StartRunPayload struct {
	RunID      string    `json:"runId"`
	MissionURL string    `json:"missionUrl"`
	StartedAt  time.Time `json:"startedAt"`
}

// RecordPayload carries one dataset record of a run.
type RecordPayload struct {
	RunID  string         `json:"runId"`
	Key    int            `json:"key"`
	Fields map[string]any `json:"fields"`
}

// EndRunPayload closes a run. Records is the number of records sent for it.
type EndRunPayload struct {
	RunID      string    `json:"runId"`
	FinishedAt time.Time `json:"finishedAt"`
	Records    int       `json:"records"`
}
