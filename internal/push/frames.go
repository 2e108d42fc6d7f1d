package push

import (
	"encoding/json"
	"time"

	"github.com/labsuite/labops/internal/models"
)

// Frame types sent to subscribers.
const (
	FrameConnected = "connected"
	FramePing      = "ping"
	FrameUpdate    = "masterDataUpdate"
	FrameShutdown  = "shutdown"
)

// ConnectedFrame is the first frame of every connection.
type ConnectedFrame struct {
	Type         string    `json:"type"`
	ConnectionID string    `json:"connectionId"`
	CompanyID    string    `json:"companyId"`
	LocationID   string    `json:"locationId"`
	Timestamp    time.Time `json:"timestamp"`
}

// PingFrame is the heartbeat.
type PingFrame struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateFrame carries one change event.
type UpdateFrame struct {
	Type       string    `json:"type"`
	DataType   string    `json:"dataType"`
	Action     string    `json:"action"`
	Record     any       `json:"record"`
	CompanyID  string    `json:"companyId"`
	LocationID string    `json:"locationId"`
	Timestamp  time.Time `json:"timestamp"`
}

var shutdownFrame = []byte(`{"type":"shutdown","message":"server shutting down"}`)

func connectedFrame(c *Client) ([]byte, error) {
	return json.Marshal(ConnectedFrame{
		Type:         FrameConnected,
		ConnectionID: c.ID,
		CompanyID:    c.Scope.CompanyID,
		LocationID:   c.Scope.LocationID,
		Timestamp:    time.Now().UTC(),
	})
}

func pingFrame() ([]byte, error) {
	return json.Marshal(PingFrame{Type: FramePing, Timestamp: time.Now().UTC()})
}

func updateFrame(ev models.ChangeEvent) ([]byte, error) {
	return json.Marshal(UpdateFrame{
		Type:       FrameUpdate,
		DataType:   ev.DataType,
		Action:     ev.Action,
		Record:     ev.Record,
		CompanyID:  ev.Scope.CompanyID,
		LocationID: ev.Scope.LocationID,
		Timestamp:  ev.Timestamp,
	})
}
