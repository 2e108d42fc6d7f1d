package push

import (
	"fmt"
	"sync"
	"time"

	"github.com/labsuite/labops/internal/models"
)

// Transports.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

const (
	clientSendBuffer = 64
	pingInterval     = 30 * time.Second
	maxConnLifetime  = 4 * time.Hour
)

// Client is one live subscription to a tenant scope.
type Client struct {
	ID          string
	UserID      string
	Scope       models.Scope
	Transport   string
	connectedAt time.Time
	send        chan []byte
	closeOnce   sync.Once
}

// NewClient creates a Client. The id encodes the user, the scope and the
// connect time.
func NewClient(userID string, sc models.Scope, transport string) *Client {
	now := time.Now()
	return &Client{
		ID:          fmt.Sprintf("%s:%s:%s:%d", userID, sc.CompanyID, sc.LocationID, now.UnixNano()),
		UserID:      userID,
		Scope:       sc,
		Transport:   transport,
		connectedAt: now,
		send:        make(chan []byte, clientSendBuffer),
	}
}

// Messages returns the client's outbound frames. It is closed when the hub
// drops the client.
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// closeSend safely closes the send channel exactly once.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// deadline is when the connection must end at the latest.
func (c *Client) deadline(sessionExpiry time.Time) time.Time {
	d := c.connectedAt.Add(maxConnLifetime)
	if !sessionExpiry.IsZero() && sessionExpiry.Before(d) {
		d = sessionExpiry
	}

	return d
}
