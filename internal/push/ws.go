package push

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

const (
	writeTimeout       = 10 * time.Second
	wsReadLimit        = 4096
	revalidateInterval = 5 * time.Minute
	revalidateTimeout  = 10 * time.Second
	pingTimeout        = 10 * time.Second
	maxMissedPongs     = int32(2)
)

// WSOptions configure a WebSocket subscription.
type WSOptions struct {
	// OriginPatterns are the allowed cross-origin hosts.
	OriginPatterns []string
	// SessionExpiry closes the connection when the session token expires.
	SessionExpiry time.Time
	// Revalidate is called periodically; an error closes the connection.
	Revalidate func(ctx context.Context) error
}

// ServeWS registers client, upgrades the request and pumps frames until the
// connection ends. A registration failure is returned before the upgrade.
func (h *Hub) ServeWS(appCtx context.Context, w http.ResponseWriter, r *http.Request, client *Client, opts WSOptions) error {
	if err := h.Register(r.Context(), client); err != nil {
		return err
	}
	defer h.Unregister(client)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:       opts.OriginPatterns,
		CompressionMode:      websocket.CompressionContextTakeover,
		CompressionThreshold: 128,
	})
	if err != nil {
		h.log.WithError(err).Warn("websocket accept failed")
		return nil
	}

	// The connection ends with the server or with the request.
	ctx, cancel := context.WithCancel(appCtx)
	defer cancel()
	go func() {
		select {
		case <-r.Context().Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	wc := &wsConn{hub: h, conn: conn, client: client, opts: opts}

	go func() {
		wc.readPump(ctx)
		cancel()
	}()
	wc.writePump(ctx)

	return nil
}

type wsConn struct {
	hub    *Hub
	conn   *websocket.Conn
	client *Client
	opts   WSOptions
}

// readPump discards inbound messages; reading keeps pings and close frames flowing.
func (c *wsConn) readPump(ctx context.Context) {
	c.conn.SetReadLimit(wsReadLimit)

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				c.hub.log.WithField("status", status).Debug("websocket client disconnected")
			}
			return
		}
	}
}

func (c *wsConn) write(ctx context.Context, msg []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return c.conn.Write(writeCtx, websocket.MessageText, msg)
}

// sendPing sends a heartbeat frame and a protocol ping. It reports whether
// the connection should be closed.
func (c *wsConn) sendPing(ctx context.Context, missedPongs *atomic.Int32) bool {
	frame, err := pingFrame()
	if err != nil || c.write(ctx, frame) != nil {
		return true
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err = c.conn.Ping(pingCtx)
	cancel()

	if err != nil {
		if missedPongs.Add(1) >= maxMissedPongs {
			c.hub.log.WithField("client_id", c.client.ID).Debug("closing websocket: missed pongs")
			return true
		}
		return false
	}

	missedPongs.Store(0)

	return false
}

func (c *wsConn) revalidate(ctx context.Context) bool {
	if c.opts.Revalidate == nil {
		return true
	}

	rctx, cancel := context.WithTimeout(ctx, revalidateTimeout)
	err := c.opts.Revalidate(rctx)
	cancel()

	if err != nil {
		c.hub.log.WithError(err).WithField("client_id", c.client.ID).Info("closing websocket: session no longer valid")
		c.conn.Close(websocket.StatusPolicyViolation, "session expired") //nolint:errcheck // best-effort
		return false
	}

	return true
}

// writePump writes hub frames, heartbeats and lifecycle closes.
func (c *wsConn) writePump(ctx context.Context) {
	defer c.conn.CloseNow() //nolint:errcheck // best-effort close on teardown

	first, err := connectedFrame(c.client)
	if err != nil || c.write(ctx, first) != nil {
		return
	}

	lifetime := time.NewTimer(time.Until(c.client.deadline(c.opts.SessionExpiry)))
	defer lifetime.Stop()

	revalidate := time.NewTicker(revalidateInterval)
	defer revalidate.Stop()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	var missedPongs atomic.Int32

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if c.sendPing(ctx, &missedPongs) {
				return
			}
		case msg, ok := <-c.client.send:
			if !ok {
				c.conn.Close(websocket.StatusGoingAway, "closed by server") //nolint:errcheck // best-effort
				return
			}
			if err := c.write(ctx, msg); err != nil {
				c.hub.log.WithError(err).Debug("websocket write failed")
				return
			}
		case <-revalidate.C:
			if !c.revalidate(ctx) {
				return
			}
		case <-lifetime.C:
			c.hub.log.WithField("client_id", c.client.ID).Info("closing websocket: connection deadline reached")
			c.conn.Close(websocket.StatusNormalClosure, "connection lifetime exceeded") //nolint:errcheck // best-effort
			return
		}
	}
}
