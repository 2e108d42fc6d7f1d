// Package push delivers change events to live subscribers over SSE and
// WebSocket. A Hub owns the connection registry; every registry mutation
// happens in its Run goroutine.
package push

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/metrics"
	"github.com/labsuite/labops/internal/models"
)

// Registration errors.
var (
	ErrTooManyConnections = errors.New("too many live connections")
	ErrHubClosed          = errors.New("live updates are shutting down")
)

// Hub channel buffer sizes.
const (
	broadcastBuffer = 256
	registerBuffer  = 64
)

// Default connection caps.
const (
	DefaultMaxClients  = 1000
	DefaultMaxPerScope = 50
)

// maxBroadcastPayload drops events that would flood subscribers.
const maxBroadcastPayload = 64 << 10

// drainTimeout is how long the hub waits for clients to flush after shutdown.
const drainTimeout = 3 * time.Second

var _ domain.Publisher = (*Hub)(nil)

// Options tune a Hub. Zero values use the defaults.
type Options struct {
	MaxClients  int
	MaxPerScope int
}

type registration struct {
	client *Client
	result chan error
}

type scopedBroadcast struct {
	scope models.Scope
	msg   []byte
}

// Hub manages live clients and fans events out to the ones in the event's scope.
type Hub struct {
	clients    map[*Client]bool
	scopeCount map[models.Scope]int
	register   chan registration
	unregister chan *Client
	broadcast  chan scopedBroadcast
	shutdown   chan struct{}
	done       chan struct{}
	stopOnce   atomic.Bool
	count      atomic.Int64
	opts       Options
	log        *logrus.Logger
}

// NewHub creates a Hub. Call Run before registering clients.
func NewHub(log *logrus.Logger, opts Options) *Hub {
	if opts.MaxClients <= 0 {
		opts.MaxClients = DefaultMaxClients
	}
	if opts.MaxPerScope <= 0 {
		opts.MaxPerScope = DefaultMaxPerScope
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		scopeCount: make(map[models.Scope]int),
		register:   make(chan registration, registerBuffer),
		unregister: make(chan *Client, registerBuffer),
		broadcast:  make(chan scopedBroadcast, broadcastBuffer),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		opts:       opts,
		log:        log,
	}
}

// Run is the hub event loop. It exits when Shutdown is called or ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.drainClients()
			return
		case <-h.shutdown:
			h.drainClients()
			return

		case reg := <-h.register:
			reg.result <- h.add(reg.client)

		case client := <-h.unregister:
			if h.clients[client] {
				h.remove(client)
				h.log.WithFields(logrus.Fields{
					"client_id": client.ID,
					"total":     len(h.clients),
				}).Debug("live client unregistered")
			}

		case b := <-h.broadcast:
			for client := range h.clients {
				if client.Scope != b.scope {
					continue
				}
				select {
				case client.send <- b.msg:
				default:
					metrics.PushDroppedTotal.Inc()
					h.log.WithField("client_id", client.ID).Warn("live client too slow, dropping")
					h.remove(client)
				}
			}
		}
	}
}

// add must only be called from Run.
func (h *Hub) add(c *Client) error {
	if len(h.clients) >= h.opts.MaxClients {
		h.log.Warn("global live connection limit reached")
		return ErrTooManyConnections
	}

	if h.scopeCount[c.Scope] >= h.opts.MaxPerScope {
		h.log.WithFields(logrus.Fields{
			"company_id":  c.Scope.CompanyID,
			"location_id": c.Scope.LocationID,
		}).Warn("per-scope live connection limit reached")
		return ErrTooManyConnections
	}

	h.clients[c] = true
	h.scopeCount[c.Scope]++
	h.count.Store(int64(len(h.clients)))
	metrics.PushConnections.WithLabelValues(c.Transport).Inc()

	h.log.WithFields(logrus.Fields{
		"client_id": c.ID,
		"transport": c.Transport,
		"total":     len(h.clients),
	}).Info("live client registered")

	return nil
}

// remove must only be called from Run.
func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	c.closeSend()

	h.scopeCount[c.Scope]--
	if h.scopeCount[c.Scope] <= 0 {
		delete(h.scopeCount, c.Scope)
	}

	h.count.Store(int64(len(h.clients)))
	metrics.PushConnections.WithLabelValues(c.Transport).Dec()
}

// Register adds c to the hub. It fails when a connection cap is reached or
// the hub has stopped.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	reg := registration{client: c, result: make(chan error, 1)}

	select {
	case h.register <- reg:
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reg.result:
		return err
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister removes c from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		// Run already exited and closed every client.
	}
}

// Publish fans ev out to the clients subscribed to ev.Scope. It never blocks;
// events are dropped when the hub is saturated.
func (h *Hub) Publish(ev models.ChangeEvent) {
	msg, err := updateFrame(ev)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal change event")
		return
	}

	if len(msg) > maxBroadcastPayload {
		h.log.WithFields(logrus.Fields{
			"data_type":    ev.DataType,
			"payload_size": len(msg),
		}).Warn("dropping oversized change event")
		return
	}

	select {
	case h.broadcast <- scopedBroadcast{scope: ev.Scope, msg: msg}:
		metrics.PushEventsTotal.Inc()
	default:
		h.log.Warn("broadcast channel full, dropping change event")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Shutdown sends a shutdown frame to every client, waits briefly for the
// frames to flush, then closes all clients. It blocks until Run returns.
func (h *Hub) Shutdown() {
	if h.stopOnce.CompareAndSwap(false, true) {
		close(h.shutdown)
	}
	<-h.done
}

// drainClients notifies and closes every client.
func (h *Hub) drainClients() {
	if len(h.clients) == 0 {
		return
	}

	h.log.WithField("clients", len(h.clients)).Info("draining live clients")

	for client := range h.clients {
		select {
		case client.send <- shutdownFrame:
		default:
		}
	}

	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for !h.flushed() {
		select {
		case <-deadline.C:
			h.log.Warn("live client drain timeout, closing remaining clients")
			h.closeAll()
			return
		case <-ticker.C:
		}
	}

	h.closeAll()
}

func (h *Hub) flushed() bool {
	for client := range h.clients {
		if len(client.send) > 0 {
			return false
		}
	}

	return true
}

func (h *Hub) closeAll() {
	for client := range h.clients {
		h.remove(client)
	}
}
