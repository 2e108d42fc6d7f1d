package push

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
)

// ServeSSE registers client and streams its frames as server-sent events
// until the request ends, the hub drops the client or the connection reaches
// its deadline. A registration failure is returned before anything is
// written, so the caller can still send an error response.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, client *Client, sessionExpiry time.Time) error {
	ctx := r.Context()

	if err := h.Register(ctx, client); err != nil {
		return err
	}
	defer h.Unregister(client)

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	write := func(msg []byte) error {
		if err := sse.Encode(w, sse.Event{Data: string(msg)}); err != nil {
			return err
		}
		return rc.Flush()
	}

	first, err := connectedFrame(client)
	if err != nil || write(first) != nil {
		return nil
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	lifetime := time.NewTimer(time.Until(client.deadline(sessionExpiry)))
	defer lifetime.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-client.send:
			if !ok {
				return nil
			}
			if err := write(msg); err != nil {
				h.log.WithError(err).WithField("client_id", client.ID).Debug("sse write failed")
				return nil
			}
		case <-ping.C:
			frame, err := pingFrame()
			if err != nil || write(frame) != nil {
				return nil
			}
		case <-lifetime.C:
			h.log.WithField("client_id", client.ID).Info("closing sse stream: connection deadline reached")
			return nil
		}
	}
}
