package api

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/labsuite/labops/internal/middleware"
	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/push"
	"github.com/labsuite/labops/internal/scope"
)

var errUserInactive = errors.New("user is no longer active")

// PushHandler subscribes authenticated sessions to master-data changes of
// one scope.
type PushHandler struct {
	responder
	appCtx  context.Context //nolint:containedctx // outlives requests; ends WebSocket pumps on shutdown.
	hub     *push.Hub
	users   middleware.ActiveUserChecker
	origins []string
}

// NewPushHandler creates a PushHandler. origins are the allowed WebSocket
// origin patterns.
func NewPushHandler(appCtx context.Context, hub *push.Hub, users middleware.ActiveUserChecker, origins []string, r responder) *PushHandler {
	return &PushHandler{responder: r, appCtx: appCtx, hub: hub, users: users, origins: origins}
}

// subscriber validates the requested scope against the session and builds
// the hub client.
func (h *PushHandler) subscriber(c *gin.Context, transport string) (*models.Session, *push.Client, bool) {
	sess := middleware.SessionFrom(c)
	if sess == nil {
		h.fail(c, models.ErrUnauthorized)
		return nil, nil, false
	}

	sc := scopeQuery(c).Normalize()
	if !sc.Complete() {
		h.fail(c, &models.ValidationError{Problems: []string{"companyId and locationId are required"}})
		return nil, nil, false
	}
	if err := scope.Check(sess, sc); err != nil {
		h.fail(c, err)
		return nil, nil, false
	}

	return sess, push.NewClient(sess.UserID, sc, transport), true
}

// SSE handles GET /api/sse/master-data.
func (h *PushHandler) SSE(c *gin.Context) {
	_, client, ok := h.subscriber(c, push.TransportSSE)
	if !ok {
		return
	}

	if err := h.hub.ServeSSE(c.Writer, c.Request, client, middleware.SessionExpiry(c)); err != nil {
		h.fail(c, err)
	}
}

// WebSocket handles GET /api/ws/master-data. The session is re-checked
// periodically so deactivated users are disconnected.
func (h *PushHandler) WebSocket(c *gin.Context) {
	sess, client, ok := h.subscriber(c, push.TransportWebSocket)
	if !ok {
		return
	}

	userID := sess.UserID
	opts := push.WSOptions{
		OriginPatterns: h.origins,
		SessionExpiry:  middleware.SessionExpiry(c),
		Revalidate: func(ctx context.Context) error {
			if h.users == nil {
				return nil
			}
			active, err := h.users.IsActiveUser(ctx, userID)
			if err != nil {
				return err
			}
			if !active {
				return errUserInactive
			}

			return nil
		},
	}

	if err := h.hub.ServeWS(h.appCtx, c.Writer, c.Request, client, opts); err != nil {
		h.fail(c, err)
	}
}
