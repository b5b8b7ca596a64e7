package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	bookingDomain "github.com/localserve/service-booking/internal/domain/booking"
	"github.com/localserve/service-booking/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients carry the token in a header set by the app shell, not
	// via cookies, so cross-origin upgrades are acceptable here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades authenticated clients onto the notification hub.
type WSHandler struct {
	hub    *notify.Hub
	logger *zap.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *notify.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger}
}

// Subscribe handles GET /ws. The connection joins the caller's own room;
// admins additionally join the shared admin room. The read loop only drains
// control frames, the hub is push-only.
func (h *WSHandler) Subscribe(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	room := actor.ID.String()
	h.hub.Join(room, conn)
	isAdmin := actor.Role == bookingDomain.RoleAdmin
	if isAdmin {
		h.hub.Join(notify.AdminRoom, conn)
	}

	defer func() {
		h.hub.Leave(room, conn)
		if isAdmin {
			h.hub.Leave(notify.AdminRoom, conn)
		}
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
