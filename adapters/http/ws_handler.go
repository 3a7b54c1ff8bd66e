package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/pkg/apperror"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

// LiveHub owns upgraded sockets for the lifetime of the connection.
type LiveHub interface {
	Serve(conn *websocket.Conn, userID uuid.UUID)
}

type WSHandler struct {
	hub      LiveHub
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewWSHandler accepts the same origins as the CORS policy; an empty list
// accepts any origin.
func NewWSHandler(hub LiveHub, allowedOrigins []string, log logger.Logger) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	_, allowAll := allowed["*"]
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 || allowAll {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		logger: log,
	}
}

func (h *WSHandler) Connect(c *gin.Context) {
	userID, ok := GetUserIDFromGinContext(c)
	if !ok {
		c.Error(apperror.NewUnauthorized("user information not found", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Problem initiating websocket", zap.Error(err))
		return
	}
	h.hub.Serve(conn, userID)
}
