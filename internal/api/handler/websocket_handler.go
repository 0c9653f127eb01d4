package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/logging"
	"github.com/kirieshkistudios/park-backend/internal/metrics"
)

const (
	wsWriteWait     = 5 * time.Second
	broadcastBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketManager is the occupancy feed hub. Only the Start goroutine
// touches the client set and writes to connections.
type WebSocketManager struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	logger     zerolog.Logger
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		logger:     logging.Component("websocket"),
	}
}

func (wsm *WebSocketManager) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(wsm.done)
			for client := range wsm.clients {
				_ = client.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(wsWriteWait))
				client.Close()
				delete(wsm.clients, client)
			}
			metrics.WebSocketClients.Set(0)
			return

		case client := <-wsm.register:
			wsm.clients[client] = true
			metrics.WebSocketClients.Set(float64(len(wsm.clients)))
			wsm.logger.Info().Int("clients", len(wsm.clients)).Msg("websocket client connected")

		case client := <-wsm.unregister:
			if _, ok := wsm.clients[client]; ok {
				delete(wsm.clients, client)
				client.Close()
			}
			metrics.WebSocketClients.Set(float64(len(wsm.clients)))
			wsm.logger.Info().Int("clients", len(wsm.clients)).Msg("websocket client disconnected")

		case message := <-wsm.broadcast:
			for client := range wsm.clients {
				_ = client.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					wsm.logger.Warn().Err(err).Msg("dropping websocket client after write error")
					client.Close()
					delete(wsm.clients, client)
				}
			}
			metrics.WebSocketClients.Set(float64(len(wsm.clients)))
		}
	}
}

// NotifyOccupancy queues an occupancy event for every connected client.
// The event is dropped when the hub is backed up.
func (wsm *WebSocketManager) NotifyOccupancy(_ context.Context, n domain.OccupancyNotification) {
	message, err := json.Marshal(struct {
		Type string `json:"type"`
		domain.OccupancyNotification
	}{Type: "occupancy", OccupancyNotification: n})
	if err != nil {
		wsm.logger.Error().Err(err).Msg("encoding occupancy event")
		return
	}

	select {
	case wsm.broadcast <- message:
	default:
		wsm.logger.Warn().Int("lot_id", n.LotID).Msg("broadcast channel is full, dropping occupancy event")
	}
}

type WebSocketHandler struct {
	wsManager *WebSocketManager
}

func NewWebSocketHandler(wsManager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{wsManager: wsManager}
}

// GET /ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	select {
	case h.wsManager.register <- conn:
	case <-h.wsManager.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.wsManager.unregister <- conn:
			case <-h.wsManager.done:
			}
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.wsManager.logger.Warn().Err(err).Msg("websocket read error")
				}
				return
			}
		}
	}()
}
