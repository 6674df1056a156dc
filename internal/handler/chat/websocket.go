package chat

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/xiaoyue/companion/internal/service/companion"
)

// WebSocketHandler WebSocket对话处理器，一条连接上可以连续进行多轮对话
type WebSocketHandler struct {
	svc      *companion.Service
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(svc *companion.Service, log zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{userID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TurnMessage 一轮对话的输入
type TurnMessage struct {
	Message  string   `json:"message"`
	TaskName string   `json:"taskName,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	UserID    string      `json:"userId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "userID is required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket升级失败")
		return
	}
	defer conn.Close()

	h.log.Info().Str("userId", userID).Msg("WebSocket连接已建立")
	h.send(conn, userID, "connected", map[string]string{"status": "ready"})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("userId", userID).Msg("WebSocket连接异常关闭")
			}
			return
		}

		switch inbound.Type {
		case "turn":
			h.handleTurnMessage(r, conn, userID, inbound.Data)
		case "ping":
			h.send(conn, userID, "pong", nil)
		default:
			h.send(conn, userID, "error", map[string]string{"error": "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) handleTurnMessage(r *http.Request, conn *websocket.Conn, userID string, data json.RawMessage) {
	var turn TurnMessage
	if err := json.Unmarshal(data, &turn); err != nil {
		h.send(conn, userID, "error", map[string]string{"error": "invalid turn payload"})
		return
	}

	result, err := h.svc.HandleTurn(r.Context(), userID, turn.Message, companion.TurnContext{
		TaskName: turn.TaskName,
		Progress: turn.Progress,
	})
	if err != nil {
		h.send(conn, userID, "error", map[string]string{"error": err.Error()})
		return
	}

	h.send(conn, userID, "reply", result)
}

func (h *WebSocketHandler) send(conn *websocket.Conn, userID, msgType string, data interface{}) {
	msg := outgoingMessage{
		Type:      msgType,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Warn().Err(err).Str("userId", userID).Msg("WebSocket消息发送失败")
	}
}
