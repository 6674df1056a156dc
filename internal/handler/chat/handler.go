package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xiaoyue/companion/internal/model/profile"
	"github.com/xiaoyue/companion/internal/service/companion"
)

// Handler 对话服务的HTTP处理器
type Handler struct {
	svc *companion.Service
}

// New 创建对话处理器
func New(svc *companion.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册对话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/history/{userID}", h.handleGetHistory)
	r.Delete("/history/{userID}", h.handleClearHistory)
	r.Put("/preferences/{userID}", h.handleUpdatePreferences)
	r.Get("/stats", h.handleStats)
}

type chatRequest struct {
	UserID   string   `json:"userId"`
	Message  string   `json:"message"`
	TaskName string   `json:"taskName,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
}

// handleChat 执行一轮对话
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.HandleTurn(r.Context(), payload.UserID, payload.Message, companion.TurnContext{
		TaskName: payload.TaskName,
		Progress: payload.Progress,
	})
	if err != nil {
		switch {
		case errors.Is(err, companion.ErrUserIDRequired), errors.Is(err, companion.ErrMessageRequired):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, companion.GenericApology)
		}
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleGetHistory 查询最近的对话历史
func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	history, err := h.svc.History(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId":   userID,
		"messages": history,
	})
}

// handleClearHistory 清空对话历史
func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.svc.ClearHistory(r.Context(), userID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleUpdatePreferences 更新用户偏好，未给出的字段保持原值
func (h *Handler) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var patch profile.Preferences
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if patch.CommunicationStyle != "" &&
		patch.CommunicationStyle != profile.StyleFormal &&
		patch.CommunicationStyle != profile.StyleCasual {
		respondError(w, http.StatusBadRequest, "communicationStyle must be formal or casual")
		return
	}

	if err := h.svc.UpdatePreferences(r.Context(), userID, patch); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleStats 返回存储的聚合统计
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Stats())
}

// respondJSON 发送JSON响应
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError 发送错误响应
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
