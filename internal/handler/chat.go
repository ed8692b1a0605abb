package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cabride/internal/domain"
	"cabride/internal/service"
)

// ChatHandler handles HTTP requests for ride chat.
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// SendMessageRequest is the HTTP request body for sending a chat message.
type SendMessageRequest struct {
	Text   string `json:"text"`
	TempID string `json:"tempId,omitempty"`
}

// ChatMessageResponse is one chat message on the wire.
type ChatMessageResponse struct {
	ID        string        `json:"_id"`
	RideID    string        `json:"ride"`
	Sender    ChatSenderDTO `json:"sender"`
	Text      string        `json:"text"`
	Timestamp string        `json:"timestamp"`
	TempID    string        `json:"tempId,omitempty"`
}

// ChatSenderDTO identifies a message sender.
type ChatSenderDTO struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

func toChatMessageResponse(m *domain.ChatMessage, tempID string) ChatMessageResponse {
	return ChatMessageResponse{
		ID:        m.ID,
		RideID:    m.RideID,
		Sender:    ChatSenderDTO{ID: m.SenderID, Username: m.SenderName},
		Text:      m.Text,
		Timestamp: formatTime(m.Timestamp),
		TempID:    tempID,
	}
}

// History handles GET /v1/rides/:id/chat
func (h *ChatHandler) History(c *gin.Context) {
	messages, err := h.chatService.FetchHistory(c.Request.Context(), principal(c).UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]ChatMessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toChatMessageResponse(&messages[i], ""))
	}
	respondJSON(c, http.StatusOK, out)
}

// Send handles POST /v1/rides/:id/chat
func (h *ChatHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), service.SendMessageInput{
		RideID:   c.Param("id"),
		SenderID: principal(c).UserID,
		Text:     req.Text,
		TempID:   req.TempID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toChatMessageResponse(msg, req.TempID))
}
