package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rental-chat/models"
)

// ChatHandler handles the session and message HTTP API.
type ChatHandler struct {
	sessions *SessionManager
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(sessions *SessionManager) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

// sessionResponse is the wire shape of a created session.
type sessionResponse struct {
	ID        uuid.UUID        `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Messages  []models.Message `json:"messages"`
}

// CreateSession starts a new conversation session. The response carries
// the greeting message with the quick-reply menu.
func (h *ChatHandler) CreateSession(c *gin.Context) {
	sess, err := h.sessions.Create()
	if err != nil {
		log.Printf("Failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Messages:  sess.Conv.Messages(),
	})
}

// GetMessages returns the conversation snapshot, oldest first.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Conv.Messages())
}

// SendMessage runs one turn: the user message is committed immediately,
// then the handler waits for the bot side. A gateway failure still leaves
// the user message in history.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.runTurn(c, sess, req.Content)
}

// Select handles a quick-reply or carousel-card selection. Selections are
// user input like any other; they run the same turn pathway as typed
// text.
func (h *ChatHandler) Select(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	var req models.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.runTurn(c, sess, req.Value)
}

func (h *ChatHandler) runTurn(c *gin.Context, sess *Session, text string) {
	turn, err := sess.Controller.Submit(text)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	botMsgs, err := turn.Wait(c.Request.Context())
	if err != nil {
		log.Printf("Turn failed for session %s: %v", sess.ID, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":        "Failed to get assistant response",
			"user_message": turn.UserMessage,
		})
		return
	}
	c.JSON(http.StatusOK, models.TurnResponse{
		UserMessage: turn.UserMessage,
		BotMessages: botMsgs,
	})
}

// DeleteSession tears a session down.
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return
	}
	if !h.sessions.Remove(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}

func (h *ChatHandler) lookup(c *gin.Context) (*Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return nil, false
	}
	sess, ok := h.sessions.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return sess, true
}
