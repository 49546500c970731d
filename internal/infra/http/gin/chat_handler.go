package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"parley/internal/app/dto"
	chatsvc "parley/internal/app/services/chat"
	domainchat "parley/internal/domain/chat"
	domainuser "parley/internal/domain/user"
)

// ChatHandler exposes the conversation and message endpoints over the chat
// service.
type ChatHandler struct {
	Chat   *chatsvc.Service
	Logger *slog.Logger
}

// ListConversations returns the principal's conversations, most recent
// first. Storage trouble degrades to an empty list by design.
func (h ChatHandler) ListConversations(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	items := h.Chat.List(c.Request.Context(), p.ID)
	c.JSON(http.StatusOK, dto.ConversationList{Items: items})
}

// CreateConversation starts a direct conversation ({"user_id": ...}) or a
// group ({"is_group": true, "name": ..., "members": [...]}).
func (h ChatHandler) CreateConversation(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req struct {
		UserID  string   `json:"user_id"`
		IsGroup bool     `json:"is_group"`
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	var (
		conversation *dto.Conversation
		err          error
	)
	if req.IsGroup {
		conversation, err = h.Chat.CreateGroup(c.Request.Context(), p.ID, req.Name, req.Members)
	} else {
		conversation, err = h.Chat.CreateDirect(c.Request.Context(), p.ID, req.UserID)
	}
	if err != nil {
		h.respondChatError(c, err, "Failed to create conversation")
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// GetConversation returns one conversation with resolved members.
func (h ChatHandler) GetConversation(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id := domainchat.ConversationID(c.Param("id"))
	conversation, err := h.Chat.Conversation(c.Request.Context(), id, p.ID)
	if err != nil {
		h.respondChatError(c, err, "Failed to load conversation")
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// ListMessages returns conversation history newest first with cursor
// pagination; the cursor is the created_at of the last returned message.
func (h ChatHandler) ListMessages(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id := domainchat.ConversationID(c.Param("id"))
	limit := parsePositiveInt(c.Query("limit"), 50)
	var before time.Time
	if raw := strings.TrimSpace(c.Query("before")); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before cursor"})
			return
		}
		before = parsed
	}
	messages, err := h.Chat.Messages(c.Request.Context(), id, p.ID, limit, before)
	if err != nil {
		h.respondChatError(c, err, "Failed to list messages")
		return
	}
	out := dto.ChatMessageList{Items: messages}
	if len(messages) == limit && limit > 0 {
		out.NextCursor = messages[len(messages)-1].CreatedAt.Format(time.RFC3339Nano)
	}
	c.JSON(http.StatusOK, out)
}

// SendMessage posts a message; body and image are both optional.
func (h ChatHandler) SendMessage(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req struct {
		Body  string `json:"body"`
		Image string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	message, err := h.Chat.Send(c.Request.Context(), chatsvc.SendParams{
		ConversationID: domainchat.ConversationID(c.Param("id")),
		SenderID:       p.ID,
		Body:           req.Body,
		Image:          req.Image,
	})
	if err != nil {
		h.respondChatError(c, err, "Failed to send message")
		return
	}
	c.JSON(http.StatusCreated, message)
}

// MarkSeen marks every unseen message in the conversation as seen by the
// principal and reports how many were updated.
func (h ChatHandler) MarkSeen(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	result, err := h.Chat.MarkSeen(c.Request.Context(), domainchat.ConversationID(c.Param("id")), p.ID)
	if err != nil {
		h.respondChatError(c, err, "Failed to mark messages as seen")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChatHandler) respondChatError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, chatsvc.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
	case errors.Is(err, chatsvc.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
	case errors.Is(err, domainchat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, domainuser.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, domainchat.ErrMemberRequired),
		errors.Is(err, domainchat.ErrSameUser),
		errors.Is(err, domainchat.ErrNameRequired),
		errors.Is(err, domainchat.ErrGroupTooSmall):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		// Operation-level failures are already logged with their cause by
		// the service; the client sees only the tagged message.
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func parsePositiveInt(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
