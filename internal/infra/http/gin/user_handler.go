package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	domainuser "parley/internal/domain/user"
)

// UserHandler serves the people directory feeding "start a conversation".
type UserHandler struct {
	Users  domainuser.Repository
	Logger *slog.Logger
}

// List returns every user except the principal, newest first.
func (h UserHandler) List(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	users, err := h.Users.ListOthers(c.Request.Context(), domainuser.ID(p.ID))
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("list users failed", "error", err, "user_id", p.ID)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "users unavailable"})
		return
	}
	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}
