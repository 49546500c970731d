package ginserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	chatsvc "parley/internal/app/services/chat"
	domainchat "parley/internal/domain/chat"
	"parley/internal/infra/realtime"
)

// WSHandler upgrades clients to websockets and manages their channel
// subscriptions. Every connection starts subscribed to its own inbox
// channel; conversation rooms are joined on request, membership checked.
type WSHandler struct {
	Hub    *realtime.Hub
	Chat   *chatsvc.Service
	Logger *slog.Logger

	Upgrader websocket.Upgrader
}

type wsRequest struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

func (h WSHandler) Serve(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	ws, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Debug("websocket upgrade failed", "error", err, "user_id", p.ID)
		}
		return
	}
	conn := realtime.NewConnection(p.ID, ws)
	h.Hub.Attach(conn)
	h.Hub.Subscribe(domainchat.UserChannel(p.ID), conn)
	defer func() {
		h.Hub.Detach(conn)
		conn.Close(websocket.CloseNormalClosure, "bye")
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			continue
		}
		h.handle(c, p, conn, req)
	}
}

func (h WSHandler) handle(c *gin.Context, p principal, conn *realtime.Connection, req wsRequest) {
	channel := strings.TrimSpace(req.Channel)
	switch req.Action {
	case "subscribe":
		if !h.allowed(c, p, channel) {
			return
		}
		h.Hub.Subscribe(channel, conn)
	case "unsubscribe":
		h.Hub.Unsubscribe(channel, conn)
	}
}

// allowed permits a user's own inbox channel and rooms of conversations the
// user is a member of.
func (h WSHandler) allowed(c *gin.Context, p principal, channel string) bool {
	if channel == domainchat.UserChannel(p.ID) {
		return true
	}
	const prefix = "conversation:"
	if !strings.HasPrefix(channel, prefix) {
		return false
	}
	id := domainchat.ConversationID(strings.TrimPrefix(channel, prefix))
	if _, err := h.Chat.Conversation(c.Request.Context(), id, p.ID); err != nil {
		return false
	}
	return true
}

// NewUpgrader returns the websocket upgrader used by main. Origin checking
// follows the CORS policy: the API is open, so the upgrader is too.
func NewUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}
