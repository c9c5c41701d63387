package chat

import (
	"net/http"

	"RProject/logger"
	mwsec "RProject/middleware/security"
	"RProject/module/chat/message"
	"RProject/tools/errs"
	toolsec "RProject/tools/security"

	"github.com/gin-gonic/gin"
)

// Handler is the REST surface over the message service. Live traffic goes
// through the websocket server; everything durable and query-shaped lands
// here.
type Handler struct {
	msgs    *message.Service
	jwtOpts toolsec.Options
}

func NewHandler(msgs *message.Service, jwtOpts toolsec.Options) *Handler {
	return &Handler{msgs: msgs, jwtOpts: jwtOpts}
}

// Register mounts the route table. wsHandler, when non-nil, serves GET /ws.
func (h *Handler) Register(r *gin.Engine, wsHandler gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)
	r.POST("/api/login", h.Login)
	if wsHandler != nil {
		r.GET("/ws", wsHandler)
	}

	auth := r.Group("/api", mwsec.Auth(h.jwtOpts))
	auth.POST("/conversations/:id/messages", h.SendMessage)
	auth.GET("/conversations/:id/messages", h.History)
	auth.GET("/conversations/:id/unread", h.Unread)
	auth.GET("/conversations/:id/roster", h.Roster)
	auth.POST("/messages/:id/delivered", h.MarkDelivered)
	auth.POST("/messages/:id/read", h.MarkRead)
	auth.GET("/messages/:id/statuses", h.Statuses)
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type loginReq struct {
	UserID string `json:"userId" binding:"required"`
}

// Login issues a development token for the given identity. No credential
// check: token issuance belongs to the identity platform, this endpoint
// exists so the rest of the surface is exercisable standalone.
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errs.ErrArgs.WrapMsg("bind", "err", err))
		return
	}
	token, _, expireAt, err := toolsec.Generate(h.jwtOpts, req.UserID, nil)
	if err != nil {
		respondErr(c, errs.ErrInternalServer.WrapMsg("token generate failed"))
		return
	}
	respondOK(c, gin.H{"token": token, "expireAt": expireAt.UnixMilli()})
}

type sendMessageReq struct {
	Type     int32  `json:"type"`
	Text     string `json:"text"`
	MediaURL string `json:"mediaUrl"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errs.ErrArgs.WrapMsg("bind", "err", err))
		return
	}
	m, err := h.msgs.Send(c.Request.Context(), mwsec.UserID(c), c.Param("id"), req.Type, req.Text, req.MediaURL)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, m)
}

func (h *Handler) History(c *gin.Context) {
	limit := int64(50)
	if v := c.Query("limit"); v != "" {
		if n, ok := parsePositive(v); ok {
			limit = n
		}
	}
	out, err := h.msgs.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, out)
}

func (h *Handler) Unread(c *gin.Context) {
	n, err := h.msgs.UnreadCount(c.Request.Context(), mwsec.UserID(c), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"unread": n})
}

func (h *Handler) Roster(c *gin.Context) {
	out, err := h.msgs.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, out)
}

func (h *Handler) MarkDelivered(c *gin.Context) {
	if err := h.msgs.MarkDelivered(c.Request.Context(), c.Param("id"), mwsec.UserID(c)); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, nil)
}

func (h *Handler) MarkRead(c *gin.Context) {
	n, err := h.msgs.MarkRead(c.Request.Context(), c.Param("id"), mwsec.UserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"updated": n})
}

func (h *Handler) Statuses(c *gin.Context) {
	out, err := h.msgs.Statuses(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, out)
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "ok", "data": data})
}

func respondErr(c *gin.Context, err error) {
	code := errs.ECode(err)
	status := http.StatusInternalServerError
	switch code {
	case errs.ArgsError:
		status = http.StatusBadRequest
	case errs.TokenExpiredError, errs.TokenInvalidError:
		status = http.StatusUnauthorized
	case errs.NotParticipantError:
		status = http.StatusForbidden
	case errs.RecordNotFoundError:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("[rest] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"code": code, "msg": errs.EMsg(err)})
}

func parsePositive(s string) (int64, bool) {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int64(r-'0')
		if n > 1000 {
			return 1000, true
		}
	}
	return n, n > 0
}
