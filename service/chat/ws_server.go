package chat

import (
	"net/http"
	"time"

	"RProject/logger"
	"RProject/tools/ids"
	"RProject/tools/safe"
	"RProject/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HandleWS is the websocket entry point. The token rides the query string
// (browsers can't set headers on the upgrade request); a bearer header is
// accepted as fallback. Identity is bound once here and never rebound.
func (s *Server) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = security.StripBearer(c.GetHeader("Authorization"))
	}
	claims, err := security.Verify(s.jwtOpts, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userID := claims.UserID()
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token missing subject"})
		return
	}

	sock, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[ws] upgrade failed user=%s err=%v", userID, err)
		return
	}

	conn := newConn(ids.GenerateString(), userID, sock)
	s.mgr.Add(conn)
	s.gateway.State().RegisterConn(conn.ID, userID)
	logger.Infof("[ws] connected conn=%s user=%s total=%d", conn.ID, userID, s.mgr.Count())

	safe.Go(conn.writePump)
	s.readLoop(c, conn)
}

// readLoop blocks until the socket dies, then runs the full disconnect
// cleanup: registry, rooms, subscriptions. Presence entries stay put for
// the sweeper to decay.
func (s *Server) readLoop(c *gin.Context, conn *Conn) {
	defer func() {
		s.gateway.Disconnect(conn.ID)
		s.rooms.DropConn(conn.ID)
		s.mgr.Remove(conn.ID)
		conn.close()
		logger.Infof("[ws] disconnected conn=%s user=%s", conn.ID, conn.UserID)
	}()

	_ = conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	conn.sock.SetPongHandler(func(string) error {
		return conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := c.Request.Context()
	for {
		kind, raw, err := conn.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("[ws] read err conn=%s err=%v", conn.ID, err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		_ = conn.sock.SetReadDeadline(time.Now().Add(pongWait))

		f, err := ParseFrame(raw)
		if err != nil {
			logger.Debugf("[ws] drop frame conn=%s err=%v", conn.ID, err)
			continue
		}
		s.dispatcher.Dispatch(ctx, conn, f)
	}
}
