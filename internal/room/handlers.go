package room

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/open-tabletop/server/internal/spectator"
	"github.com/open-tabletop/server/internal/transport"
	"github.com/open-tabletop/server/internal/types"
)

// CookieName is the opaque-username cookie set by `POST /login`.
const CookieName = "username"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RequestUsername resolves the acting username: the auth cookie when
// present, otherwise a query parameter suffixed " (Guest)", matching the
// source's get_request_username.
func RequestUsername(c *gin.Context) types.Username {
	if v, err := c.Cookie(CookieName); err == nil && v != "" {
		return types.Username(v)
	}
	if v := c.Query("username"); v != "" {
		return types.Username(v + " (Guest)")
	}
	return ""
}

// ServeSeatWS handles `GET /r/{roomID}/ws/{seat}`: connect or reconnect a
// Session. 404 if the seat is missing or already taken by another user
// (ErrSeatTaken with no existing binding only happens on concurrent
// double-connect attempts, which also map to 404 per the source's
// conflation of "not available right now"); 403 if owned by another user.
func (r *Room) ServeSeatWS(c *gin.Context, log *zap.Logger) {
	seatStr := c.Param("seat")
	seatNum, err := strconv.Atoi(seatStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seat must be an integer"})
		return
	}
	seat := types.SeatID(seatNum)
	username := RequestUsername(c)
	if username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no username"})
		return
	}

	s, err := r.ClaimSeat(seat, username)
	if err != nil {
		switch {
		case err == types.ErrUnknownSeat:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown seat"})
		case err == types.ErrSeatTaken:
			c.JSON(http.StatusNotFound, gin.H{"error": "seat already connected"})
		case err == types.ErrWrongUser:
			c.JSON(http.StatusForbidden, gin.H{"error": "seat owned by another user"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	tr := transport.NewWebSocketTransport(conn)
	r.ConfirmSeat(s, username, tr)

	ctx := context.Background()
	r.TrackConnection(ctx, s.Run)
}

// ServeWatchWS handles `GET /r/{roomID}/ws/watch`: attach as an ad-hoc,
// read-only Spectator.
func (r *Room) ServeWatchWS(c *gin.Context, log *zap.Logger) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := spectator.New(log)
	s.Claim()
	r.addSpectator(s)
	s.OnConnect(transport.NewWebSocketTransport(conn))

	ctx := context.Background()
	r.TrackConnection(ctx, func(ctx context.Context) {
		s.Run(ctx)
		r.removeSpectator(s)
	})
}

// ServeHTML handles `GET /r/{roomID}/html?seat=watch|<seatID>`: render the
// current view for a viewer. 401 if no username; 400 if seat is not
// parseable; 403 if the seat is owned by another user.
func (r *Room) ServeHTML(c *gin.Context) {
	username := RequestUsername(c)
	if username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no username"})
		return
	}

	seatParam := c.Query("seat")
	if seatParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seat is required"})
		return
	}

	if strings.EqualFold(seatParam, "watch") {
		html, err := r.RenderHTML(nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", html)
		return
	}

	seatNum, err := strconv.Atoi(seatParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seat must be \"watch\" or an integer"})
		return
	}
	seat := types.SeatID(seatNum)
	s := r.Session(seat)
	if s == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown seat"})
		return
	}
	if bound := s.Username(); bound != "" && bound != username {
		c.JSON(http.StatusForbidden, gin.H{"error": "seat owned by another user"})
		return
	}

	html, err := r.RenderHTML(&seat)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}
