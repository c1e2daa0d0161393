package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/app"
	"github.com/gamelink/randomconnect/internal/config"
	"github.com/gamelink/randomconnect/internal/core"
	"github.com/gamelink/randomconnect/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// ConnectController serves the Random Connect websocket: queue requests in,
// matched / signal / partner-left events out.
type ConnectController struct {
	Coord *app.Coordinator
	Cfg   *config.Config
}

func NewConnectController(coord *app.Coordinator, cfg *config.Config) *ConnectController {
	return &ConnectController{Coord: coord, Cfg: cfg}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleConnect upgrades the request and binds the user into the presence
// registry, replacing any previous connection they held.
func (ctl *ConnectController) HandleConnect(ctx context.Context, c *gin.Context) {
	uid := domain.UserID(c.GetString("user_id"))
	log.Info().Str("module", "signal").Str("user", string(uid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Coord.Presence.Bind(uid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, uid, conn)
}
