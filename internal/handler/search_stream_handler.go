package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/patchwell/linkstash/internal/config"
	"github.com/patchwell/linkstash/internal/rank"
	"github.com/patchwell/linkstash/internal/search"
	"github.com/patchwell/linkstash/internal/service"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 50 * time.Second
	streamSendBuffer = 8
)

type SearchStreamHandler struct {
	views    *service.ViewService
	engine   *rank.Engine
	cfg      config.SearchConfig
	upgrader websocket.Upgrader
}

func NewSearchStreamHandler(views *service.ViewService, engine *rank.Engine, cfg config.SearchConfig) *SearchStreamHandler {
	return &SearchStreamHandler{
		views:  views,
		engine: engine,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

type streamQuery struct {
	Query string `json:"query"`
}

// Stream upgrades to a websocket and runs one search session per
// connection. Every inbound frame is a keystroke snapshot; outbound frames
// are settled result sets for the latest query only.
func (h *SearchStreamHandler) Stream(c *gin.Context) {
	ownerID := getOwnerID(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logutil.GetLogger(c.Request.Context()).Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sendCh := make(chan search.Result, streamSendBuffer)
	orch := search.NewOrchestrator(c.Request.Context(), ownerID, h.views.Controller(ownerID), h.engine, search.Options{
		Debounce:      time.Duration(h.cfg.DebounceMS) * time.Millisecond,
		ShortQueryMax: h.cfg.ShortQueryMax,
		RemoteTimeout: time.Duration(h.cfg.TimeoutSeconds) * time.Second,
	}, func(res search.Result) {
		select {
		case sendCh <- res:
		default:
			// the reader is stalled; dropping is safe, a newer result will
			// follow the next keystroke
		}
	})
	defer orch.Close()

	done := make(chan struct{})
	go h.writeLoop(conn, sendCh, done)
	defer close(done)

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		var req streamQuery
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logutil.GetLogger(c.Request.Context()).Info("search stream closed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		orch.SetQuery(req.Query)
	}
}

func (h *SearchStreamHandler) writeLoop(conn *websocket.Conn, sendCh <-chan search.Result, done <-chan struct{}) {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case res := <-sendCh:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(res); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
