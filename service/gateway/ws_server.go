package gateway

import (
	"net"
	"net/http"
	"time"

	"VProject/logger"
	"VProject/service/storage"
	"VProject/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeDeadline = 5 * time.Second
	pingEvery     = 25 * time.Second
)

// HandleWS ===== WebSocket 处理 =====
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	connID := ids.GenerateString()
	rec, err := s.connMgr.Register(connID, ws)
	if err != nil {
		logger.Infof("[HandleWS] register conn error: %v", err)
		_ = ws.Close()
		return
	}

	// ---- 写协程：唯一写者，消费发送队列 + 周期 ping ----
	done := make(chan struct{})
	go func() {
		defer close(done)
		pinger := time.NewTicker(pingEvery)
		defer pinger.Stop()
		for {
			select {
			case data, ok := <-rec.Send:
				if !ok {
					return
				}
				if err := writeBinary(ws, data, writeDeadline); err != nil {
					logger.Infof("[WS] write err connID=%s err=%v", connID, err)
					return
				}
			case <-pinger.C:
				_ = ws.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	ws.SetPongHandler(func(string) error {
		_ = s.connMgr.HeartbeatConn(connID)
		return nil
	})

	_ = s.connMgr.SendConn(connID, BuildEvent(EventConnected, map[string]any{
		"connId":    connID,
		"gatewayId": s.gwID,
	}))

	// ---- 读循环：只读，不写；出错即退出 ----
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed connID=%s err=%v", connID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout connID=%s err=%v", connID, rerr)
			} else {
				logger.Infof("[WS] read err connID=%s err=%v", connID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		msg, perr := ParseFrameJSON(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[WS] ParseFrameJSON err connID=%s err=%v sample=%q", connID, perr, sample)
			continue
		}

		if err := s.DispatchFrame(msg, rec); err != nil {
			logger.Infof("[WS] dispatch op=%s connID=%s err=%v", msg.Op, connID, err)
		}
	}

	// ---- 退出阶段：解绑同步完成，进行中的补发照常落库 ----
	s.closeConn(rec)
	<-done
}

// closeConn 连接关闭收尾：停计时、下线、解绑、退房、移除。
func (s *Server) closeConn(rec *WsConn) {
	if s.engine != nil {
		s.engine.Untrack(rec.ConnID)
	}
	if rec.UserID != "" {
		if err := storage.PresenceOffline(rec.UserID); err != nil {
			logger.Infof("[WS] presence offline user=%s err=%v", rec.UserID, err)
		}
	}
	s.connMgr.Unbind(rec.ConnID, "")
	s.reg.DropConn(rec.ConnID)
	s.connMgr.Remove(rec.ConnID)
}

// Run 挂路由并启动 HTTP 服务。
func (s *Server) Run(addr string, extra func(*gin.Engine)) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", s.HandleWS)
	if extra != nil {
		extra(r)
	}
	logger.Infof("[gateway] listening on %s", addr)
	return r.Run(addr)
}
