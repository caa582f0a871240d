package handlers

import (
	"VProject/logger"
	"VProject/service/gateway"
	"VProject/service/storage"
)

// PingHandler ping：应用层心跳，刷新连接时间并续期在线标记。
type PingHandler struct{}

func NewPingHandler() gateway.Handler { return &PingHandler{} }

func (h *PingHandler) Op() string { return gateway.OpPing }

func (h *PingHandler) Handle(ctx *gateway.Context, f *gateway.Frame, conn *gateway.WsConn) error {
	_ = ctx.S.ConnMgr().HeartbeatConn(conn.ConnID)
	if userID, ok := ctx.S.ConnMgr().Resolve(conn.ConnID); ok {
		if err := storage.PresenceOnline(userID, ctx.S.GatewayID(), presenceTTL); err != nil {
			logger.Infof("[ping] presence renew user=%s err=%v", userID, err)
		}
	}
	return ctx.S.ConnMgr().SendConn(conn.ConnID, gateway.BuildReply(gateway.EventPong, f.Seq, nil))
}
