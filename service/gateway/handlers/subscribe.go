package handlers

import (
	"context"

	"VProject/logger"
	"VProject/module/voice/apps"
	"VProject/service/gateway"
	"VProject/tools/errs"
)

// SubscribeHandler subscribeServer({serverId})：连接进入服务器房间，
// 之后该服务器的 serverUpdate / serverMemberApplicationsUpdate 都会送达。
// 订阅成功立即补推一份当前申请列表快照。
type SubscribeHandler struct{}

func NewSubscribeHandler() gateway.Handler { return &SubscribeHandler{} }

func (h *SubscribeHandler) Op() string { return gateway.OpSubscribeServer }

func (h *SubscribeHandler) Handle(ctx *gateway.Context, f *gateway.Frame, conn *gateway.WsConn) error {
	serverID, _ := f.Data["serverId"].(string)
	if serverID == "" {
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(gateway.OpSubscribeServer, f.Seq, errs.ErrDataInvalid.WrapMsg("serverId required")))
	}
	if _, ok := ctx.S.ConnMgr().Resolve(conn.ConnID); !ok {
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(gateway.OpSubscribeServer, f.Seq, errs.ErrAuthInvalid.WrapMsg("auth required")))
	}

	ctx.S.Reg().Subscribe(serverID, conn.ConnID)

	list, err := ctx.S.Store().ListServerApplications(context.Background(), serverID)
	if err != nil {
		logger.Errorf("[subscribe] snapshot server=%s err=%v", serverID, err)
		return nil
	}
	ctx.S.PushConn(conn.ConnID, apps.EventApplicationsUpdate, list)
	return nil
}

// UnsubscribeHandler unsubscribeServer({serverId})：退出房间，幂等。
type UnsubscribeHandler struct{}

func NewUnsubscribeHandler() gateway.Handler { return &UnsubscribeHandler{} }

func (h *UnsubscribeHandler) Op() string { return gateway.OpUnsubscribeServer }

func (h *UnsubscribeHandler) Handle(ctx *gateway.Context, f *gateway.Frame, conn *gateway.WsConn) error {
	serverID, _ := f.Data["serverId"].(string)
	if serverID == "" {
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(gateway.OpUnsubscribeServer, f.Seq, errs.ErrDataInvalid.WrapMsg("serverId required")))
	}
	ctx.S.Reg().Unsubscribe(serverID, conn.ConnID)
	return nil
}
