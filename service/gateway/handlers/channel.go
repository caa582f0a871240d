package handlers

import (
	"context"

	"VProject/module/voice/progress"
	"VProject/service/gateway"
	"VProject/tools/errs"
)

// JoinChannelHandler joinChannel({channelId})：进入频道。
// 用户的 currentServerId/currentChannelId 随之更新，
// 进度引擎的贡献/财富记账从此挂到频道所在的服务器上。
type JoinChannelHandler struct{}

func NewJoinChannelHandler() gateway.Handler { return &JoinChannelHandler{} }

func (h *JoinChannelHandler) Op() string { return gateway.OpJoinChannel }

func (h *JoinChannelHandler) Handle(ctx *gateway.Context, f *gateway.Frame, conn *gateway.WsConn) error {
	channelID, _ := f.Data["channelId"].(string)
	if channelID == "" {
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(gateway.OpJoinChannel, f.Seq, errs.ErrDataInvalid.WrapMsg("channelId required")))
	}
	userID, ok := ctx.S.ConnMgr().Resolve(conn.ConnID)
	if !ok {
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(gateway.OpJoinChannel, f.Seq, errs.ErrAuthInvalid.WrapMsg("auth required")))
	}

	bg := context.Background()
	ch, err := ctx.S.Store().GetChannel(bg, channelID)
	if err != nil {
		return ctx.S.ConnMgr().SendConn(conn.ConnID, gateway.BuildError(gateway.OpJoinChannel, f.Seq, err))
	}
	if ch == nil {
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(gateway.OpJoinChannel, f.Seq,
				errs.ErrDataInvalid.WrapMsg("channel not found", "channel_id", channelID)))
	}

	if err := moveUser(ctx, userID, ch.ServerID, ch.ChannelID, conn.ConnID); err != nil {
		return ctx.S.ConnMgr().SendConn(conn.ConnID, gateway.BuildError(gateway.OpJoinChannel, f.Seq, err))
	}
	return nil
}

// LeaveChannelHandler leaveChannel：退出当前频道，幂等。
// 位置清空后，后续发放只动用户经验，不再给服务器记账。
type LeaveChannelHandler struct{}

func NewLeaveChannelHandler() gateway.Handler { return &LeaveChannelHandler{} }

func (h *LeaveChannelHandler) Op() string { return gateway.OpLeaveChannel }

func (h *LeaveChannelHandler) Handle(ctx *gateway.Context, f *gateway.Frame, conn *gateway.WsConn) error {
	userID, ok := ctx.S.ConnMgr().Resolve(conn.ConnID)
	if !ok {
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(gateway.OpLeaveChannel, f.Seq, errs.ErrAuthInvalid.WrapMsg("auth required")))
	}
	if err := moveUser(ctx, userID, "", "", conn.ConnID); err != nil {
		return ctx.S.ConnMgr().SendConn(conn.ConnID, gateway.BuildError(gateway.OpLeaveChannel, f.Seq, err))
	}
	return nil
}

// moveUser 在 key 锁下改写用户的实时位置，并把更新后的档案推回本连接。
func moveUser(ctx *gateway.Context, userID, serverID, channelID, connID string) error {
	bg := context.Background()
	st := ctx.S.Store()
	return st.WithKey(userID, func() error {
		user, err := st.GetUser(bg, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return errs.ErrInternal.WrapMsg("user not found", "user_id", userID)
		}
		user.CurrentServerID = serverID
		user.CurrentChannelID = channelID
		if err := st.PutUser(bg, user); err != nil {
			return err
		}
		ctx.S.PushConn(connID, progress.EventUserUpdate, user)
		return nil
	})
}
