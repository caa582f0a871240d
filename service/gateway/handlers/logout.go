package handlers

import (
	"VProject/logger"
	"VProject/service/gateway"
	"VProject/service/storage"
	"VProject/tools/errs"
)

// LogoutHandler logout({token})：注销会话令牌并解绑连接。
// 令牌独立于连接存续，登出必须删除 session 键，
// 否则同一令牌还能在别的连接上重新 auth。
type LogoutHandler struct{}

func NewLogoutHandler() gateway.Handler { return &LogoutHandler{} }

func (h *LogoutHandler) Op() string { return gateway.OpLogout }

func (h *LogoutHandler) Handle(ctx *gateway.Context, f *gateway.Frame, conn *gateway.WsConn) error {
	token, _ := f.Data["token"].(string)
	if token == "" {
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(gateway.OpLogout, f.Seq, errs.ErrDataInvalid.WrapMsg("token required")))
	}

	if err := storage.SessionDelete(token); err != nil {
		logger.Errorf("[logout] delete session conn=%s err=%v", conn.ConnID, err)
		return ctx.S.ConnMgr().SendConn(conn.ConnID, gateway.BuildError(gateway.OpLogout, f.Seq, err))
	}

	// 连接若已绑定，随登出一起拆：停计时、下线、解绑。
	if userID, ok := ctx.S.ConnMgr().Resolve(conn.ConnID); ok {
		if e := ctx.S.Engine(); e != nil {
			e.Untrack(conn.ConnID)
		}
		if err := storage.PresenceOffline(userID); err != nil {
			logger.Infof("[logout] presence offline user=%s err=%v", userID, err)
		}
		ctx.S.ConnMgr().Unbind(conn.ConnID, userID)
		ctx.S.Reg().DropConn(conn.ConnID)
	}

	return ctx.S.ConnMgr().SendConn(conn.ConnID, gateway.BuildReply(gateway.EventLogoutAck, f.Seq, nil))
}
