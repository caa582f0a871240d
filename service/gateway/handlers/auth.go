package handlers

import (
	"context"
	"time"

	"VProject/global/config"
	"VProject/logger"
	"VProject/service/gateway"
	"VProject/service/storage"
	"VProject/tools/errs"
	"VProject/tools/security"
)

// presenceTTL 在线标记有效期，由心跳续期。
const presenceTTL = 2 * time.Minute

// AuthHandler auth({token})：令牌换身份，绑定连接。
// 绑定是 1:1 的：连接已绑或用户已被其他连接占用都拒绝，
// 且不产生任何副作用。
type AuthHandler struct{}

func NewAuthHandler() gateway.Handler { return &AuthHandler{} }

func (h *AuthHandler) Op() string { return gateway.OpAuth }

func (h *AuthHandler) Handle(ctx *gateway.Context, f *gateway.Frame, conn *gateway.WsConn) error {
	token, _ := f.Data["token"].(string)
	if token == "" {
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(gateway.OpAuth, f.Seq, errs.ErrDataInvalid.WrapMsg("token required")))
	}

	opts := security.Options{Secret: config.GetJwtSecret()}
	userID, err := storage.SessionResolve(opts, token)
	if err != nil {
		logger.Infof("[auth] resolve token conn=%s err=%v", conn.ConnID, err)
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(gateway.OpAuth, f.Seq, errs.ErrAuthInvalid.WrapMsg("invalid token")))
	}

	if !ctx.S.ConnMgr().Bind(conn.ConnID, userID) {
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(gateway.OpAuth, f.Seq,
				errs.ErrAuthInvalid.WrapMsg("connection or user already bound")))
	}

	if err := storage.PresenceOnline(userID, ctx.S.GatewayID(), presenceTTL); err != nil {
		logger.Errorf("[auth] presence online user=%s err=%v", userID, err)
	}
	if e := ctx.S.Engine(); e != nil {
		e.Track(context.Background(), conn.ConnID, userID)
	}

	return ctx.S.ConnMgr().SendConn(conn.ConnID, gateway.BuildReply(gateway.EventAuthAck, f.Seq, map[string]any{
		"userId": userID,
		"connId": conn.ConnID,
	}))
}
