package handlers

import (
	"context"

	"VProject/module/voice/apps"
	"VProject/service/gateway"
	"VProject/tools/decode"
	"VProject/tools/errs"
)

// 申请类操作共用一套流程，校验阶梯固定：
// 结构（解码）-> 载荷形状 -> 身份 -> 业务调用。
// 没解码成功的请求报 DATA_INVALID，之后才轮到 AUTH_INVALID。
// 成功结果通过房间广播（serverUpdate 等）体现，不单发 ack；
// 失败只把 error 事件回给请求方这条连接。

type appCall func(svc *apps.Service, ctx context.Context, operatorID string, req *apps.ApplicationReq) error

type ApplicationHandler struct {
	op       string
	needBody bool
	call     appCall
}

func NewCreateApplicationHandler() gateway.Handler {
	return &ApplicationHandler{op: gateway.OpCreateApplication, needBody: true, call: (*apps.Service).Create}
}

func NewUpdateApplicationHandler() gateway.Handler {
	return &ApplicationHandler{op: gateway.OpUpdateApplication, needBody: true, call: (*apps.Service).Update}
}

func NewDeleteApplicationHandler() gateway.Handler {
	return &ApplicationHandler{op: gateway.OpDeleteApplication, call: (*apps.Service).Delete}
}

func NewApproveApplicationHandler() gateway.Handler {
	return &ApplicationHandler{op: gateway.OpApproveApplication, call: (*apps.Service).Approve}
}

func NewRejectApplicationHandler() gateway.Handler {
	return &ApplicationHandler{op: gateway.OpRejectApplication, call: (*apps.Service).Reject}
}

func (h *ApplicationHandler) Op() string { return h.op }

func (h *ApplicationHandler) Handle(ctx *gateway.Context, f *gateway.Frame, conn *gateway.WsConn) error {
	req, err := decode.DecodeMap[apps.ApplicationReq](f.Data)
	if err != nil {
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(h.op, f.Seq, errs.ErrDataInvalid.WrapMsg(err.Error())))
	}
	if err := req.Validate(h.needBody); err != nil {
		return ctx.S.ConnMgr().SendConn(conn.ConnID, gateway.BuildError(h.op, f.Seq, err))
	}

	operatorID, ok := ctx.S.ConnMgr().Resolve(conn.ConnID)
	if !ok {
		return ctx.S.ConnMgr().SendConn(conn.ConnID,
			gateway.BuildError(h.op, f.Seq, errs.ErrAuthInvalid.WrapMsg("auth required")))
	}

	if err := h.call(ctx.S.Apps(), context.Background(), operatorID, req); err != nil {
		return ctx.S.ConnMgr().SendConn(conn.ConnID, gateway.BuildError(h.op, f.Seq, err))
	}
	return nil
}
