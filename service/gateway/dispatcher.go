package gateway

import (
	"VProject/logger"
	"VProject/tools/errs"
)

type Handler interface {
	Op() string
	Handle(ctx *Context, f *Frame, conn *WsConn) error
}

// Context handler 执行上下文。
type Context struct {
	S *Server
}

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Op()] = h }

func (d *Dispatcher) Dispatch(ctx *Context, f *Frame, conn *WsConn) error {
	h, ok := d.handlers[f.Op]
	if !ok {
		return errs.ErrDataInvalid.WrapMsg("unknown op", "op", f.Op)
	}
	return h.Handle(ctx, f, conn)
}

func (d *Dispatcher) GetHandler(op string) Handler {
	h, ok := d.handlers[op]
	if !ok {
		logger.Infof("no handler for op=%s", op)
		return nil
	}
	return h
}
