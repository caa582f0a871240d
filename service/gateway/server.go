package gateway

import (
	"VProject/logger"
	"VProject/module/voice/apps"
	"VProject/module/voice/progress"
	"VProject/module/voice/store"
)

// Bus 跨节点房间事件总线。nil 时退化为本地 fan-out。
type Bus interface {
	PublishServerEvent(serverID string, payload []byte) error
}

// Server 网关服务：连接管理 + 房间注册 + 分发 + fan-out。
type Server struct {
	gwID    string
	reg     *Registry
	connMgr *ConnManager
	disp    *Dispatcher
	fan     *Fanout
	st      *store.Store

	appsSvc *apps.Service
	engine  *progress.Engine
	bus     Bus
}

func NewServer(gwID string, connMgr *ConnManager, st *store.Store) *Server {
	return &Server{
		gwID:    gwID,
		reg:     NewRegistry(),
		connMgr: connMgr,
		disp:    NewDispatcher(),
		fan:     NewFanout(4, 4096),
		st:      st,
	}
}

func (s *Server) GatewayID() string         { return s.gwID }
func (s *Server) ConnMgr() *ConnManager     { return s.connMgr }
func (s *Server) Reg() *Registry            { return s.reg }
func (s *Server) Disp() *Dispatcher         { return s.disp }
func (s *Server) Store() *store.Store       { return s.st }
func (s *Server) Apps() *apps.Service       { return s.appsSvc }
func (s *Server) Engine() *progress.Engine  { return s.engine }

func (s *Server) SetApps(a *apps.Service)        { s.appsSvc = a }
func (s *Server) SetEngine(e *progress.Engine)   { s.engine = e }
func (s *Server) SetBus(b Bus)                   { s.bus = b }

// NotifyServer 实现 apps.Notifier：把事件发进服务器房间。
// 有总线时只发总线（本节点也靠订阅回投），总线失败降级本地投递。
func (s *Server) NotifyServer(serverID, event string, payload any) {
	data := BuildEvent(event, payload)
	if data == nil {
		return
	}
	if s.bus != nil {
		if err := s.bus.PublishServerEvent(serverID, data); err == nil {
			return
		} else {
			logger.Errorf("[gateway] bus publish server=%s err=%v, falling back to local", serverID, err)
		}
	}
	s.DeliverLocal(serverID, data)
}

// DeliverLocal 把 payload 投给本节点订阅该服务器房间的全部连接。
// 总线订阅回调也走这里。
func (s *Server) DeliverLocal(serverID string, payload []byte) {
	connIDs := s.reg.ConnIDs(serverID)
	if len(connIDs) == 0 {
		return
	}
	s.fan.Broadcast(s.connMgr.Conns(connIDs), payload)
}

// PushConn 实现 progress.Pusher：定向推送单连接。
func (s *Server) PushConn(connID, event string, payload any) {
	if data := BuildEvent(event, payload); data != nil {
		_ = s.connMgr.SendConn(connID, data)
	}
}

// DispatchFrame 入口：按 op 分发。分发层失败（如未知 op）同样
// 归一化成 error 事件回给请求方，客户端不会在 seq 上干等。
func (s *Server) DispatchFrame(f *Frame, conn *WsConn) error {
	if err := s.disp.Dispatch(&Context{S: s}, f, conn); err != nil {
		_ = s.connMgr.SendConn(conn.ConnID, BuildError(f.Op, f.Seq, err))
		return err
	}
	return nil
}
