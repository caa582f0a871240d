package gateway

import (
	"errors"
	"net"
	"sync"
	"time"

	"VProject/tools/safe"

	"github.com/gorilla/websocket"
)

// ===== 配置 =====

type ManagerConf struct {
	UnauthTTL  time.Duration    // 未授权连接的 TTL（如 60s）
	SweepEvery time.Duration    // 清理周期（如 10s）
	SendQueue  int              // 每连接发送队列长度
	Clock      func() time.Time // 可注入时钟（单测用）；nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 10 * time.Second
	}
	if c.UnauthTTL <= 0 {
		c.UnauthTTL = 60 * time.Second
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
}

// ===== 数据结构 =====

// WsConn 一条活跃连接。Send 由唯一的写协程消费。
type WsConn struct {
	ConnID     string
	UserID     string // 绑定后非空
	Authorized bool

	Conn   *websocket.Conn
	Remote net.Addr
	Send   chan []byte

	CreatedAt time.Time
	UpdatedAt time.Time
	Heartbeat time.Time
	ExpireAt  time.Time // 只有未授权连接会到期被清理
}

// ConnManager 身份映射表：连接句柄 <-> 用户，双向各自最多一条。
// 进程内缓存，无独立持久性；重启后由客户端重连重建。
type ConnManager struct {
	mu     sync.RWMutex
	byConn map[string]*WsConn // 主索引：connID -> conn
	byUser map[string]string  // 反向索引：userID -> connID（1:1）

	conf     ManagerConf
	gwID     string
	stopOnce sync.Once
	stopCh   chan struct{}
}

// ===== 构造/关闭 =====

func NewConnManager(conf ManagerConf, gwID string) *ConnManager {
	conf.norm()
	m := &ConnManager{
		byConn: make(map[string]*WsConn),
		byUser: make(map[string]string),
		conf:   conf,
		gwID:   gwID,
		stopCh: make(chan struct{}),
	}
	safe.SafeGo(m.sweeper)
	return m
}

func (m *ConnManager) GwID() string { return m.gwID }

func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.byConn {
		closeQuiet(w.Conn)
	}
	m.byConn = map[string]*WsConn{}
	m.byUser = map[string]string{}
}

// ===== 登记/绑定 =====

// Register 新连接（未授权）登记。
func (m *ConnManager) Register(connID string, conn *websocket.Conn) (*WsConn, error) {
	if connID == "" {
		return nil, errors.New("connID empty")
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byConn[connID]; exists {
		return nil, errors.New("connID exists")
	}
	w := &WsConn{
		ConnID:    connID,
		Conn:      conn,
		Send:      make(chan []byte, m.conf.SendQueue),
		CreatedAt: now,
		UpdatedAt: now,
		Heartbeat: now,
		ExpireAt:  now.Add(m.conf.UnauthTTL),
	}
	if conn != nil {
		w.Remote = conn.RemoteAddr()
	}
	m.byConn[connID] = w
	return w, nil
}

// Bind 把连接绑定到用户。任一侧已有存活绑定则失败且无副作用：
// 既不让同一用户挂两条连接，也不悄悄改绑已有连接。
func (m *ConnManager) Bind(connID, userID string) bool {
	if connID == "" || userID == "" {
		return false
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.byConn[connID]
	if !ok {
		return false
	}
	if w.Authorized {
		return false
	}
	if _, taken := m.byUser[userID]; taken {
		return false
	}

	w.UserID = userID
	w.Authorized = true
	w.ExpireAt = time.Time{} // 授权连接不做 TTL 清理
	w.UpdatedAt = now
	w.Heartbeat = now
	m.byUser[userID] = connID
	return true
}

// Unbind 解除绑定，两个方向在同一临界区里一起摘掉。
// 可用任一侧的 key；已无绑定时返回 false（幂等）。
func (m *ConnManager) Unbind(connID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if connID == "" && userID != "" {
		connID = m.byUser[userID]
	}
	w, ok := m.byConn[connID]
	if !ok || !w.Authorized {
		return false
	}
	if userID != "" && w.UserID != userID {
		return false
	}
	delete(m.byUser, w.UserID)
	w.UserID = ""
	w.Authorized = false
	w.ExpireAt = m.conf.Clock().Add(m.conf.UnauthTTL)
	return true
}

// Resolve 每个变更类 handler 的第一步：连接 -> 用户。
// 没有绑定就是未认证，调用方应报 AUTH_INVALID 而不是静默跳过。
func (m *ConnManager) Resolve(connID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.byConn[connID]
	if !ok || !w.Authorized {
		return "", false
	}
	return w.UserID, true
}

// ResolveConn 用户 -> 连接。
func (m *ConnManager) ResolveConn(userID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	connID, ok := m.byUser[userID]
	return connID, ok
}

func (m *ConnManager) Get(connID string) (*WsConn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.byConn[connID]
	return w, ok
}

// Conns 按 connID 批量取连接（fan-out 用）。
func (m *ConnManager) Conns(connIDs []string) []*WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*WsConn, 0, len(connIDs))
	for _, id := range connIDs {
		if w, ok := m.byConn[id]; ok {
			out = append(out, w)
		}
	}
	return out
}

// Remove 关闭并移除连接；若仍绑定用户，绑定随连接同步摘除。
func (m *ConnManager) Remove(connID string) {
	m.mu.Lock()
	w, ok := m.byConn[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.byConn, connID)
	if w.Authorized {
		delete(m.byUser, w.UserID)
	}
	m.mu.Unlock()

	closeQuiet(w.Conn)
}

// HeartbeatConn 刷新心跳。
func (m *ConnManager) HeartbeatConn(connID string) error {
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byConn[connID]
	if !ok {
		return errors.New("connID not found")
	}
	w.Heartbeat = now
	w.UpdatedAt = now
	if !w.Authorized {
		w.ExpireAt = now.Add(m.conf.UnauthTTL)
	}
	return nil
}

// SendConn 往指定连接的发送队列投递；队列满则丢弃（慢消费者不拖垮网关）。
func (m *ConnManager) SendConn(connID string, data []byte) error {
	m.mu.RLock()
	w, ok := m.byConn[connID]
	m.mu.RUnlock()
	if !ok {
		return errors.New("connID not found")
	}
	select {
	case w.Send <- data:
		return nil
	default:
		return errors.New("send queue full")
	}
}

// ===== 清理协程 =====

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweepOnce(now)
		}
	}
}

// sweepOnce 清理到期的未授权连接；收集后在锁外关闭 socket。
func (m *ConnManager) sweepOnce(now time.Time) {
	var expired []*WsConn

	m.mu.Lock()
	for id, w := range m.byConn {
		if !w.Authorized && !w.ExpireAt.IsZero() && now.After(w.ExpireAt) {
			expired = append(expired, w)
			delete(m.byConn, id)
		}
	}
	m.mu.Unlock()

	for _, w := range expired {
		closeQuiet(w.Conn)
	}
}

// ===== 工具函数 =====

func writeBinary(conn *websocket.Conn, data []byte, deadline time.Duration) error {
	if conn == nil {
		return errors.New("nil conn")
	}
	if err := conn.SetWriteDeadline(time.Now().Add(deadline)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func closeQuiet(c *websocket.Conn) {
	if c != nil {
		_ = c.Close()
	}
}
